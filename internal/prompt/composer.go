// Package prompt builds the single multimodal instruction sent to the reasoning backend.
package prompt

import (
	"fmt"
	"math"
	"strings"

	"github.com/your-org/videoqa/internal/models"
)

const jpegMIME = "image/jpeg"

// Attachment is one image in a prompt. Attachments are in frame order.
type Attachment struct {
	Index     int
	Timestamp float64
	MIMEType  string
	Data      string // base64
}

// DataURL renders the attachment as an inline data URL.
func (a Attachment) DataURL() string {
	return "data:" + a.MIMEType + ";base64," + a.Data
}

// Prompt is a text block plus its ordered image attachments.
type Prompt struct {
	Text   string
	Images []Attachment
}

// Example is one few-shot query/answer pair.
type Example struct {
	Query  string
	Answer string
}

// Template is the fixed instruction a query is embedded into.
type Template struct {
	Instructions string // must contain exactly one %s verb for the query
	Closing      string
	Examples     []Example
}

// Canonical is the Yes/No/timestamp object-presence template.
var Canonical = Template{
	Instructions: `You are analyzing a video for the presence of a specific object. The query is: "%s".

Your ONLY task:
1. Determine if the object in the query is visible in any frame provided.
2. If visible, answer "Yes" and:
- Describe its **exact location** in the scene with clear reference points.
- Give **timestamps** (approximate to the nearest second) when it first appears, changes position, or disappears.
- Mention any **relevant surrounding objects** or context that help identify it.
- Provide a short, factual description in **2 to 3 sentences max**.
3. If NOT visible, answer "No" and say: "The object was not found in the video."
4. Do NOT talk about unrelated objects, people, or background unless they help locate the object.`,
	Closing: "Be factual, concise, and specific.",
	Examples: []Example{
		{
			Query:  "Can you see my laptop?",
			Answer: "Yes. Seen at 00:06 on the bed with a patterned mattress, open and connected by a black cable. Last visible at 00:10 near the dark brown headboard with a phone placed beside it.",
		},
		{
			Query:  "Is there a red car?",
			Answer: "Yes. First appears at 00:03 on the left side of the street beside a white van. Moves to the center of the frame by 00:07 before leaving the scene at 00:09.",
		},
		{
			Query:  "Can you see my black backpack?",
			Answer: "No. The object was not found in the video.",
		},
		{
			Query:  "Do you see a white dog?",
			Answer: "Yes. Appears at 00:02 near the wooden fence on the right side of the garden. Stays in view until 00:05, playing with a red ball near a metal chair.",
		},
	},
}

// Compose builds a prompt with the canonical template.
func Compose(query string, frames []models.EncodedFrame) Prompt {
	return Canonical.Compose(query, frames)
}

// Compose embeds query into the template and attaches frames in the order given.
// It performs no I/O; equal inputs give equal prompts.
func (t Template) Compose(query string, frames []models.EncodedFrame) Prompt {
	var b strings.Builder

	fmt.Fprintf(&b, t.Instructions, query)
	b.WriteString("\n\n")
	b.WriteString(t.Closing)

	for i, ex := range t.Examples {
		fmt.Fprintf(&b, "\n\nExample %d:\nQuery: \"%s\"\nAI Response: \"%s\"", i+1, ex.Query, ex.Answer)
	}

	if len(frames) > 0 {
		stamps := make([]string, len(frames))
		for i, f := range frames {
			stamps[i] = FormatTimestamp(f.Timestamp)
		}
		fmt.Fprintf(&b, "\n\nThe %d frames below are in chronological order, taken at: %s.",
			len(frames), strings.Join(stamps, ", "))
	}

	images := make([]Attachment, len(frames))
	for i, f := range frames {
		images[i] = Attachment{
			Index:     f.Index,
			Timestamp: f.Timestamp,
			MIMEType:  jpegMIME,
			Data:      f.Data,
		}
	}

	return Prompt{Text: b.String(), Images: images}
}

// FormatTimestamp renders seconds as MM:SS, rounding to the nearest second.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Round(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
