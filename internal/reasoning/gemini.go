package reasoning

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/your-org/videoqa/internal/config"
	"github.com/your-org/videoqa/internal/prompt"
)

// GeminiBackend sends the prompt text followed by one inline JPEG blob per frame.
type GeminiBackend struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGeminiBackend(ctx context.Context, cfg config.BackendConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini backend: api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	}

	return &GeminiBackend{client: client, model: model, name: cfg.Model}, nil
}

func (b *GeminiBackend) Name() string { return "gemini:" + b.name }

func (b *GeminiBackend) Close() error { return b.client.Close() }

func (b *GeminiBackend) Complete(ctx context.Context, p prompt.Prompt) (string, error) {
	parts, err := geminiParts(p)
	if err != nil {
		return "", err
	}

	resp, err := b.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return candidateText(resp)
}

func geminiParts(p prompt.Prompt) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(p.Images)+1)
	parts = append(parts, genai.Text(p.Text))
	for _, img := range p.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", img.Index, err)
		}
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: data})
	}
	return parts, nil
}

// candidateText joins the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason != genai.FinishReasonStop && candidate.FinishReason != genai.FinishReasonUnspecified {
			for _, rating := range candidate.SafetyRatings {
				slog.Warn("gemini safety rating", "category", rating.Category.String(), "probability", rating.Probability.String())
			}
			return "", fmt.Errorf("gemini response blocked: %s", candidate.FinishReason.String())
		}
		return "", fmt.Errorf("gemini returned no content parts (finish_reason: %s)", candidate.FinishReason.String())
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}
