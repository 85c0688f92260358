package dto

import (
	"time"

	"github.com/your-org/videoqa/internal/models"
)

// TimeLayout renders created_at as RFC3339 with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// SubmissionResponse is returned by POST /api/analyze-video.
type SubmissionResponse struct {
	VideoID    string `json:"video_id"`
	Query      string `json:"query"`
	ResponseID string `json:"response_id"`
	Status     string `json:"status,omitempty"` // "queued" when a worker will answer
}

// AIResponse is returned by GET /api/ai-response.
type AIResponse struct {
	ResponseID   string `json:"response_id"`
	ResponseText string `json:"response_text"`
	CreatedAt    string `json:"created_at"`
}

// ResponseRecord is one entry of a video's history.
type ResponseRecord struct {
	ResponseID   string `json:"response_id"`
	VideoID      string `json:"video_id"`
	Query        string `json:"query"`
	ResponseText string `json:"response_text"`
	CreatedAt    string `json:"created_at"`
}

// VideoResponses is returned by GET /api/videos/:video_id/responses.
type VideoResponses struct {
	VideoID   string           `json:"video_id"`
	Responses []ResponseRecord `json:"responses"`
	Total     int              `json:"total"`
}

func AIResponseFrom(rec *models.ResponseRecord) AIResponse {
	return AIResponse{
		ResponseID:   rec.ResponseID,
		ResponseText: rec.ResponseText,
		CreatedAt:    FormatTime(rec.CreatedAt),
	}
}

func VideoResponsesFrom(videoID string, recs []models.ResponseRecord) VideoResponses {
	out := VideoResponses{
		VideoID:   videoID,
		Responses: make([]ResponseRecord, 0, len(recs)),
		Total:     len(recs),
	}
	for _, rec := range recs {
		out.Responses = append(out.Responses, ResponseRecord{
			ResponseID:   rec.ResponseID,
			VideoID:      rec.VideoID,
			Query:        rec.Query,
			ResponseText: rec.ResponseText,
			CreatedAt:    FormatTime(rec.CreatedAt),
		})
	}
	return out
}
