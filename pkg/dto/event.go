package dto

import "github.com/your-org/videoqa/internal/models"

// WSEvent is a WebSocket message for real-time analysis results.
type WSEvent struct {
	Type       string `json:"type"` // analysis_completed, analysis_failed
	VideoID    string `json:"video_id"`
	ResponseID string `json:"response_id"`
	Query      string `json:"query"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func WSEventFrom(ev models.ResultEvent) WSEvent {
	out := WSEvent{
		Type:       string(ev.Type),
		VideoID:    ev.VideoID,
		ResponseID: ev.ResponseID,
		Query:      ev.Query,
		Error:      ev.Error,
	}
	if ev.CreatedAt != nil {
		out.CreatedAt = FormatTime(*ev.CreatedAt)
	}
	return out
}
