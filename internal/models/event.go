package models

import "time"

// AnalysisTask is the message published to NATS for worker processing.
// Both identifiers are minted by the API before the task is queued.
type AnalysisTask struct {
	VideoID     string    `json:"video_id"`
	ResponseID  string    `json:"response_id"`
	Query       string    `json:"query"`
	ObjectKey   string    `json:"object_key"` // MinIO key of the uploaded video
	SubmittedAt time.Time `json:"submitted_at"`
}

type ResultEventType string

const (
	EventAnalysisCompleted ResultEventType = "analysis_completed"
	EventAnalysisFailed    ResultEventType = "analysis_failed"
)

// ResultEvent reports the outcome of one analysis.
type ResultEvent struct {
	Type       ResultEventType `json:"type"`
	VideoID    string          `json:"video_id"`
	ResponseID string          `json:"response_id"`
	Query      string          `json:"query"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
}
