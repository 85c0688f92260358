package models

import "time"

// ResponseRecord is one persisted answer. Records are write-once.
type ResponseRecord struct {
	ID           string    `json:"-" db:"id"` // storage-assigned
	ResponseID   string    `json:"response_id" db:"response_id"`
	VideoID      string    `json:"video_id" db:"video_id"`
	Query        string    `json:"query" db:"query"`
	ResponseText string    `json:"response_text" db:"response_text"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AnalysisRequest is the caller-supplied unit of work.
type AnalysisRequest struct {
	VideoID string `json:"video_id"`
	Query   string `json:"query"`
}
