package models

// EncodedFrame is a sampled frame ready to attach to a prompt.
type EncodedFrame struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Data      string  `json:"data"` // base64 JPEG
}
