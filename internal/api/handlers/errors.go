package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/your-org/videoqa/internal/models"
)

// StatusFor maps a pipeline or storage error to its HTTP status.
// An expired analysis deadline is 504 at any stage, including while the
// backend call is in flight.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrInvalidVideo):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoFramesExtracted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrBackendInvocation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MessageFor is the client-facing text for err. It never includes err's own
// text, which can carry local paths and decoder output.
func MessageFor(err error) string {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return "video file and query are required"
	case errors.As(err, &maxBytes):
		return "video exceeds the upload limit"
	case errors.Is(err, context.DeadlineExceeded):
		return "Analysis timed out"
	case errors.Is(err, models.ErrInvalidVideo):
		return "Invalid or unreadable video"
	case errors.Is(err, models.ErrNoFramesExtracted):
		return "Could not extract frames from video"
	case errors.Is(err, models.ErrBackendInvocation):
		return "Analysis backend failed"
	default:
		return "Internal server error"
	}
}
