package models

import "errors"

// Error taxonomy shared by the pipeline and the HTTP boundary.
// Callers match with errors.Is; producers wrap with fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidRequest means the submission itself is malformed (no file, empty query).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidVideo means the source could not be opened or has no usable frame rate.
	ErrInvalidVideo = errors.New("invalid video")

	// ErrNoFramesExtracted means every sampled timestamp failed to decode.
	ErrNoFramesExtracted = errors.New("no frames were extracted")

	// ErrBackendInvocation means the reasoning backend call failed or returned nothing usable.
	ErrBackendInvocation = errors.New("reasoning backend invocation failed")

	// ErrDuplicateResponseID means the store's unique response_id constraint was violated.
	ErrDuplicateResponseID = errors.New("duplicate response id")
)
