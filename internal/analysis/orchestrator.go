// Package analysis runs the video-to-answer pipeline: open, sample, compose,
// one backend call. It also owns submissions, which add identity and persistence.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/videoqa/internal/ingest"
	"github.com/your-org/videoqa/internal/models"
	"github.com/your-org/videoqa/internal/observability"
	"github.com/your-org/videoqa/internal/prompt"
	"github.com/your-org/videoqa/internal/reasoning"
	"github.com/your-org/videoqa/internal/sampler"
)

// Analyzer turns a local video file and a query into the backend's raw answer.
type Analyzer interface {
	Analyze(ctx context.Context, videoPath, query string) (string, error)
}

// Orchestrator is the single-attempt pipeline. It never retries.
type Orchestrator struct {
	opener  ingest.Opener
	sampler *sampler.Sampler
	compose func(query string, frames []models.EncodedFrame) prompt.Prompt
	backend reasoning.Backend
	timeout time.Duration
}

// NewOrchestrator wires the pipeline. A zero timeout means the caller's context alone bounds the call.
func NewOrchestrator(opener ingest.Opener, s *sampler.Sampler, backend reasoning.Backend, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		opener:  opener,
		sampler: s,
		compose: prompt.Compose,
		backend: backend,
		timeout: timeout,
	}
}

func (o *Orchestrator) Analyze(ctx context.Context, videoPath, query string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	handle, err := o.opener.Open(ctx, videoPath)
	if err != nil {
		// A probe cut short by the pipeline deadline says nothing about the file.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("open video: %w", ctxErr)
		}
		return "", fmt.Errorf("%w: %w", models.ErrInvalidVideo, err)
	}

	frames, err := o.sampler.Sample(ctx, handle)
	if err != nil {
		return "", err
	}
	observability.StageDuration.WithLabelValues("sample").Observe(time.Since(start).Seconds())

	encoded, err := o.sampler.Encode(frames)
	if err != nil {
		return "", fmt.Errorf("encode frames: %w", err)
	}
	p := o.compose(query, encoded)

	start = time.Now()
	text, err := o.backend.Complete(ctx, p)
	observability.StageDuration.WithLabelValues("backend").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", models.ErrBackendInvocation, o.backend.Name(), withContextErr(ctx, err))
	}

	slog.Info("video analyzed",
		"frames", len(encoded),
		"backend", o.backend.Name(),
		"backend_duration", time.Since(start).String(),
	)
	return text, nil
}

// withContextErr attaches ctx's error to err when the context ended first and
// err does not already carry it.
func withContextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", err, ctxErr)
	}
	return err
}
