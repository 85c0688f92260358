// Package sampler picks a bounded, evenly spaced set of frames out of a finite video.
//
// Sampling starts at t=0 and advances by Interval until either the video ends or
// MaxFrames timestamps have been tried. With the defaults (1s, 10 frames) nothing after
// the tenth second of a video is ever looked at.
package sampler

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"iter"
	"log/slog"
	"math"
	"time"

	"golang.org/x/image/draw"

	"github.com/your-org/videoqa/internal/config"
	"github.com/your-org/videoqa/internal/ingest"
	"github.com/your-org/videoqa/internal/models"
	"github.com/your-org/videoqa/internal/observability"
)

const (
	DefaultMaxFrames   = 10
	DefaultInterval    = time.Second
	DefaultWidth       = 640
	DefaultHeight      = 480
	DefaultJPEGQuality = 85
)

type Options struct {
	MaxFrames   int
	Interval    time.Duration
	Width       int
	Height      int
	JPEGQuality int
}

// OptionsFromConfig converts the sampler section of the config.
func OptionsFromConfig(cfg config.SamplerConfig) Options {
	return Options{
		MaxFrames:   cfg.MaxFrames,
		Interval:    cfg.Interval,
		Width:       cfg.Width,
		Height:      cfg.Height,
		JPEGQuality: cfg.JPEGQuality,
	}
}

// SampledFrame is one decoded frame, already resized.
// Index is always floor(Timestamp * frame rate).
type SampledFrame struct {
	Timestamp float64
	Index     int
	Image     image.Image
}

type Sampler struct {
	opts Options
}

// New returns a Sampler. Zero fields in opts fall back to the package defaults.
func New(opts Options) *Sampler {
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = DefaultMaxFrames
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	return &Sampler{opts: opts}
}

func (s *Sampler) Options() Options { return s.opts }

// Timestamps yields the sample schedule, in seconds, for a video of the given duration.
func (s *Sampler) Timestamps(duration float64) iter.Seq[float64] {
	step := s.opts.Interval.Seconds()
	return func(yield func(float64) bool) {
		for k := 0; k < s.opts.MaxFrames; k++ {
			t := float64(k) * step
			if !(t < duration) {
				return
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Frames lazily decodes the frame under each scheduled timestamp.
// Timestamps whose frame fails to decode are skipped and not retried.
// The sequence is single use and stops early if ctx is cancelled.
func (s *Sampler) Frames(ctx context.Context, h ingest.Handle) iter.Seq[SampledFrame] {
	fps := h.FrameRate()
	duration := h.Duration()

	return func(yield func(SampledFrame) bool) {
		for t := range s.Timestamps(duration) {
			if ctx.Err() != nil {
				return
			}

			index := int(math.Floor(t * fps))
			start := time.Now()
			img, err := h.ReadFrame(ctx, index)
			observability.StageDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
			if err != nil {
				observability.FramesSkipped.Inc()
				slog.Warn("skip undecodable frame", "timestamp", t, "index", index, "error", err)
				continue
			}

			observability.FramesSampled.Inc()
			frame := SampledFrame{
				Timestamp: t,
				Index:     index,
				Image:     resizeImage(img, s.opts.Width, s.opts.Height),
			}
			if !yield(frame) {
				return
			}
		}
	}
}

// Sample collects the frame sequence for h and always closes h before returning.
func (s *Sampler) Sample(ctx context.Context, h ingest.Handle) ([]SampledFrame, error) {
	defer func() {
		if err := h.Close(); err != nil {
			slog.Warn("close video handle", "error", err)
		}
	}()

	fps := h.FrameRate()
	if !(fps > 0) || math.IsInf(fps, 0) {
		return nil, fmt.Errorf("%w: unusable frame rate %v", models.ErrInvalidVideo, fps)
	}

	var frames []SampledFrame
	for frame := range s.Frames(ctx, h) {
		frames = append(frames, frame)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: duration %.2fs at %.2f fps", models.ErrNoFramesExtracted, h.Duration(), fps)
	}

	slog.Debug("sampled frames", "count", len(frames), "duration", h.Duration(), "fps", fps)
	return frames, nil
}

// Encode JPEG-compresses each frame and base64-encodes the result, preserving order.
func (s *Sampler) Encode(frames []SampledFrame) ([]models.EncodedFrame, error) {
	out := make([]models.EncodedFrame, 0, len(frames))
	for _, f := range frames {
		data, err := encodeJPEG(f.Image, s.opts.JPEGQuality)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", f.Index, err)
		}
		out = append(out, models.EncodedFrame{
			Index:     f.Index,
			Timestamp: f.Timestamp,
			Data:      base64.StdEncoding.EncodeToString(data),
		})
	}
	return out, nil
}

// resizeImage scales img to exactly targetW x targetH, ignoring aspect ratio.
func resizeImage(img image.Image, targetW, targetH int) image.Image {
	b := img.Bounds()
	if b.Dx() == targetW && b.Dy() == targetH {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
