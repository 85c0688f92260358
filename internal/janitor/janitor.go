// Package janitor periodically removes upload leftovers: spool files a crashed
// request never cleaned up, and archived videos whose task has long finished.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/your-org/videoqa/internal/observability"
	"github.com/your-org/videoqa/internal/storage"
)

// ObjectSweeper deletes archived objects under prefix older than cutoff.
type ObjectSweeper interface {
	RemoveOlderThan(ctx context.Context, prefix string, cutoff time.Time) (int, error)
}

type Janitor struct {
	tempDir string
	maxAge  time.Duration
	objects ObjectSweeper
	now     func() time.Time
	cron    *cron.Cron
}

// New builds a janitor for tempDir. objects may be nil when no archive is configured.
func New(tempDir string, maxAge time.Duration, objects ObjectSweeper) *Janitor {
	return &Janitor{
		tempDir: tempDir,
		maxAge:  maxAge,
		objects: objects,
		now:     time.Now,
	}
}

// Sweep removes every regular file in the temp dir, and every archived video,
// last modified more than maxAge ago. It reports how many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.maxAge)

	removed, err := j.sweepDir(cutoff)
	if err != nil {
		return removed, err
	}

	if j.objects != nil {
		n, err := j.objects.RemoveOlderThan(ctx, storage.VideoPrefix, cutoff)
		removed += n
		if err != nil {
			return removed, fmt.Errorf("sweep archive: %w", err)
		}
	}
	return removed, nil
}

func (j *Janitor) sweepDir(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(j.tempDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.tempDir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("janitor remove", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Run implements cron.Job.
func (j *Janitor) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := j.Sweep(ctx)
	if n > 0 {
		observability.JanitorRemoved.Add(float64(n))
	}
	if err != nil {
		slog.Error("janitor sweep failed", "removed", n, "error", err)
		return
	}
	slog.Debug("janitor sweep done", "removed", n)
}

// Start schedules Run on spec (standard cron syntax or descriptors like "@every 10m").
func (j *Janitor) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddJob(spec, j); err != nil {
		return fmt.Errorf("schedule janitor (spec: %s): %w", spec, err)
	}
	j.cron = c
	c.Start()
	slog.Info("janitor scheduled", "spec", spec, "temp_dir", j.tempDir, "max_age", j.maxAge.String())
	return nil
}

// Stop waits up to 10s for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	ctx := j.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		slog.Warn("janitor stop timed out")
	}
}
