package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/videoqa/internal/models"
	"github.com/your-org/videoqa/internal/observability"
	"github.com/your-org/videoqa/internal/storage"
)

// Upload is one submitted video with its query.
type Upload struct {
	Body        io.Reader
	Filename    string
	Size        int64 // -1 when unknown
	ContentType string
	Query       string
}

// Submission is what the caller gets back. Queued is set when the answer will
// be produced later by a worker.
type Submission struct {
	VideoID    string
	Query      string
	ResponseID string
	Queued     bool
}

// Submitter accepts uploads. Service analyzes inline; QueueSubmitter defers to workers.
type Submitter interface {
	Submit(ctx context.Context, up Upload) (*Submission, error)
}

// Notifier is told about every finished analysis, successful or not.
type Notifier interface {
	Notify(ctx context.Context, event models.ResultEvent)
}

// VideoFetcher downloads an archived upload to a local path.
type VideoFetcher interface {
	FetchVideo(ctx context.Context, key, dst string) error
}

// Service mints identifiers, runs the analyzer and persists exactly one record
// per successful analysis. Failed analyses store nothing.
type Service struct {
	analyzer Analyzer
	store    storage.ResponseStore
	tempDir  string
	notifier Notifier
	newID    func() string
}

// NewService builds a Service. notifier may be nil.
func NewService(analyzer Analyzer, store storage.ResponseStore, tempDir string, notifier Notifier) *Service {
	return &Service{
		analyzer: analyzer,
		store:    store,
		tempDir:  tempDir,
		notifier: notifier,
		newID:    uuid.NewString,
	}
}

// Submit spools the upload under a fresh video id, analyzes it, and stores the answer
// under a fresh response id. The spool file is removed before returning.
func (s *Service) Submit(ctx context.Context, up Upload) (*Submission, error) {
	if err := validateUpload(up); err != nil {
		return nil, err
	}

	videoID := s.newID()
	path, err := s.spool(videoID, up)
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	defer removeFile(path)

	rec, err := s.Process(ctx, models.AnalysisTask{
		VideoID:     videoID,
		Query:       up.Query,
		SubmittedAt: time.Now().UTC(),
	}, path)
	if err != nil {
		return nil, err
	}

	return &Submission{VideoID: rec.VideoID, Query: rec.Query, ResponseID: rec.ResponseID}, nil
}

// Process analyzes a local video for task and stores the result. If task carries no
// response id, one is minted after the analysis succeeds.
func (s *Service) Process(ctx context.Context, task models.AnalysisTask, videoPath string) (*models.ResponseRecord, error) {
	text, err := s.analyzer.Analyze(ctx, videoPath, task.Query)
	if err != nil {
		s.fail(ctx, task, err)
		return nil, err
	}

	responseID := task.ResponseID
	if responseID == "" {
		responseID = s.newID()
	}

	rec := &models.ResponseRecord{
		ResponseID:   responseID,
		VideoID:      task.VideoID,
		Query:        task.Query,
		ResponseText: text,
	}
	if _, err := s.store.Store(ctx, rec); err != nil {
		err = fmt.Errorf("store response: %w", err)
		task.ResponseID = responseID
		s.fail(ctx, task, err)
		return nil, err
	}

	observability.AnalysesTotal.WithLabelValues("ok").Inc()
	slog.Info("analysis stored", "video_id", rec.VideoID, "response_id", rec.ResponseID)

	s.notify(ctx, models.ResultEvent{
		Type:       models.EventAnalysisCompleted,
		VideoID:    rec.VideoID,
		ResponseID: rec.ResponseID,
		Query:      rec.Query,
		CreatedAt:  &rec.CreatedAt,
	})
	return rec, nil
}

// RunTask fetches the archived video for a queued task and processes it.
func (s *Service) RunTask(ctx context.Context, task models.AnalysisTask, fetcher VideoFetcher) error {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	path := filepath.Join(s.tempDir, task.VideoID+uploadExt(task.ObjectKey))
	if err := fetcher.FetchVideo(ctx, task.ObjectKey, path); err != nil {
		err = fmt.Errorf("%w: fetch %s: %w", models.ErrInvalidVideo, task.ObjectKey, err)
		s.fail(ctx, task, err)
		return err
	}
	defer removeFile(path)

	_, err := s.Process(ctx, task, path)
	return err
}

func (s *Service) fail(ctx context.Context, task models.AnalysisTask, err error) {
	observability.AnalysesTotal.WithLabelValues(Outcome(err)).Inc()
	slog.Warn("analysis failed", "video_id", task.VideoID, "response_id", task.ResponseID, "error", err)

	s.notify(ctx, models.ResultEvent{
		Type:       models.EventAnalysisFailed,
		VideoID:    task.VideoID,
		ResponseID: task.ResponseID,
		Query:      task.Query,
		// Events reach WebSocket clients, so they carry the outcome class and not err's text.
		Error: Outcome(err),
	})
}

func (s *Service) notify(ctx context.Context, ev models.ResultEvent) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, ev)
	}
}

func (s *Service) spool(videoID string, up Upload) (string, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(s.tempDir, videoID+uploadExt(up.Filename))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, up.Body); err != nil {
		f.Close()
		removeFile(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		removeFile(path)
		return "", err
	}
	return path, nil
}

// Outcome is the metrics label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, models.ErrInvalidVideo):
		return "invalid_video"
	case errors.Is(err, models.ErrNoFramesExtracted):
		return "no_frames"
	case errors.Is(err, models.ErrBackendInvocation):
		return "backend_error"
	case errors.Is(err, models.ErrDuplicateResponseID):
		return "duplicate_id"
	default:
		return "error"
	}
}

func validateUpload(up Upload) error {
	if up.Body == nil {
		return fmt.Errorf("%w: video file is required", models.ErrInvalidRequest)
	}
	if strings.TrimSpace(up.Query) == "" {
		return fmt.Errorf("%w: query is required", models.ErrInvalidRequest)
	}
	return nil
}

// uploadExt keeps a short alphanumeric extension from name and defaults to .mp4.
func uploadExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ".mp4"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".mp4"
		}
	}
	return ext
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove spool file", "path", path, "error", err)
	}
}
