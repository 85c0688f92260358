package mock

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/your-org/videoqa/internal/analysis"
	"github.com/your-org/videoqa/internal/ingest"
	"github.com/your-org/videoqa/internal/models"
	"github.com/your-org/videoqa/internal/prompt"
)

// Handle is a mock implementation of ingest.Handle.
// Reads records every requested index; CloseCount counts Close calls.
type Handle struct {
	FPS           float64
	Count         int
	ReadFrameFunc func(ctx context.Context, index int) (image.Image, error)

	Reads      []int
	CloseCount int
}

func (m *Handle) FrameRate() float64 { return m.FPS }

func (m *Handle) FrameCount() int { return m.Count }

func (m *Handle) Duration() float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(m.Count) / m.FPS
}

func (m *Handle) ReadFrame(ctx context.Context, index int) (image.Image, error) {
	m.Reads = append(m.Reads, index)
	if m.ReadFrameFunc != nil {
		return m.ReadFrameFunc(ctx, index)
	}
	return image.NewRGBA(image.Rect(0, 0, 1280, 720)), nil
}

func (m *Handle) Close() error {
	m.CloseCount++
	return nil
}

// Opener is a mock implementation of ingest.Opener
type Opener struct {
	OpenFunc func(ctx context.Context, path string) (ingest.Handle, error)
}

func (m *Opener) Open(ctx context.Context, path string) (ingest.Handle, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, path)
	}
	return &Handle{FPS: 30, Count: 150}, nil
}

// Backend is a mock implementation of reasoning.Backend.
// Prompts records every prompt passed to Complete.
type Backend struct {
	CompleteFunc func(ctx context.Context, p prompt.Prompt) (string, error)

	mu      sync.Mutex
	Prompts []prompt.Prompt
}

func (m *Backend) Complete(ctx context.Context, p prompt.Prompt) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, p)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, p)
	}
	return "", nil
}

func (m *Backend) Name() string { return "mock" }

func (m *Backend) Close() error { return nil }

// Calls reports how many times Complete ran.
func (m *Backend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// Analyzer is a mock implementation of analysis.Analyzer
type Analyzer struct {
	AnalyzeFunc func(ctx context.Context, videoPath, query string) (string, error)
}

func (m *Analyzer) Analyze(ctx context.Context, videoPath, query string) (string, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, videoPath, query)
	}
	return "", nil
}

// ResponseStore is a mock implementation of storage.ResponseStore
type ResponseStore struct {
	StoreFunc           func(ctx context.Context, rec *models.ResponseRecord) (string, error)
	GetByResponseIDFunc func(ctx context.Context, responseID string) (*models.ResponseRecord, error)
	GetByVideoIDFunc    func(ctx context.Context, videoID string) ([]models.ResponseRecord, error)
	PingFunc            func(ctx context.Context) error
	CloseFunc           func(ctx context.Context) error
}

func (m *ResponseStore) Store(ctx context.Context, rec *models.ResponseRecord) (string, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, rec)
	}
	return "", nil
}

func (m *ResponseStore) GetByResponseID(ctx context.Context, responseID string) (*models.ResponseRecord, error) {
	if m.GetByResponseIDFunc != nil {
		return m.GetByResponseIDFunc(ctx, responseID)
	}
	return nil, nil
}

func (m *ResponseStore) GetByVideoID(ctx context.Context, videoID string) ([]models.ResponseRecord, error) {
	if m.GetByVideoIDFunc != nil {
		return m.GetByVideoIDFunc(ctx, videoID)
	}
	return nil, nil
}

func (m *ResponseStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *ResponseStore) Close(ctx context.Context) error {
	if m.CloseFunc != nil {
		return m.CloseFunc(ctx)
	}
	return nil
}

// Notifier is a mock implementation of analysis.Notifier that records events.
type Notifier struct {
	mu     sync.Mutex
	Events []models.ResultEvent
}

func (m *Notifier) Notify(ctx context.Context, event models.ResultEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Snapshot returns a copy of the recorded events.
func (m *Notifier) Snapshot() []models.ResultEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ResultEvent(nil), m.Events...)
}

// Archive is a mock implementation of analysis.VideoArchive and analysis.VideoFetcher
type Archive struct {
	PutVideoFunc   func(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	FetchVideoFunc func(ctx context.Context, key, dst string) error
}

func (m *Archive) PutVideo(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.PutVideoFunc != nil {
		return m.PutVideoFunc(ctx, key, r, size, contentType)
	}
	return nil
}

func (m *Archive) FetchVideo(ctx context.Context, key, dst string) error {
	if m.FetchVideoFunc != nil {
		return m.FetchVideoFunc(ctx, key, dst)
	}
	return nil
}

// Publisher is a mock implementation of analysis.TaskPublisher
type Publisher struct {
	PublishTaskFunc func(ctx context.Context, task models.AnalysisTask) error
}

func (m *Publisher) PublishTask(ctx context.Context, task models.AnalysisTask) error {
	if m.PublishTaskFunc != nil {
		return m.PublishTaskFunc(ctx, task)
	}
	return nil
}

// Submitter is a mock implementation of analysis.Submitter
type Submitter struct {
	SubmitFunc func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error)
}

func (m *Submitter) Submit(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, up)
	}
	return nil, nil
}
