package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/videoqa/internal/models"
	"github.com/your-org/videoqa/internal/storage"
)

// VideoArchive stores uploads where workers can reach them.
type VideoArchive interface {
	PutVideo(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// TaskPublisher hands an analysis task to the worker pool.
type TaskPublisher interface {
	PublishTask(ctx context.Context, task models.AnalysisTask) error
}

// QueueSubmitter archives the upload and queues it. Both identifiers are minted
// up front so the caller can poll for the answer immediately.
type QueueSubmitter struct {
	archive   VideoArchive
	publisher TaskPublisher
	newID     func() string
}

func NewQueueSubmitter(archive VideoArchive, publisher TaskPublisher) *QueueSubmitter {
	return &QueueSubmitter{archive: archive, publisher: publisher, newID: uuid.NewString}
}

func (q *QueueSubmitter) Submit(ctx context.Context, up Upload) (*Submission, error) {
	if err := validateUpload(up); err != nil {
		return nil, err
	}

	task := models.AnalysisTask{
		VideoID:     q.newID(),
		ResponseID:  q.newID(),
		Query:       up.Query,
		SubmittedAt: time.Now().UTC(),
	}
	task.ObjectKey = storage.VideoKey(task.VideoID, uploadExt(up.Filename))

	size := up.Size
	if size <= 0 {
		size = -1
	}
	if err := q.archive.PutVideo(ctx, task.ObjectKey, up.Body, size, up.ContentType); err != nil {
		return nil, fmt.Errorf("archive upload: %w", err)
	}
	if err := q.publisher.PublishTask(ctx, task); err != nil {
		return nil, fmt.Errorf("queue analysis: %w", err)
	}

	slog.Info("analysis queued", "video_id", task.VideoID, "response_id", task.ResponseID, "object_key", task.ObjectKey)
	return &Submission{
		VideoID:    task.VideoID,
		Query:      task.Query,
		ResponseID: task.ResponseID,
		Queued:     true,
	}, nil
}
