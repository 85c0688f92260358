package storage

import (
	"context"
	"fmt"

	"github.com/your-org/videoqa/internal/config"
	"github.com/your-org/videoqa/internal/models"
)

// MaxRecordsPerVideo bounds GetByVideoID. There is no pagination beyond it.
const MaxRecordsPerVideo = 100

// ResponseStore is the write-once ledger of analysis answers.
//
// Every implementation enforces uniqueness of response_id itself and stamps
// CreatedAt at write time, overwriting whatever the caller set.
type ResponseStore interface {
	// Store inserts rec, sets rec.ID and rec.CreatedAt, and returns the storage-assigned id.
	// A response_id collision yields models.ErrDuplicateResponseID.
	Store(ctx context.Context, rec *models.ResponseRecord) (string, error)
	// GetByResponseID returns nil, nil when no record has that id.
	GetByResponseID(ctx context.Context, responseID string) (*models.ResponseRecord, error)
	// GetByVideoID returns at most MaxRecordsPerVideo records, oldest first.
	GetByVideoID(ctx context.Context, videoID string) ([]models.ResponseRecord, error)
	Ping(ctx context.Context) error
	// Close is idempotent.
	Close(ctx context.Context) error
}

// OpenResponseStore connects the backend selected by cfg.Storage.Backend and
// establishes its indexes.
func OpenResponseStore(ctx context.Context, cfg *config.Config) (ResponseStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageMongo:
		return NewMongoStore(ctx, cfg.Mongo)
	case config.StoragePostgres:
		return NewPostgresStore(ctx, cfg.Database)
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
