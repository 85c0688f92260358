package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/your-org/videoqa/internal/models"
)

// MemoryStore keeps records in process memory. It is meant for tests and
// single-process development runs; nothing survives a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	seq        int64
	byResponse map[string]*models.ResponseRecord
	byVideo    map[string][]*models.ResponseRecord
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byResponse: make(map[string]*models.ResponseRecord),
		byVideo:    make(map[string][]*models.ResponseRecord),
		now:        time.Now,
	}
}

func (s *MemoryStore) Store(_ context.Context, rec *models.ResponseRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byResponse[rec.ResponseID]; exists {
		return "", fmt.Errorf("%w: %s", models.ErrDuplicateResponseID, rec.ResponseID)
	}

	s.seq++
	stored := *rec
	stored.ID = strconv.FormatInt(s.seq, 10)
	stored.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	s.byResponse[stored.ResponseID] = &stored
	s.byVideo[stored.VideoID] = append(s.byVideo[stored.VideoID], &stored)

	rec.ID = stored.ID
	rec.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

func (s *MemoryStore) GetByResponseID(_ context.Context, responseID string) (*models.ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byResponse[responseID]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) GetByVideoID(_ context.Context, videoID string) ([]models.ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.byVideo[videoID]
	out := make([]models.ResponseRecord, 0, min(len(recs), MaxRecordsPerVideo))
	for _, r := range recs {
		out = append(out, *r)
	}
	// Insertion order breaks created_at ties, like the id tiebreak in the SQL backend.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > MaxRecordsPerVideo {
		out = out[:MaxRecordsPerVideo]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }
