package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/videoqa/internal/config"
	"github.com/your-org/videoqa/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresStore is the relational ResponseStore. Schema and indexes come from
// the embedded migrations.
type PostgresStore struct {
	pool      *pgxpool.Pool
	closeOnce sync.Once
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	if err := Migrate(cfg.MigrateURL()); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.closeOnce.Do(s.pool.Close)
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Store(ctx context.Context, rec *models.ResponseRecord) (string, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ai_responses (response_id, video_id, query, response_text)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		rec.ResponseID, rec.VideoID, rec.Query, rec.ResponseText,
	).Scan(&id, &rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", models.ErrDuplicateResponseID, rec.ResponseID)
		}
		return "", fmt.Errorf("insert response: %w", err)
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ID = strconv.FormatInt(id, 10)
	return rec.ID, nil
}

func (s *PostgresStore) GetByResponseID(ctx context.Context, responseID string) (*models.ResponseRecord, error) {
	var (
		r  models.ResponseRecord
		id int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, response_id, video_id, query, response_text, created_at
		 FROM ai_responses WHERE response_id = $1`, responseID,
	).Scan(&id, &r.ResponseID, &r.VideoID, &r.Query, &r.ResponseText, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get response: %w", err)
	}
	r.ID = strconv.FormatInt(id, 10)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func (s *PostgresStore) GetByVideoID(ctx context.Context, videoID string) ([]models.ResponseRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, response_id, video_id, query, response_text, created_at
		 FROM ai_responses WHERE video_id = $1
		 ORDER BY created_at ASC, id ASC LIMIT $2`, videoID, MaxRecordsPerVideo)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []models.ResponseRecord
	for rows.Next() {
		var (
			r  models.ResponseRecord
			id int64
		)
		if err := rows.Scan(&id, &r.ResponseID, &r.VideoID, &r.Query, &r.ResponseText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.ID = strconv.FormatInt(id, 10)
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
