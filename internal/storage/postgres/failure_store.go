package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// FailureStore is a PostgreSQL implementation of storage.FailureStore.
type FailureStore struct {
	pool *Pool
}

// Compile-time interface check.
var _ storage.FailureStore = (*FailureStore)(nil)

// NewFailureStore creates a new PostgreSQL failure store.
func NewFailureStore(pool *Pool) *FailureStore {
	return &FailureStore{pool: pool}
}

// InsertBulk adds failures atomically using a batch.
func (s *FailureStore) InsertBulk(ctx context.Context, failures []*domain.FailureRecord) error {
	if len(failures) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, f := range failures {
		recorded := f.RecordedAt
		if recorded.IsZero() {
			recorded = time.Now()
		}
		batch.Queue(`
			INSERT INTO harvest_failures (run_id, endpoint, stage, kind, "window", year, message, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, f.RunID, f.Endpoint, f.Stage, f.Kind, f.Window, int32(f.Year), f.Message, recorded)
	}

	br := tx.SendBatch(ctx, batch)
	for range failures {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByRunID returns failures of one run in insertion order.
func (s *FailureStore) GetByRunID(ctx context.Context, runID string) ([]*domain.FailureRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, endpoint, stage, kind, "window", year, message, recorded_at
		FROM harvest_failures
		WHERE run_id = $1
		ORDER BY recorded_at, ctid
	`, runID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.FailureRecord, error) {
		var f domain.FailureRecord
		var year int32
		if err := row.Scan(&f.RunID, &f.Endpoint, &f.Stage, &f.Kind, &f.Window, &year, &f.Message, &f.RecordedAt); err != nil {
			return nil, err
		}
		f.Year = int(year)
		return &f, nil
	})
}
