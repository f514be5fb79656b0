package sqlite

import (
	"context"
	"fmt"
	"time"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// FailureStore is a SQLite implementation of storage.FailureStore.
type FailureStore struct {
	db *DB
}

// Compile-time interface check.
var _ storage.FailureStore = (*FailureStore)(nil)

// NewFailureStore creates a new SQLite failure store.
func NewFailureStore(db *DB) *FailureStore {
	return &FailureStore{db: db}
}

// InsertBulk adds failures in one transaction.
func (s *FailureStore) InsertBulk(ctx context.Context, failures []*domain.FailureRecord) (err error) {
	if len(failures) == 0 {
		return nil
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO harvest_failures (run_id, endpoint, stage, kind, "window", year, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range failures {
		recorded := f.RecordedAt
		if recorded.IsZero() {
			recorded = time.Now()
		}
		if _, err = stmt.ExecContext(ctx, f.RunID, f.Endpoint, f.Stage, f.Kind, f.Window, f.Year, f.Message,
			recorded.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	return tx.Commit()
}

// GetByRunID returns failures of one run in insertion order.
func (s *FailureStore) GetByRunID(ctx context.Context, runID string) ([]*domain.FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, endpoint, stage, kind, "window", year, message, recorded_at
		FROM harvest_failures
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FailureRecord
	for rows.Next() {
		var f domain.FailureRecord
		var recorded string
		if err := rows.Scan(&f.RunID, &f.Endpoint, &f.Stage, &f.Kind, &f.Window, &f.Year, &f.Message, &recorded); err != nil {
			return nil, err
		}
		if f.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
