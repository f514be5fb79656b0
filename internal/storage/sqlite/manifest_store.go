package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// ManifestStore is a SQLite implementation of storage.ManifestStore backed
// by the harvest_manifest table.
type ManifestStore struct {
	db *DB
}

// Compile-time interface check.
var _ storage.ManifestStore = (*ManifestStore)(nil)

// NewManifestStore creates a new SQLite manifest store.
func NewManifestStore(db *DB) *ManifestStore {
	return &ManifestStore{db: db}
}

// Get returns the record for endpoint.
func (s *ManifestStore) Get(ctx context.Context, endpoint string) (*domain.ManifestRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT endpoint, min_year, max_year, row_count, complete, path, run_id, updated_at
		FROM harvest_manifest
		WHERE endpoint = ?
	`, endpoint)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Upsert inserts or replaces the record for rec.Endpoint.
func (s *ManifestStore) Upsert(ctx context.Context, rec *domain.ManifestRecord) error {
	if rec == nil || rec.Endpoint == "" {
		return storage.ErrInvalidInput
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO harvest_manifest (endpoint, min_year, max_year, row_count, complete, path, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			min_year = excluded.min_year,
			max_year = excluded.max_year,
			row_count = excluded.row_count,
			complete = excluded.complete,
			path = excluded.path,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, rec.Endpoint, rec.MinYear, rec.MaxYear, rec.RowCount, rec.Complete, rec.Path, rec.RunID,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert manifest %s: %w", rec.Endpoint, err)
	}
	return nil
}

// List returns all records ordered by endpoint.
func (s *ManifestStore) List(ctx context.Context) ([]*domain.ManifestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint, min_year, max_year, row_count, complete, path, run_id, updated_at
		FROM harvest_manifest
		ORDER BY endpoint
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ManifestRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.ManifestRecord, error) {
	var rec domain.ManifestRecord
	var updated string
	if err := row.Scan(&rec.Endpoint, &rec.MinYear, &rec.MaxYear, &rec.RowCount,
		&rec.Complete, &rec.Path, &rec.RunID, &updated); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updated, err)
	}
	rec.UpdatedAt = ts
	return &rec, nil
}
