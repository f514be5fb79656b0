package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// ManifestStore is a PostgreSQL implementation of storage.ManifestStore.
type ManifestStore struct {
	pool *Pool
}

// Compile-time interface check.
var _ storage.ManifestStore = (*ManifestStore)(nil)

// NewManifestStore creates a new PostgreSQL manifest store.
func NewManifestStore(pool *Pool) *ManifestStore {
	return &ManifestStore{pool: pool}
}

// Get returns the record for endpoint.
func (s *ManifestStore) Get(ctx context.Context, endpoint string) (*domain.ManifestRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT endpoint, min_year, max_year, row_count, complete, path, run_id, updated_at
		FROM harvest_manifest
		WHERE endpoint = $1
	`, endpoint)

	rec, err := scanManifest(row)
	if err != nil {
		if isNotFoundError(err) {
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

	_, err := s.pool.Exec(ctx, `
		INSERT INTO harvest_manifest (endpoint, min_year, max_year, row_count, complete, path, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (endpoint) DO UPDATE
		SET min_year = EXCLUDED.min_year,
		    max_year = EXCLUDED.max_year,
		    row_count = EXCLUDED.row_count,
		    complete = EXCLUDED.complete,
		    path = EXCLUDED.path,
		    run_id = EXCLUDED.run_id,
		    updated_at = EXCLUDED.updated_at
	`, rec.Endpoint, int32(rec.MinYear), int32(rec.MaxYear), int64(rec.RowCount), rec.Complete, rec.Path, rec.RunID, rec.UpdatedAt)
	return err
}

// List returns all records ordered by endpoint.
func (s *ManifestStore) List(ctx context.Context) ([]*domain.ManifestRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT endpoint, min_year, max_year, row_count, complete, path, run_id, updated_at
		FROM harvest_manifest
		ORDER BY endpoint
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.ManifestRecord, error) {
		return scanManifest(row)
	})
}

func scanManifest(row pgx.Row) (*domain.ManifestRecord, error) {
	var rec domain.ManifestRecord
	var minYear, maxYear int32
	var rowCount int64
	if err := row.Scan(&rec.Endpoint, &minYear, &maxYear, &rowCount, &rec.Complete, &rec.Path, &rec.RunID, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.MinYear, rec.MaxYear, rec.RowCount = int(minYear), int(maxYear), int(rowCount)
	return &rec, nil
}
