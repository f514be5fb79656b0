package clickhouse

import (
	"context"
	"fmt"
	"time"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// ManifestStore implements storage.ManifestStore on a ReplacingMergeTree.
// Reads use FINAL so only the latest version per endpoint is visible.
type ManifestStore struct {
	conn *Conn
}

// Compile-time interface check.
var _ storage.ManifestStore = (*ManifestStore)(nil)

// NewManifestStore creates a new ClickHouse manifest store.
func NewManifestStore(conn *Conn) *ManifestStore {
	return &ManifestStore{conn: conn}
}

// Get returns the latest record for endpoint.
func (s *ManifestStore) Get(ctx context.Context, endpoint string) (*domain.ManifestRecord, error) {
	records, err := s.query(ctx, `WHERE endpoint = ?`, endpoint)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// Upsert inserts a new version of the record.
func (s *ManifestStore) Upsert(ctx context.Context, rec *domain.ManifestRecord) error {
	if rec == nil || rec.Endpoint == "" {
		return storage.ErrInvalidInput
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	var complete uint8
	if rec.Complete {
		complete = 1
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO harvest_manifest (endpoint, min_year, max_year, row_count, complete, path, run_id, updated_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	if err := batch.Append(rec.Endpoint, uint16(rec.MinYear), uint16(rec.MaxYear), uint64(rec.RowCount),
		complete, rec.Path, rec.RunID, updated.UTC()); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	return batch.Send()
}

// List returns the latest record of every endpoint ordered by endpoint.
func (s *ManifestStore) List(ctx context.Context) ([]*domain.ManifestRecord, error) {
	return s.query(ctx, "")
}

func (s *ManifestStore) query(ctx context.Context, where string, args ...any) ([]*domain.ManifestRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT endpoint, min_year, max_year, row_count, complete, path, run_id, updated_at
		FROM harvest_manifest FINAL
		`+where+`
		ORDER BY endpoint
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query manifest: %w", err)
	}
	defer rows.Close()

	var out []*domain.ManifestRecord
	for rows.Next() {
		var (
			rec              domain.ManifestRecord
			minYear, maxYear uint16
			rowCount         uint64
			complete         uint8
		)
		if err := rows.Scan(&rec.Endpoint, &minYear, &maxYear, &rowCount, &complete, &rec.Path, &rec.RunID, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.MinYear, rec.MaxYear, rec.RowCount = int(minYear), int(maxYear), int(rowCount)
		rec.Complete = complete == 1
		out = append(out, &rec)
	}
	return out, rows.Err()
}
