package storage

import (
	"context"

	"aeso-harvester/internal/domain"
)

// WriteMode selects how a period write treats existing rows.
type WriteMode int

const (
	// Replace discards any rows already stored for the period.
	Replace WriteMode = iota
	// Append adds rows after those already stored for the period.
	Append
)

// String returns the string representation of WriteMode.
func (m WriteMode) String() string {
	if m == Append {
		return "append"
	}
	return "replace"
}

// PeriodWriter persists one normalized table to its target period.
// List endpoints ignore year.
type PeriodWriter interface {
	// WritePeriod stores table for (cfg, year). Append mode requires the
	// stored column order to match; otherwise ErrColumnMismatch.
	WritePeriod(ctx context.Context, cfg domain.EndpointConfig, year int, table *domain.Table, mode WriteMode) error
}

// TableReader loads periods written by a PeriodWriter.
type TableReader interface {
	// ReadPeriod returns the stored table. Returns ErrNotFound if absent.
	ReadPeriod(ctx context.Context, cfg domain.EndpointConfig, year int) (*domain.Table, error)

	// ListPeriods returns the stored years for cfg in ascending order.
	ListPeriods(ctx context.Context, cfg domain.EndpointConfig) ([]int, error)
}

// SeriesWriter persists consolidated multi-year series.
type SeriesWriter interface {
	// WriteSeries stores the series and returns its location relative to
	// the output root.
	WriteSeries(ctx context.Context, cfg domain.EndpointConfig, series *domain.ConsolidatedSeries) (string, error)

	// RemoveSeries deletes a previously written series. Missing targets are not an error.
	RemoveSeries(ctx context.Context, location string) error
}

// Purger deletes all stored output of one endpoint.
type Purger interface {
	Purge(ctx context.Context, cfg domain.EndpointConfig) error
}

// ManifestStore records the last consolidated output per endpoint.
type ManifestStore interface {
	// Get returns the record for endpoint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, endpoint string) (*domain.ManifestRecord, error)

	// Upsert inserts or replaces the record keyed by rec.Endpoint.
	Upsert(ctx context.Context, rec *domain.ManifestRecord) error

	// List returns all records ordered by endpoint.
	List(ctx context.Context) ([]*domain.ManifestRecord, error)
}

// PeriodStore is the full file-backed store used by the harvester.
type PeriodStore interface {
	PeriodWriter
	TableReader
	SeriesWriter
	Purger
}

// ArtifactStore keeps derived tables addressed by a location relative to
// the output root.
type ArtifactStore interface {
	WriteTable(ctx context.Context, location string, table *domain.Table) error

	// ReadTable returns ErrNotFound if nothing is stored at location.
	ReadTable(ctx context.Context, location string) (*domain.Table, error)
}

// OutputStore is a PeriodStore that also keeps derived artefacts.
type OutputStore interface {
	PeriodStore
	ArtifactStore
}

// FailureStore keeps the failures reported by each run.
type FailureStore interface {
	// InsertBulk adds failures atomically.
	InsertBulk(ctx context.Context, failures []*domain.FailureRecord) error

	// GetByRunID returns the failures of one run in insertion order.
	GetByRunID(ctx context.Context, runID string) ([]*domain.FailureRecord, error)
}
