package storage

import (
	"context"
	"fmt"

	"aeso-harvester/internal/domain"
)

// Fanout writes every period to several sinks in order. The first failure
// stops the write.
type Fanout []PeriodWriter

var _ PeriodWriter = Fanout(nil)

// WritePeriod forwards the table to each sink.
func (f Fanout) WritePeriod(ctx context.Context, cfg domain.EndpointConfig, year int, table *domain.Table, mode WriteMode) error {
	for i, w := range f {
		if err := w.WritePeriod(ctx, cfg, year, table, mode); err != nil {
			return fmt.Errorf("sink %d (%T): %w", i, w, err)
		}
	}
	return nil
}

// MirroredManifest reads from Primary and upserts to Primary and every
// mirror. Mirrors are written only after Primary succeeds.
type MirroredManifest struct {
	Primary ManifestStore
	Mirrors []ManifestStore
}

var _ ManifestStore = (*MirroredManifest)(nil)

// Get returns the primary record.
func (m *MirroredManifest) Get(ctx context.Context, endpoint string) (*domain.ManifestRecord, error) {
	return m.Primary.Get(ctx, endpoint)
}

// Upsert writes rec to the primary, then to each mirror.
func (m *MirroredManifest) Upsert(ctx context.Context, rec *domain.ManifestRecord) error {
	if err := m.Primary.Upsert(ctx, rec); err != nil {
		return err
	}
	for i, mirror := range m.Mirrors {
		if err := mirror.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("manifest mirror %d (%T): %w", i, mirror, err)
		}
	}
	return nil
}

// List returns the primary records.
func (m *MirroredManifest) List(ctx context.Context) ([]*domain.ManifestRecord, error) {
	return m.Primary.List(ctx)
}
