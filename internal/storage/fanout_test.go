package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
	"aeso-harvester/internal/storage/memory"
)

type failingWriter struct{}

func (failingWriter) WritePeriod(context.Context, domain.EndpointConfig, int, *domain.Table, storage.WriteMode) error {
	return errors.New("sink down")
}

func TestFanout_WritesEverySink(t *testing.T) {
	ctx := context.Background()
	a, b := memory.NewPeriodStore(), memory.NewPeriodStore()
	cfg := domain.EndpointConfig{ID: "pool_price", Granularity: domain.GranularityAnnual}
	table := domain.NewTable("begin_datetime_utc", "pool_price")
	table.Rows = [][]string{{"2024-01-01 07:00", "42.1"}}

	require.NoError(t, storage.Fanout{a, b}.WritePeriod(ctx, cfg, 2024, table, storage.Replace))

	for _, s := range []*memory.PeriodStore{a, b} {
		got, err := s.ReadPeriod(ctx, cfg, 2024)
		require.NoError(t, err)
		assert.Equal(t, table.Rows, got.Rows)
	}
}

func TestFanout_StopsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	after := memory.NewPeriodStore()
	cfg := domain.EndpointConfig{ID: "pool_price", Granularity: domain.GranularityAnnual}

	err := storage.Fanout{failingWriter{}, after}.WritePeriod(ctx, cfg, 2024, domain.NewTable("c"), storage.Replace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink 0")

	_, err = after.ReadPeriod(ctx, cfg, 2024)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMirroredManifest(t *testing.T) {
	ctx := context.Background()
	primary, mirror := memory.NewManifestStore(), memory.NewManifestStore()
	m := &storage.MirroredManifest{Primary: primary, Mirrors: []storage.ManifestStore{mirror}}

	_, err := m.Get(ctx, "pool_price")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := &domain.ManifestRecord{Endpoint: "pool_price", MinYear: 2020, MaxYear: 2024, Path: "Historical Pool Price/pool_price_data_2020_to_2024.csv"}
	require.NoError(t, m.Upsert(ctx, rec))

	got, err := m.Get(ctx, "pool_price")
	require.NoError(t, err)
	assert.Equal(t, rec.Path, got.Path)

	mirrored, err := mirror.Get(ctx, "pool_price")
	require.NoError(t, err)
	assert.Equal(t, 2024, mirrored.MaxYear)

	all, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
