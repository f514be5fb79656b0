package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

var demandCfg = domain.EndpointConfig{
	ID:           "ail_demand",
	Granularity:  domain.GranularityAnnual,
	Subfolder:    "Historical AIL Demand",
	FileTemplate: "Metered_Demand_{year}.csv",
	Columns:      []string{"begin_datetime_utc", "alberta_internal_load"},
}

func table(rows ...[]string) *domain.Table {
	t := domain.NewTable(demandCfg.Columns...)
	t.Rows = rows
	return t
}

func TestStore_WriteReadReplace(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	require.NoError(t, s.WritePeriod(ctx, demandCfg, 2024, table([]string{"2024-01-01 07:00", "1"}), storage.Replace))
	require.NoError(t, s.WritePeriod(ctx, demandCfg, 2024, table([]string{"2024-01-01 08:00", "2"}), storage.Replace))

	got, err := s.ReadPeriod(ctx, demandCfg, 2024)
	require.NoError(t, err)
	assert.Equal(t, demandCfg.Columns, got.Columns)
	assert.Equal(t, [][]string{{"2024-01-01 08:00", "2"}}, got.Rows)

	_, err = os.Stat(filepath.Join(s.Root(), "Historical AIL Demand", "Metered_Demand_2024.csv"))
	assert.NoError(t, err)
}

func TestStore_Append(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	require.NoError(t, s.WritePeriod(ctx, demandCfg, 2024, table([]string{"a", "1"}), storage.Append))
	require.NoError(t, s.WritePeriod(ctx, demandCfg, 2024, table([]string{"b", "2"}, []string{"c", "3"}), storage.Append))

	got, err := s.ReadPeriod(ctx, demandCfg, 2024)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, "c", got.Rows[2][0])
}

func TestStore_AppendColumnMismatch(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.WritePeriod(ctx, demandCfg, 2024, table([]string{"a", "1"}), storage.Replace))

	other := domain.NewTable("alberta_internal_load", "begin_datetime_utc")
	other.Rows = [][]string{{"1", "a"}}
	err := s.WritePeriod(ctx, demandCfg, 2024, other, storage.Append)
	assert.ErrorIs(t, err, storage.ErrColumnMismatch)
}

func TestStore_ReadMissing(t *testing.T) {
	_, err := New(t.TempDir()).ReadPeriod(context.Background(), demandCfg, 1999)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestStore_ListPeriodsIgnoresConsolidated(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	for _, y := range []int{2025, 2023, 2024} {
		require.NoError(t, s.WritePeriod(ctx, demandCfg, y, table(), storage.Replace))
	}
	_, err := s.WriteSeries(ctx, demandCfg, &domain.ConsolidatedSeries{MinYear: 2023, MaxYear: 2025, Table: table()})
	require.NoError(t, err)

	years, err := s.ListPeriods(ctx, demandCfg)
	require.NoError(t, err)
	assert.Equal(t, []int{2023, 2024, 2025}, years)
}

func TestStore_ListPeriodsEmpty(t *testing.T) {
	years, err := New(t.TempDir()).ListPeriods(context.Background(), demandCfg)
	require.NoError(t, err)
	assert.Empty(t, years)
}

func TestStore_SeriesLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	loc, err := s.WriteSeries(ctx, demandCfg, &domain.ConsolidatedSeries{MinYear: 2020, MaxYear: 2024, Table: table([]string{"x", "1"})})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("Historical AIL Demand", "Metered_Demand_2020_to_2024.csv"), loc)

	got, err := s.ReadTable(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	require.NoError(t, s.RemoveSeries(ctx, loc))
	require.NoError(t, s.RemoveSeries(ctx, loc), "second removal is a no-op")

	_, err = s.ReadTable(ctx, loc)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.WritePeriod(ctx, demandCfg, 2024, table(), storage.Replace))

	require.NoError(t, s.Purge(ctx, demandCfg))
	years, err := s.ListPeriods(ctx, demandCfg)
	require.NoError(t, err)
	assert.Empty(t, years)

	err = s.Purge(ctx, domain.EndpointConfig{ID: "root"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestStore_QuotedCells(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.WriteTable(ctx, "x.csv", table([]string{`a,"b"`, "line\nbreak"})))

	got, err := s.ReadTable(ctx, "x.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{`a,"b"`, "line\nbreak"}, got.Rows[0])
}

func TestManifest_RoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	m := NewManifest(root)

	_, err := m.Get(ctx, "ail_demand")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := &domain.ManifestRecord{
		Endpoint:  "ail_demand",
		MinYear:   2020,
		MaxYear:   2024,
		RowCount:  43848,
		Complete:  true,
		Path:      "Historical AIL Demand/Metered_Demand_2020_to_2024.csv",
		RunID:     "run-1",
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, m.Upsert(ctx, rec))
	require.NoError(t, m.Upsert(ctx, &domain.ManifestRecord{Endpoint: "pool_price", MinYear: 2021, MaxYear: 2024}))

	// A fresh instance reads what the first one wrote.
	got, err := NewManifest(root).Get(ctx, "ail_demand")
	require.NoError(t, err)
	assert.Equal(t, rec.Path, got.Path)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))

	all, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ail_demand", all[0].Endpoint)

	assert.ErrorIs(t, m.Upsert(ctx, &domain.ManifestRecord{}), storage.ErrInvalidInput)
}
