package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

var poolPrice = domain.EndpointConfig{
	ID:           "pool_price",
	Granularity:  domain.GranularityAnnual,
	FileTemplate: "pool_price_data_{year}.csv",
	Columns:      []string{"begin_datetime_utc", "begin_datetime_mpt", "pool_price"},
}

func priceTable(rows ...[]string) *domain.Table {
	t := domain.NewTable(poolPrice.Columns...)
	t.Rows = rows
	return t
}

func TestPeriodSink_WriteRead(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sink := NewPeriodSink(pool)

	require.NoError(t, sink.WritePeriod(ctx, poolPrice, 2024,
		priceTable([]string{"2024-01-01 07:00", "2024-01-01 00:00", "41.5"}), storage.Replace))
	require.NoError(t, sink.WritePeriod(ctx, poolPrice, 2024,
		priceTable([]string{"2024-01-01 08:00", "2024-01-01 01:00", ""}), storage.Append))

	got, err := sink.ReadPeriod(ctx, poolPrice, 2024)
	require.NoError(t, err)
	assert.Equal(t, poolPrice.Columns, got.Columns)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "", got.Rows[1][2])

	// Replace drops earlier rows of the same period only.
	require.NoError(t, sink.WritePeriod(ctx, poolPrice, 2025,
		priceTable([]string{"2025-01-01 07:00", "2025-01-01 00:00", "30"}), storage.Replace))
	require.NoError(t, sink.WritePeriod(ctx, poolPrice, 2024,
		priceTable([]string{"2024-06-01 07:00", "2024-06-01 01:00", "99"}), storage.Replace))

	got, err = sink.ReadPeriod(ctx, poolPrice, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	years, err := sink.ListPeriods(ctx, poolPrice)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, years)
}

func TestPeriodSink_ColumnMismatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sink := NewPeriodSink(pool)
	require.NoError(t, sink.WritePeriod(ctx, poolPrice, 2024, priceTable(), storage.Replace))

	err := NewPeriodSink(pool).WritePeriod(ctx, poolPrice, 2024, domain.NewTable("pool_price"), storage.Append)
	assert.ErrorIs(t, err, storage.ErrColumnMismatch)
}

func TestPeriodSink_ListPeriodsMissingTable(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	years, err := NewPeriodSink(pool).ListPeriods(context.Background(), poolPrice)
	require.NoError(t, err)
	assert.Empty(t, years)
}

func TestManifestStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewManifestStore(pool)

	_, err := store.Get(ctx, "pool_price")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := &domain.ManifestRecord{
		Endpoint: "pool_price", MinYear: 2020, MaxYear: 2024, RowCount: 43848, Complete: true,
		Path: "Historical Pool Price/pool_price_data_2020_to_2024.csv", RunID: "run-a",
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Upsert(ctx, rec))
	rec.MaxYear, rec.RunID = 2025, "run-b"
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, "pool_price")
	require.NoError(t, err)
	assert.Equal(t, 2025, got.MaxYear)
	assert.Equal(t, "run-b", got.RunID)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFailureStore_InsertBulk(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFailureStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.FailureRecord{
		{RunID: "r1", Endpoint: "pool_price", Stage: "fetch", Kind: "transport", Year: 2024, Message: "status 503"},
		{RunID: "r1", Endpoint: "merit_order", Stage: "normalize", Kind: "schema_mismatch", Year: 2024, Message: "data"},
	}))

	got, err := store.GetByRunID(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2024, got[0].Year)
}
