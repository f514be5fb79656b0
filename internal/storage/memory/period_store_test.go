package memory

import (
	"context"
	"errors"
	"testing"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

var poolPrice = domain.EndpointConfig{
	ID:           "pool_price",
	Granularity:  domain.GranularityAnnual,
	Subfolder:    "Historical Pool Price",
	FileTemplate: "pool_price_data_{year}.csv",
	Columns:      []string{"begin_datetime_utc", "pool_price"},
}

func TestPeriodStore_WriteAndRead(t *testing.T) {
	store := NewPeriodStore()
	ctx := context.Background()

	tbl := domain.NewTable(poolPrice.Columns...)
	tbl.Rows = [][]string{{"2024-01-01 07:00", "41.5"}}

	if err := store.WritePeriod(ctx, poolPrice, 2024, tbl, storage.Replace); err != nil {
		t.Fatalf("WritePeriod failed: %v", err)
	}

	// Mutating the caller's table must not leak into the store.
	tbl.Rows[0][1] = "0"

	got, err := store.ReadPeriod(ctx, poolPrice, 2024)
	if err != nil {
		t.Fatalf("ReadPeriod failed: %v", err)
	}
	if got.Rows[0][1] != "41.5" {
		t.Errorf("pool_price = %q, want 41.5", got.Rows[0][1])
	}
}

func TestPeriodStore_AppendMismatch(t *testing.T) {
	store := NewPeriodStore()
	ctx := context.Background()

	if err := store.WritePeriod(ctx, poolPrice, 2024, domain.NewTable(poolPrice.Columns...), storage.Append); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	err := store.WritePeriod(ctx, poolPrice, 2024, domain.NewTable("other"), storage.Append)
	if !errors.Is(err, storage.ErrColumnMismatch) {
		t.Errorf("expected ErrColumnMismatch, got %v", err)
	}
}

func TestPeriodStore_ListAndPurge(t *testing.T) {
	store := NewPeriodStore()
	ctx := context.Background()

	for _, y := range []int{2025, 2023} {
		if err := store.WritePeriod(ctx, poolPrice, y, domain.NewTable(poolPrice.Columns...), storage.Replace); err != nil {
			t.Fatal(err)
		}
	}

	years, _ := store.ListPeriods(ctx, poolPrice)
	if len(years) != 2 || years[0] != 2023 || years[1] != 2025 {
		t.Errorf("ListPeriods = %v, want [2023 2025]", years)
	}

	if err := store.Purge(ctx, poolPrice); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ReadPeriod(ctx, poolPrice, 2023); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after purge, got %v", err)
	}
}

func TestManifestStore_Upsert(t *testing.T) {
	store := NewManifestStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "pool_price"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_ = store.Upsert(ctx, &domain.ManifestRecord{Endpoint: "pool_price", MaxYear: 2024})
	_ = store.Upsert(ctx, &domain.ManifestRecord{Endpoint: "pool_price", MaxYear: 2025})

	rec, err := store.Get(ctx, "pool_price")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.MaxYear != 2025 {
		t.Errorf("MaxYear = %d, want 2025", rec.MaxYear)
	}

	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
