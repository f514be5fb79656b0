package consolidation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// Consolidator loads stored periods, consolidates them and records the
// result in the manifest.
type Consolidator struct {
	reader   storage.TableReader
	writer   storage.SeriesWriter
	manifest storage.ManifestStore
	logger   *zap.Logger
	runID    string
	now      func() time.Time

	allowPartialFinal bool
}

// Options for creating a Consolidator.
type Options struct {
	Reader   storage.TableReader
	Writer   storage.SeriesWriter
	Manifest storage.ManifestStore
	Logger   *zap.Logger
	RunID    string

	// AllowPartialFinalYear exempts the latest year from the gate. Set it
	// when the harvest range ends before December 31.
	AllowPartialFinalYear bool

	// Now overrides the clock used for manifest timestamps.
	Now func() time.Time
}

// New creates a Consolidator.
func New(opts Options) *Consolidator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Consolidator{
		reader:            opts.Reader,
		writer:            opts.Writer,
		manifest:          opts.Manifest,
		logger:            logger.Named("consolidation"),
		runID:             opts.RunID,
		now:               now,
		allowPartialFinal: opts.AllowPartialFinalYear,
	}
}

// Run consolidates every stored year of cfg and writes the series once.
// A previous consolidated file with a different range is removed.
func (c *Consolidator) Run(ctx context.Context, cfg domain.EndpointConfig) (*domain.ManifestRecord, error) {
	years, err := c.reader.ListPeriods(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("list periods %s: %w", cfg.ID, err)
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.ID, ErrNoPeriods)
	}

	tables := make([]domain.YearTable, 0, len(years))
	for _, y := range years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := c.reader.ReadPeriod(ctx, cfg, y)
		if err != nil {
			return nil, fmt.Errorf("read %s/%d: %w", cfg.ID, y, err)
		}
		tables = append(tables, domain.YearTable{Year: y, Table: t})
	}

	series, err := Consolidate(cfg, tables, c.allowPartialFinal)
	if err != nil {
		return nil, err
	}

	loc, err := c.writer.WriteSeries(ctx, cfg, series)
	if err != nil {
		return nil, fmt.Errorf("write series %s: %w", cfg.ID, err)
	}

	prev, err := c.manifest.Get(ctx, cfg.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read manifest %s: %w", cfg.ID, err)
	case prev.Path != "" && prev.Path != loc:
		if err := c.writer.RemoveSeries(ctx, prev.Path); err != nil {
			return nil, fmt.Errorf("remove stale series %s: %w", prev.Path, err)
		}
		c.logger.Info("removed stale consolidated output",
			zap.String("endpoint", cfg.ID),
			zap.String("path", prev.Path))
	}

	rec := &domain.ManifestRecord{
		Endpoint:  cfg.ID,
		MinYear:   series.MinYear,
		MaxYear:   series.MaxYear,
		RowCount:  series.Table.Len(),
		Complete:  series.FinalYearComplete,
		Path:      loc,
		RunID:     c.runID,
		UpdatedAt: c.now().UTC(),
	}
	if err := c.manifest.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("update manifest %s: %w", cfg.ID, err)
	}

	c.logger.Info("consolidated",
		zap.String("endpoint", cfg.ID),
		zap.Int("min_year", rec.MinYear),
		zap.Int("max_year", rec.MaxYear),
		zap.Int("rows", rec.RowCount),
		zap.Bool("final_year_complete", rec.Complete),
		zap.String("path", loc))

	return rec, nil
}
