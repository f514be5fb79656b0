// Package orchestrator runs a harvest: it plans the windows of every
// enabled endpoint, fetches and normalizes them, writes the periods and
// consolidates the results.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aeso-harvester/internal/consolidation"
	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/identity"
	"aeso-harvester/internal/normalization"
	"aeso-harvester/internal/observability"
	"aeso-harvester/internal/registry"
	"aeso-harvester/internal/schedule"
	"aeso-harvester/internal/storage"
)

// Fetcher retrieves the raw payload of one window.
type Fetcher interface {
	Fetch(ctx context.Context, cfg domain.EndpointConfig, w domain.FetchWindow) (domain.RawBatch, error)
}

// Orchestrator coordinates one harvest run.
// Flow: schedule → fetch → normalize → identity → write → consolidate → tie lines
type Orchestrator struct {
	registry *registry.Registry
	fetcher  Fetcher
	writer   storage.PeriodWriter
	store    storage.OutputStore
	manifest storage.ManifestStore
	failures storage.FailureStore
	metrics  *observability.Metrics
	logger   *zap.Logger

	rangeStart time.Time
	rangeEnd   time.Time
	workers    int
	runID      string
	now        func() time.Time

	deleteExisting    bool
	consolidate       bool
	allowPartialFinal bool
	tieLines          bool
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Registry *registry.Registry
	Fetcher  Fetcher
	Store    storage.OutputStore // file output; reads for consolidation and tie lines

	// Writer receives every normalized period. Defaults to Store; pass a
	// storage.Fanout to add relational sinks.
	Writer   storage.PeriodWriter
	Manifest storage.ManifestStore
	Failures storage.FailureStore // optional
	Metrics  *observability.Metrics
	Logger   *zap.Logger

	RangeStart time.Time
	RangeEnd   time.Time
	Workers    int // concurrent endpoints, default 1

	DeleteExisting bool // purge each running endpoint's output first
	Consolidate    bool // CONSOLIDATE_FILES; endpoints must also opt in

	// AllowPartialFinalYear exempts the last year from the completeness
	// gate when the range ends before December 31.
	AllowPartialFinalYear bool

	// TieLines runs the tie-line pipeline after harvesting.
	TieLines bool

	RunID string           // default: random UUID
	Now   func() time.Time // default: time.Now
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := opts.Writer
	if writer == nil && opts.Store != nil {
		writer = opts.Store
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		registry:          opts.Registry,
		fetcher:           opts.Fetcher,
		writer:            writer,
		store:             opts.Store,
		manifest:          opts.Manifest,
		failures:          opts.Failures,
		metrics:           opts.Metrics,
		logger:            logger.Named("orchestrator").With(zap.String("run_id", runID)),
		rangeStart:        opts.RangeStart,
		rangeEnd:          opts.RangeEnd,
		workers:           workers,
		runID:             runID,
		now:               now,
		deleteExisting:    opts.DeleteExisting,
		consolidate:       opts.Consolidate,
		allowPartialFinal: opts.AllowPartialFinalYear && schedule.EndsMidYear(opts.RangeEnd),
		tieLines:          opts.TieLines,
	}
}

// RunID returns the identifier stamped on manifests and failure records.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// EndpointResult summarizes the harvest of one endpoint.
type EndpointResult struct {
	Endpoint       string
	WindowsPlanned int
	WindowsWritten int
	RowsWritten    int
	Identity       *domain.IdentitySnapshot // last snapshot; nil without AssetKeyColumn
	FirstSeen      map[domain.AssetKey]domain.FetchWindow
	Manifest       *domain.ManifestRecord // nil when not consolidated
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID     string
	Endpoints []EndpointResult // registry order
	TieLines  *TieLineResult
	Failures  []Failure
}

// Failed reports whether any failure was recorded.
func (r *RunResult) Failed() bool {
	return len(r.Failures) > 0
}

// Run executes the harvest.
// Phases:
//  1. Purge existing output (DeleteExisting)
//  2. Harvest every enabled endpoint on the worker pool; each endpoint
//     walks its windows in order and is then consolidated
//  3. Tie lines (TieLines)
//  4. Persist failures
//
// The returned error is non-nil only for setup problems or cancellation.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	started := o.now()
	collector := NewCollector(o.logger, o.metrics)
	result := &RunResult{RunID: o.runID}

	endpoints := o.registry.Enabled()
	dispatcher, err := normalization.NewDispatcher(endpoints...)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	o.logger.Info("run started",
		zap.Strings("endpoints", endpointIDs(endpoints)),
		zap.String("start", o.rangeStart.Format(domain.DateLayout)),
		zap.String("end", o.rangeEnd.Format(domain.DateLayout)),
		zap.Int("workers", o.workers))

	// Phase 1
	if o.deleteExisting {
		for _, ep := range endpoints {
			if err := o.store.Purge(ctx, ep); err != nil {
				collector.Record(Failure{Endpoint: ep.ID, Stage: StagePurge, Err: err})
				continue
			}
			o.logger.Info("purged existing output", zap.String("endpoint", ep.ID))
		}
	}

	// Phase 2
	results := make([]EndpointResult, len(endpoints))
	pool := pond.NewPool(o.workers)
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, ep := range endpoints {
		group.Submit(func() {
			results[i] = o.harvestEndpoint(groupCtx, ep, dispatcher, collector)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		o.logger.Error("harvest group failed", zap.Error(err))
	}
	pool.StopAndWait()
	result.Endpoints = results

	// Phase 3
	if o.tieLines && ctx.Err() == nil {
		result.TieLines = o.runTieLines(ctx, schedule.Years(o.rangeStart, o.rangeEnd), collector)
	}

	// Phase 4
	result.Failures = collector.Failures()
	o.persistFailures(ctx, collector)

	elapsed := o.now().Sub(started)
	o.metrics.RecordRun("harvest", elapsed.Seconds(), !result.Failed(), float64(o.now().Unix()))
	o.logger.Info("run finished",
		zap.Duration("elapsed", elapsed),
		zap.Int("failures", len(result.Failures)))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("run cancelled: %w", err)
	}
	return result, nil
}

func (o *Orchestrator) validate() error {
	switch {
	case o.registry == nil:
		return errors.New("orchestrator: registry is required")
	case o.fetcher == nil:
		return errors.New("orchestrator: fetcher is required")
	case o.store == nil:
		return errors.New("orchestrator: store is required")
	case o.manifest == nil:
		return errors.New("orchestrator: manifest store is required")
	}
	return nil
}

// harvestEndpoint walks the windows of one endpoint in order, then
// consolidates it.
func (o *Orchestrator) harvestEndpoint(ctx context.Context, cfg domain.EndpointConfig, d *normalization.Dispatcher, col *Collector) EndpointResult {
	res := EndpointResult{Endpoint: cfg.ID}
	logger := o.logger.With(zap.String("endpoint", cfg.ID))

	windows, err := schedule.Plan(o.rangeStart, o.rangeEnd, cfg.Granularity)
	if err != nil {
		col.Record(Failure{Endpoint: cfg.ID, Stage: StageSchedule, Err: err})
		return res
	}
	res.WindowsPlanned = len(windows)

	var tracker *identity.Tracker
	if cfg.AssetKeyColumn != "" {
		tracker, err = identity.NewTracker(cfg)
		if err != nil {
			col.Record(Failure{Endpoint: cfg.ID, Stage: StageIdentity, Err: err})
			return res
		}
	}

	// Years whose file has been truncated by this run.
	started := make(map[int]bool)

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			col.Record(Failure{Endpoint: cfg.ID, Window: w.String(), Year: w.Year, Stage: StageFetch, Err: err})
			return res
		}

		decision, rows := o.harvestWindow(ctx, cfg, w, d, tracker, started, col, &res)
		switch decision {
		case Abort, SkipEndpoint:
			return res
		}
		if rows >= 0 {
			res.WindowsWritten++
			res.RowsWritten += rows
		}
	}

	fields := []zap.Field{
		zap.Int("windows", res.WindowsPlanned),
		zap.Int("written", res.WindowsWritten),
		zap.Int("rows", res.RowsWritten),
	}
	if tracker != nil {
		res.FirstSeen = firstSeen(tracker)
		fields = append(fields, zap.Int("asset_keys", len(res.FirstSeen)))
	}
	logger.Info("endpoint harvested", fields...)

	if o.consolidate && cfg.Consolidate && cfg.IsTimeSliced() {
		res.Manifest = o.consolidateEndpoint(ctx, cfg, col)
	}
	return res
}

// harvestWindow fetches, normalizes and writes one window. It returns the
// rows written, or -1 when the window failed.
func (o *Orchestrator) harvestWindow(
	ctx context.Context,
	cfg domain.EndpointConfig,
	w domain.FetchWindow,
	d *normalization.Dispatcher,
	tracker *identity.Tracker,
	started map[int]bool,
	col *Collector,
	res *EndpointResult,
) (Decision, int) {
	fail := func(stage Stage, err error) (Decision, int) {
		f := Failure{Endpoint: cfg.ID, Window: w.String(), Year: w.Year, Stage: stage, Err: err}
		if ctx.Err() != nil {
			f.Kind = KindCancelled
		}
		return col.Record(f), -1
	}

	fetchStart := time.Now()
	batch, err := o.fetcher.Fetch(ctx, cfg, w)
	if err != nil {
		return fail(StageFetch, err)
	}
	o.metrics.RecordWindow(cfg.ID, time.Since(fetchStart).Seconds())

	table, err := d.Normalize(cfg, batch)
	if err != nil {
		return fail(StageNormalize, err)
	}

	if tracker != nil {
		snap, err := tracker.Observe(w, table)
		if err != nil {
			return fail(StageIdentity, err)
		}
		res.Identity = &snap
		o.metrics.RecordNewKeys(cfg.ID, len(snap.New))
		if len(snap.New) > 0 && w.Seq > 0 {
			o.logger.Info("new asset keys",
				zap.String("endpoint", cfg.ID),
				zap.String("window", w.String()),
				zap.Int("count", len(snap.New)),
				zap.Strings("keys", keyStrings(snap.New)))
		}
	}

	fetched := table.Len()
	year := periodYear(cfg, w)
	mode := storage.Replace
	if started[year] {
		mode = storage.Append
	} else if resumesYear(cfg, w) {
		kept, err := o.earlierRows(ctx, cfg, year, w.Start, table)
		if err != nil {
			return fail(StageWrite, err)
		}
		if len(kept) > 0 {
			table = &domain.Table{Columns: table.Columns, Rows: append(kept, table.Rows...)}
		}
	}
	if err := o.writer.WritePeriod(ctx, cfg, year, table, mode); err != nil {
		return fail(StageWrite, err)
	}
	started[year] = true
	o.metrics.RecordRows(cfg.ID, fetched)

	return Continue, fetched
}

// resumesYear reports whether w is the first window of a run that starts
// after January 1 of its year.
func resumesYear(cfg domain.EndpointConfig, w domain.FetchWindow) bool {
	if !cfg.IsTimeSliced() || cfg.LocalTimeColumn == "" {
		return false
	}
	jan1 := time.Date(w.Year, time.January, 1, 0, 0, 0, 0, w.Start.Location())
	return w.Start.After(jan1)
}

// earlierRows returns the stored rows of year stamped before start. The
// year file is rewritten from them so a mid-year run keeps what an
// earlier run fetched.
func (o *Orchestrator) earlierRows(ctx context.Context, cfg domain.EndpointConfig, year int, start time.Time, fresh *domain.Table) ([][]string, error) {
	stored, err := o.store.ReadPeriod(ctx, cfg, year)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s %d: %w", cfg.ID, year, err)
	}
	if stored.Len() == 0 {
		return nil, nil
	}
	if !stored.SameColumns(fresh) {
		return nil, fmt.Errorf("stored %s %d has columns [%s], want [%s]",
			cfg.ID, year, strings.Join(stored.Columns, ","), strings.Join(fresh.Columns, ","))
	}
	col, err := stored.MustIndex(cfg.LocalTimeColumn)
	if err != nil {
		return nil, err
	}

	var kept [][]string
	for _, row := range stored.Rows {
		ts, err := domain.ParseTimestamp(row[col])
		if err != nil {
			return nil, fmt.Errorf("stored %s %d: %w", cfg.ID, year, err)
		}
		if ts.Before(start) {
			kept = append(kept, row)
		}
	}
	return kept, nil
}

func (o *Orchestrator) consolidateEndpoint(ctx context.Context, cfg domain.EndpointConfig, col *Collector) *domain.ManifestRecord {
	c := consolidation.New(consolidation.Options{
		Reader:                o.store,
		Writer:                o.store,
		Manifest:              o.manifest,
		Logger:                o.logger,
		RunID:                 o.runID,
		AllowPartialFinalYear: o.allowPartialFinal,
		Now:                   o.now,
	})
	rec, err := c.Run(ctx, cfg)
	if err != nil {
		col.Record(Failure{Endpoint: cfg.ID, Stage: StageConsolidate, Err: err, Year: failedYear(err)})
		o.metrics.RecordConsolidation(cfg.ID, "failed")
		return nil
	}
	o.metrics.RecordConsolidation(cfg.ID, "ok")
	return rec
}

func (o *Orchestrator) persistFailures(ctx context.Context, col *Collector) {
	if o.failures == nil || col.Len() == 0 {
		return
	}
	if err := o.failures.InsertBulk(context.WithoutCancel(ctx), col.Records(o.runID)); err != nil {
		o.logger.Error("persist failures", zap.Error(err))
	}
}

// firstSeen maps every key the tracker knows to the window it first
// appeared in.
func firstSeen(t *identity.Tracker) map[domain.AssetKey]domain.FetchWindow {
	known := t.Known()
	out := make(map[domain.AssetKey]domain.FetchWindow, len(known))
	for _, k := range known {
		if w, ok := t.FirstSeen(k); ok {
			out[k] = w
		}
	}
	return out
}

// periodYear is the output year of a window; list endpoints have one
// unnamed period.
func periodYear(cfg domain.EndpointConfig, w domain.FetchWindow) int {
	if !cfg.IsTimeSliced() {
		return 0
	}
	return w.Year
}

func failedYear(err error) int {
	var incomplete *consolidation.IncompleteDataError
	if errors.As(err, &incomplete) {
		return incomplete.Year
	}
	return 0
}

func endpointIDs(endpoints []domain.EndpointConfig) []string {
	ids := make([]string, len(endpoints))
	for i, ep := range endpoints {
		ids[i] = ep.ID
	}
	return ids
}

func keyStrings(keys []domain.AssetKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
