// Package main provides the harvester CLI.
//
// Usage:
//
//	harvester [-config harvester.toml] [-metrics-addr :9090] run
//	harvester tielines -years 2022,2023
//	harvester endpoints
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"aeso-harvester/internal/aeso"
	"aeso-harvester/internal/config"
	"aeso-harvester/internal/observability"
	"aeso-harvester/internal/orchestrator"
	"aeso-harvester/internal/registry"
	"aeso-harvester/internal/schedule"
)

const (
	exitOK       = 0
	exitFailures = 1
	exitError    = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "harvester.toml", "TOML configuration file (missing file is ignored)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides [metrics] addr)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		return exitError
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitError
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	if command == "endpoints" {
		return listEndpoints(cfg)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		return runHarvest(ctx, cfg, logger)
	case "tielines":
		fs := flag.NewFlagSet("tielines", flag.ContinueOnError)
		years := fs.String("years", "", "Comma-separated years (default: every year of the harvest range)")
		if err := fs.Parse(args); err != nil {
			return exitError
		}
		return runTieLines(ctx, cfg, logger, *years)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", command)
		usage()
		return exitError
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: harvester [flags] <command>

Commands:
  run        harvest every enabled endpoint, consolidate and build tie lines
  tielines   rebuild combined demand from harvested output
  endpoints  list the endpoint catalog with effective flags

Flags:
`)
	flag.PrintDefaults()
}

func runHarvest(ctx context.Context, cfg *config.Config, logger *zap.Logger) int {
	h, err := setup(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return exitError
	}
	defer h.Close()

	orch := orchestrator.New(h.options(cfg))
	result, err := orch.Run(ctx)
	if err != nil && result == nil {
		logger.Error("harvest failed", zap.Error(err))
		return exitError
	}
	printResult(result)
	if err != nil {
		logger.Warn("harvest interrupted", zap.Error(err))
		return exitFailures
	}
	if result.Failed() {
		return exitFailures
	}
	return exitOK
}

func runTieLines(ctx context.Context, cfg *config.Config, logger *zap.Logger, yearsFlag string) int {
	h, err := setup(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return exitError
	}
	defer h.Close()

	opts := h.options(cfg)
	years, err := parseYears(yearsFlag, opts.RangeStart, opts.RangeEnd)
	if err != nil {
		logger.Error("bad -years", zap.Error(err))
		return exitError
	}

	result, err := orchestrator.New(opts).RunTieLines(ctx, years)
	if err != nil && result == nil {
		logger.Error("tie lines failed", zap.Error(err))
		return exitError
	}
	printResult(result)
	if err != nil || result.Failed() {
		return exitFailures
	}
	return exitOK
}

func listEndpoints(cfg *config.Config) int {
	reg, err := cfg.Registry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGRANULARITY\tRUN\tCONSOLIDATE\tOUTPUT")
	for _, ep := range append(reg.All(), registry.CombinedDemand()) {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s/%s\n",
			ep.ID, ep.Granularity, ep.Run, ep.Consolidate, ep.Subfolder, ep.FileTemplate)
	}
	if err := w.Flush(); err != nil {
		return exitError
	}
	return exitOK
}

// harness holds the wired dependencies of one command.
type harness struct {
	sinks   *sinks
	client  *aeso.Client
	metrics *observability.Metrics
	server  *http.Server
	logger  *zap.Logger
	reg     *registry.Registry
	runID   string
}

func setup(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(promReg, "")

	runID := uuid.NewString()
	s, err := openSinks(ctx, cfg, runID, logger)
	if err != nil {
		return nil, err
	}

	client := aeso.NewClient(cfg.API.APIKey,
		aeso.WithBaseURL(cfg.API.BaseURL),
		aeso.WithRateLimit(cfg.API.RateLimit),
		aeso.WithTimeout(cfg.API.GetTimeout()),
		aeso.WithRetry(cfg.RetryPolicy()),
		aeso.WithLogger(logger),
	)

	h := &harness{sinks: s, client: client, metrics: metrics, logger: logger, reg: reg, runID: runID}
	if cfg.Metrics.Addr != "" {
		h.server = startMetricsServer(cfg.Metrics.Addr, promReg, logger)
	}
	return h, nil
}

func (h *harness) options(cfg *config.Config) orchestrator.Options {
	start, end, _ := cfg.Range(time.Now())
	fileOutput := cfg.Output.CSV
	if !fileOutput && (cfg.Harvest.ConsolidateAll || cfg.Harvest.TieLines) {
		h.logger.Warn("csv output disabled; consolidation and tie lines skipped")
	}
	return orchestrator.Options{
		Registry:              h.reg,
		Fetcher:               h.client,
		Store:                 h.sinks.files,
		Writer:                h.sinks.writer,
		Manifest:              h.sinks.manifest,
		Failures:              h.sinks.failures,
		Metrics:               h.metrics,
		Logger:                h.logger,
		RangeStart:            start,
		RangeEnd:              end,
		Workers:               cfg.Harvest.Workers,
		DeleteExisting:        cfg.Harvest.DeleteExisting,
		Consolidate:           fileOutput && cfg.Harvest.ConsolidateAll,
		AllowPartialFinalYear: cfg.Harvest.AllowPartialEnd,
		TieLines:              fileOutput && cfg.Harvest.TieLines,
		RunID:                 h.runID,
	}
}

// Close stops the metrics server and closes every sink.
func (h *harness) Close() {
	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	h.sinks.Close()
}

func startMetricsServer(addr string, g prometheus.Gatherer, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(g))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

// parseYears parses a comma-separated year list; empty means every year
// touched by the harvest range.
func parseYears(s string, start, end time.Time) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return schedule.Years(start, end), nil
	}
	var years []int
	for _, part := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || y < 1900 || y > 9999 {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		years = append(years, y)
	}
	return years, nil
}

func printResult(r *orchestrator.RunResult) {
	fmt.Printf("Run %s\n", r.RunID)
	for _, ep := range r.Endpoints {
		fmt.Printf("  %-28s windows %d/%d  rows %d", ep.Endpoint, ep.WindowsWritten, ep.WindowsPlanned, ep.RowsWritten)
		if ep.FirstSeen != nil {
			fmt.Printf("  assets %d", len(ep.FirstSeen))
		}
		if ep.Manifest != nil {
			fmt.Printf("  -> %s", ep.Manifest.Path)
		}
		fmt.Println()
	}
	if tl := r.TieLines; tl != nil {
		fmt.Printf("  tie lines: years %v", tl.Years)
		if len(tl.Unclassified) > 0 {
			fmt.Printf("  unclassified %v", tl.Unclassified)
		}
		fmt.Println()
	}
	if len(r.Failures) > 0 {
		fmt.Printf("  Failures: %d\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Printf("    - %s\n", f.Error())
		}
	}
}
