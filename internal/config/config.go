// Package config loads the harvester configuration from TOML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/registry"
	"aeso-harvester/internal/retry"
)

// DefaultService is the environment prefix for API credentials.
const DefaultService = "AESO_NEW"

// Sink drivers.
const (
	SinkNone       = ""
	SinkSQLite     = "sqlite"
	SinkPostgres   = "postgres"
	SinkClickhouse = "clickhouse"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration for a harvest run.
type Config struct {
	Service   string                    `toml:"service"`
	API       APIConfig                 `toml:"api"`
	Harvest   HarvestConfig             `toml:"harvest"`
	Output    OutputConfig              `toml:"output"`
	Sink      SinkConfig                `toml:"sink"`
	Logging   LoggingConfig             `toml:"logging"`
	Metrics   MetricsConfig             `toml:"metrics"`
	Retry     RetryConfig               `toml:"retry"`
	Endpoints map[string]EndpointConfig `toml:"endpoints"`
}

// APIConfig holds AESO API client configuration.
type APIConfig struct {
	BaseURL   string  `toml:"base_url"`
	APIKey    string  `toml:"api_key"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
	Timeout   string  `toml:"timeout"`
}

// GetTimeout parses and returns the per-request timeout.
func (c *APIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// HarvestConfig holds the date range and run toggles.
type HarvestConfig struct {
	StartDate       string `toml:"start_date"` // YYYY-MM-DD
	EndDate         string `toml:"end_date"`   // YYYY-MM-DD, empty = today
	Workers         int    `toml:"workers"`
	DeleteExisting  bool   `toml:"delete_existing_output_files"`
	ConsolidateAll  bool   `toml:"consolidate_files"`
	AllowPartialEnd bool   `toml:"allow_partial_final_year"`
	TieLines        bool   `toml:"tielines"` // classify interchange and join onto demand
}

// OutputConfig holds file output configuration.
type OutputConfig struct {
	Root       string `toml:"root"`
	CSV        bool   `toml:"csv"`
	SQLite     bool   `toml:"sqlite"`
	SQLitePath string `toml:"sqlite_path"` // relative paths resolve under Root
}

// SinkConfig selects an additional relational period sink.
type SinkConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json | console
}

// MetricsConfig holds the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// RetryConfig holds fetch retry settings.
type RetryConfig struct {
	MaxAttempts  int    `toml:"max_attempts"`
	InitialDelay string `toml:"initial_delay"`
	MaxDelay     string `toml:"max_delay"`
}

// EndpointConfig overrides an endpoint's registry defaults.
type EndpointConfig struct {
	Run         *bool `toml:"run"`
	Consolidate *bool `toml:"consolidate"`
}

// NewDefaultConfig returns a Config with defaults.
func NewDefaultConfig() *Config {
	def := retry.DefaultConfig()
	return &Config{
		Service: DefaultService,
		API: APIConfig{
			BaseURL:   "https://api.aeso.ca/",
			RateLimit: 2,
			Timeout:   "60s",
		},
		Harvest: HarvestConfig{
			StartDate:       "2020-01-01",
			Workers:         1,
			ConsolidateAll:  true,
			AllowPartialEnd: true,
		},
		Output: OutputConfig{
			Root:       "output",
			CSV:        true,
			SQLitePath: "aeso.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Retry: RetryConfig{
			MaxAttempts:  def.MaxAttempts,
			InitialDelay: def.InitialDelay.String(),
			MaxDelay:     def.MaxDelay.String(),
		},
	}
}

// Load loads configuration from files with environment overrides. Later
// files override earlier ones; missing files are skipped.
func Load(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to cfg.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HARVEST_SERVICE"); v != "" {
		cfg.Service = v
	}
	prefix := strings.ToUpper(cfg.Service) + "_"

	if v := os.Getenv(prefix + "PRIMARY_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv(prefix + "BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(prefix + "OUTPUT_FOLDER_PATH"); v != "" {
		cfg.Output.Root = v
	}

	toggles := []struct {
		name string
		dst  *bool
	}{
		{"CSV_OUTPUT", &cfg.Output.CSV},
		{"SQLITE_OUTPUT", &cfg.Output.SQLite},
		{"DELETE_EXISTING_OUTPUT_FILES", &cfg.Harvest.DeleteExisting},
		{"CONSOLIDATE_FILES", &cfg.Harvest.ConsolidateAll},
		{"HARVEST_TIELINES", &cfg.Harvest.TieLines},
	}
	for _, t := range toggles {
		if v, ok := os.LookupEnv(t.name); ok {
			*t.dst = parseBool(v)
		}
	}

	if v := os.Getenv("HARVEST_START_DATE"); v != "" {
		cfg.Harvest.StartDate = v
	}
	if v := os.Getenv("HARVEST_END_DATE"); v != "" {
		cfg.Harvest.EndDate = v
	}
	if v := os.Getenv("HARVEST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: HARVEST_WORKERS=%q", ErrInvalidConfig, v)
		}
		cfg.Harvest.Workers = n
	}
	if v := os.Getenv("HARVEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HARVEST_SINK_DRIVER"); v != "" {
		cfg.Sink.Driver = v
	}
	if v := os.Getenv("HARVEST_SINK_DSN"); v != "" {
		cfg.Sink.DSN = v
	}
	return nil
}

// parseBool accepts true/1/yes (any case); everything else is false.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	var problems []string

	if c.API.APIKey == "" {
		problems = append(problems, fmt.Sprintf("api key missing (set %s_PRIMARY_API_KEY)", strings.ToUpper(c.Service)))
	}
	if c.API.BaseURL == "" {
		problems = append(problems, "api base_url is empty")
	}

	start, end, err := c.Range(time.Now())
	if err != nil {
		problems = append(problems, err.Error())
	} else if end.Before(start) {
		problems = append(problems, fmt.Sprintf("end_date %s before start_date %s", end.Format(domain.DateLayout), start.Format(domain.DateLayout)))
	}

	if c.Harvest.Workers < 1 {
		problems = append(problems, "harvest workers must be >= 1")
	}

	if !c.Output.CSV && !c.Output.SQLite && c.Sink.Driver == SinkNone {
		problems = append(problems, "no output enabled")
	}
	if c.Output.Root == "" {
		problems = append(problems, "output root is empty")
	}

	switch c.Sink.Driver {
	case SinkNone:
	case SinkSQLite, SinkPostgres, SinkClickhouse:
		if c.Sink.DSN == "" {
			problems = append(problems, fmt.Sprintf("sink %s needs a dsn", c.Sink.Driver))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown sink driver %q", c.Sink.Driver))
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}

	known := registry.Default()
	for id := range c.Endpoints {
		if _, err := known.Get(id); err != nil {
			problems = append(problems, fmt.Sprintf("unknown endpoint %q", id))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Range returns the harvest range. An empty end date means the day of now.
func (c *Config) Range(now time.Time) (time.Time, time.Time, error) {
	start, err := time.Parse(domain.DateLayout, c.Harvest.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad start_date %q", c.Harvest.StartDate)
	}

	if c.Harvest.EndDate == "" {
		y, m, d := now.Date()
		return start, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	end, err := time.Parse(domain.DateLayout, c.Harvest.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad end_date %q", c.Harvest.EndDate)
	}
	return start, end, nil
}

// Registry returns the default endpoint registry with [endpoints] overrides
// applied.
func (c *Config) Registry() (*registry.Registry, error) {
	overrides := make(map[string]registry.Override, len(c.Endpoints))
	for id, e := range c.Endpoints {
		overrides[id] = registry.Override{Run: e.Run, Consolidate: e.Consolidate}
	}
	return registry.Default().WithOverrides(overrides)
}

// RetryPolicy converts the retry section into a retry.Config.
func (c *Config) RetryPolicy() retry.Config {
	out := retry.DefaultConfig()
	if c.Retry.MaxAttempts > 0 {
		out.MaxAttempts = c.Retry.MaxAttempts
	}
	if d, err := time.ParseDuration(c.Retry.InitialDelay); err == nil {
		out.InitialDelay = d
	}
	if d, err := time.ParseDuration(c.Retry.MaxDelay); err == nil {
		out.MaxDelay = d
	}
	return out
}

// SQLiteFile returns the SQLite database path, resolved under the output root
// when relative.
func (c *Config) SQLiteFile() string {
	if filepath.IsAbs(c.Output.SQLitePath) {
		return c.Output.SQLitePath
	}
	return filepath.Join(c.Output.Root, c.Output.SQLitePath)
}
