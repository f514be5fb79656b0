package domain

import (
	"fmt"
	"strings"
)

// Granularity describes the date windows an endpoint accepts.
type Granularity string

const (
	GranularityList   Granularity = "list"   // non-time-sliced snapshot
	GranularityAnnual Granularity = "annual" // startDate/endDate within one calendar year
	GranularityDaily  Granularity = "daily"  // single startDate per request
)

// IsValid checks if the granularity is a known value.
func (g Granularity) IsValid() bool {
	return g == GranularityList || g == GranularityAnnual || g == GranularityDaily
}

// StrategyTag names the normalization strategy applied to an endpoint's payload.
type StrategyTag string

const (
	StrategyReportRecords  StrategyTag = "report_records"
	StrategyRecordList     StrategyTag = "record_list"
	StrategyEnergyBlocks   StrategyTag = "energy_blocks"
	StrategyMeteredVolume  StrategyTag = "metered_volume"
	StrategyCSDInterchange StrategyTag = "csd_interchange"
)

// String returns the string representation of StrategyTag.
func (s StrategyTag) String() string {
	return string(s)
}

// DeriveKind is the computation used for a derived column.
type DeriveKind string

const (
	// DeriveHourOfDay extracts the hour (0-23) from a timestamp column.
	DeriveHourOfDay DeriveKind = "hour_of_day"
)

// Derivation describes a computed column added after flattening.
type Derivation struct {
	Column string     // output column name
	From   string     // source column
	Kind   DeriveKind // computation
}

// YearPlaceholder is substituted with the four-digit year in output templates.
const YearPlaceholder = "{year}"

// EndpointConfig is the immutable per-run description of one report endpoint.
type EndpointConfig struct {
	ID          string
	Strategy    StrategyTag
	Granularity Granularity
	ReportPath  string // appended to the service base URL
	ReportKey   string // payload member holding the records (report_records only)

	Subfolder    string   // output subfolder under the output root
	FileTemplate string   // contains YearPlaceholder for time-sliced endpoints
	Columns      []string // load-bearing output column order

	TimeColumn      string // sort key and completeness key; empty for lists
	LocalTimeColumn string // MPT stamp in window terms; selects rows kept by a mid-year run
	AssetKeyColumn  string // identity tracking key; empty disables tracking
	Derived         []Derivation

	// HourlyRowsPerPeriod is the expected row count per hour for the
	// completeness gate. Zero means the gate counts distinct TimeColumn values.
	HourlyRowsPerPeriod int

	Consolidate bool
	Run         bool
}

// FileName returns the output file name for a given year.
func (c EndpointConfig) FileName(year int) string {
	return strings.ReplaceAll(c.FileTemplate, YearPlaceholder, itoa4(year))
}

// RangeFileName returns the consolidated output file name for a year range.
func (c EndpointConfig) RangeFileName(minYear, maxYear int) string {
	return strings.ReplaceAll(c.FileTemplate, YearPlaceholder, itoa4(minYear)+"_to_"+itoa4(maxYear))
}

// IsTimeSliced reports whether the endpoint produces one file per year.
func (c EndpointConfig) IsTimeSliced() bool {
	return c.Granularity != GranularityList
}

// ColumnIndex returns the position of name in Columns, or -1.
func (c EndpointConfig) ColumnIndex(name string) int {
	for i, col := range c.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

func itoa4(year int) string {
	return fmt.Sprintf("%04d", year)
}
