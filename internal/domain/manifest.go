package domain

import "time"

// ManifestRecord describes the consolidated output of one endpoint.
// It replaces parsing year ranges out of file names.
type ManifestRecord struct {
	Endpoint  string    `json:"endpoint"`
	MinYear   int       `json:"min_year"`
	MaxYear   int       `json:"max_year"`
	RowCount  int       `json:"row_count"`
	Complete  bool      `json:"complete"` // final year passed the completeness gate
	Path      string    `json:"path"`     // consolidated file, relative to the output root
	RunID     string    `json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConsolidatedSeries is the ordered concatenation of one endpoint's yearly tables.
type ConsolidatedSeries struct {
	Endpoint          string
	MinYear           int
	MaxYear           int
	Table             *Table
	FinalYearComplete bool
}

// FailureRecord is the persisted form of one run failure.
type FailureRecord struct {
	RunID      string
	Endpoint   string
	Stage      string
	Kind       string
	Window     string
	Year       int
	Message    string
	RecordedAt time.Time
}
