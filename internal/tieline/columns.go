// Package tieline derives cross-border interchange tables from metered
// volumes: per-asset import/export detail and the hourly regional pivot.
package tieline

// Detail and summary column names.
const (
	ColUTC          = "begin_date_utc"
	ColMPT          = "begin_date_mpt"
	ColAssetID      = "ASSET_ID"
	ColTotalImports = "TOTAL_IMPORTS"
	ColTotalExports = "TOTAL_EXPORTS"
	ColRegion       = "REGION"

	ImportPrefix = "IMPORT_"
	ExportPrefix = "EXPORT_"
)

// DefaultRegions are the interties with neighbouring jurisdictions.
var DefaultRegions = []string{"BC", "MT", "SK"}

// Direction of flow across a tie line.
type Direction int

const (
	Import Direction = iota
	Export
)

// String returns "import" or "export".
func (d Direction) String() string {
	if d == Export {
		return "export"
	}
	return "import"
}

// Prefix returns the region column prefix for d.
func (d Direction) Prefix() string {
	if d == Export {
		return ExportPrefix
	}
	return ImportPrefix
}

// TotalColumn returns the detail value column for d.
func (d Direction) TotalColumn() string {
	if d == Export {
		return ColTotalExports
	}
	return ColTotalImports
}

// DetailColumns returns the canonical detail schema for d.
func DetailColumns(d Direction) []string {
	return []string{
		ColUTC,
		ColMPT,
		ColAssetID,
		d.TotalColumn(),
		"ASSET_NAME",
		"ASSET_TYPE",
		"OPERATING_STATUS",
		"POOL_PARTICIPANT_NAME",
		"POOL_PARTICIPANT_ID",
		"NET_TO_GRID_ASSET_FLAG",
		"ASSET_INCL_STORAGE_FLAG",
		ColRegion,
	}
}
