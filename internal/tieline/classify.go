package tieline

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"aeso-harvester/internal/domain"
)

// Asset types used by the AESO asset list for interchange points.
const (
	assetTypeSource = "SOURCE" // energy entering Alberta
	assetTypeSink   = "SINK"   // energy leaving Alberta
)

// regionTokens maps asset-name tokens to region codes.
var regionTokens = map[string]string{
	"BC":  "BC",
	"BCH": "BC",
	"MT":  "MT",
	"SK":  "SK",
	"SPC": "SK",
}

// Classification is the result of splitting metered volumes into
// import and export detail tables.
type Classification struct {
	Imports *domain.Table
	Exports *domain.Table

	// Unclassified lists interchange asset IDs whose region could not be
	// determined from the asset name.
	Unclassified []string
}

// Classify joins metered volumes to the asset list and keeps interchange
// assets: SOURCE assets become imports and SINK assets exports. Rows are
// sorted by UTC time then asset ID.
func Classify(meteredVolume, assetList *domain.Table) (*Classification, error) {
	assets, err := indexAssets(assetList)
	if err != nil {
		return nil, err
	}

	idx, err := indexes(meteredVolume, "begin_date_utc", "begin_date_mpt", "asset_ID", "metered_volume")
	if err != nil {
		return nil, fmt.Errorf("metered volume: %w", err)
	}
	utcCol, mptCol, idCol, volCol := idx[0], idx[1], idx[2], idx[3]

	out := &Classification{
		Imports: domain.NewTable(DetailColumns(Import)...),
		Exports: domain.NewTable(DetailColumns(Export)...),
	}
	unclassified := make(map[string]struct{})

	for _, row := range meteredVolume.Rows {
		a, ok := assets[row[idCol]]
		if !ok {
			continue
		}

		var dir Direction
		switch strings.ToUpper(a.assetType) {
		case assetTypeSource:
			dir = Import
		case assetTypeSink:
			dir = Export
		default:
			continue
		}

		region := RegionOf(a.name)
		if region == "" {
			unclassified[a.id] = struct{}{}
			continue
		}

		detail := []string{
			row[utcCol],
			row[mptCol],
			a.id,
			row[volCol],
			a.name,
			a.assetType,
			a.status,
			a.participantName,
			a.participantID,
			a.netToGrid,
			a.inclStorage,
			dir.Prefix() + region,
		}
		if dir == Import {
			out.Imports.Rows = append(out.Imports.Rows, detail)
		} else {
			out.Exports.Rows = append(out.Exports.Rows, detail)
		}
	}

	sortDetail(out.Imports)
	sortDetail(out.Exports)

	for id := range unclassified {
		out.Unclassified = append(out.Unclassified, id)
	}
	sort.Strings(out.Unclassified)
	return out, nil
}

// RegionOf returns the region code named in an interchange asset name,
// or "" when none is found.
func RegionOf(assetName string) string {
	tokens := strings.FieldsFunc(strings.ToUpper(assetName), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if region, ok := regionTokens[tok]; ok {
			return region
		}
	}
	return ""
}

type asset struct {
	id, name, assetType, status    string
	participantName, participantID string
	netToGrid, inclStorage         string
}

func indexAssets(t *domain.Table) (map[string]asset, error) {
	idx, err := indexes(t, "asset_ID", "asset_name", "asset_type", "operating_status",
		"pool_participant_name", "pool_participant_ID", "net_to_grid_asset_flag", "asset_incl_storage_flag")
	if err != nil {
		return nil, fmt.Errorf("asset list: %w", err)
	}

	out := make(map[string]asset, t.Len())
	for _, row := range t.Rows {
		out[row[idx[0]]] = asset{
			id:              row[idx[0]],
			name:            row[idx[1]],
			assetType:       row[idx[2]],
			status:          row[idx[3]],
			participantName: row[idx[4]],
			participantID:   row[idx[5]],
			netToGrid:       row[idx[6]],
			inclStorage:     row[idx[7]],
		}
	}
	return out, nil
}

func indexes(t *domain.Table, columns ...string) ([]int, error) {
	if t == nil {
		return nil, fmt.Errorf("nil table")
	}
	out := make([]int, len(columns))
	for i, c := range columns {
		j, err := t.MustIndex(c)
		if err != nil {
			return nil, err
		}
		out[i] = j
	}
	return out, nil
}

func sortDetail(t *domain.Table) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if c := compareTimestamps(a[0], b[0]); c != 0 {
			return c < 0
		}
		return a[2] < b[2]
	})
}
