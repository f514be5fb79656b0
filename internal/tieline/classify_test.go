package tieline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeso-harvester/internal/domain"
)

func assetList() *domain.Table {
	t := domain.NewTable("asset_name", "asset_ID", "asset_type", "operating_status",
		"pool_participant_name", "pool_participant_ID", "net_to_grid_asset_flag", "asset_incl_storage_flag")
	t.Rows = [][]string{
		{"MOMT MT IMPORT", "MOMT", "SOURCE", "Active", "Morgan Stanley", "MSCG", "", "N"},
		{"PW20 PWX EXPORT TO BCH", "PW20", "SINK", "Active", "Powerex", "PWX", "", "N"},
		{"SPC SK EXPORT", "SPCX", "SINK", "Active", "SaskPower", "SPC", "", "N"},
		{"Mystery Intertie", "MYST", "SOURCE", "Active", "Unknown", "UNK", "", "N"},
		{"Battle River #5", "BR5", "GENERATOR", "Active", "ATCO", "ATCO", "Y", "N"},
	}
	return t
}

func meteredVolume() *domain.Table {
	t := domain.NewTable("begin_date_utc", "begin_date_mpt", "pool_participant_ID", "asset_ID", "asset_class", "metered_volume")
	t.Rows = [][]string{
		{"2023-01-01 08:00", "2023-01-01 01:00", "PWX", "PW20", "IPP", "12"},
		{"2023-01-01 07:00", "2023-01-01 00:00", "PWX", "PW20", "IPP", "34.696"},
		{"2023-01-01 07:00", "2023-01-01 00:00", "MSCG", "MOMT", "IPP", "935"},
		{"2023-01-01 07:00", "2023-01-01 00:00", "SPC", "SPCX", "IPP", "1"},
		{"2023-01-01 07:00", "2023-01-01 00:00", "UNK", "MYST", "IPP", "3"},
		{"2023-01-01 07:00", "2023-01-01 00:00", "ATCO", "BR5", "GENCO", "380"},
		{"2023-01-01 07:00", "2023-01-01 00:00", "X", "NOT_LISTED", "IPP", "1"},
	}
	return t
}

func TestClassify(t *testing.T) {
	c, err := Classify(meteredVolume(), assetList())
	require.NoError(t, err)

	assert.Equal(t, DetailColumns(Import), c.Imports.Columns)
	assert.Equal(t, DetailColumns(Export), c.Exports.Columns)

	require.Equal(t, 1, c.Imports.Len())
	assert.Equal(t, []string{
		"2023-01-01 07:00", "2023-01-01 00:00", "MOMT", "935", "MOMT MT IMPORT", "SOURCE",
		"Active", "Morgan Stanley", "MSCG", "", "N", "IMPORT_MT",
	}, c.Imports.Rows[0])

	require.Equal(t, 3, c.Exports.Len())
	ids, _ := c.Exports.Column(ColAssetID)
	assert.Equal(t, []string{"PW20", "SPCX", "PW20"}, ids)
	regions, _ := c.Exports.Column(ColRegion)
	assert.Equal(t, []string{"EXPORT_BC", "EXPORT_SK", "EXPORT_BC"}, regions)

	assert.Equal(t, []string{"MYST"}, c.Unclassified)
}

func TestClassify_FeedsAggregate(t *testing.T) {
	c, err := Classify(meteredVolume(), assetList())
	require.NoError(t, err)

	out, err := Aggregate(c.Exports, c.Imports, WithRegions(DefaultRegions...))
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	first := out.Rows[0]
	assert.Equal(t, "935", first[out.Index(ColTotalImports)])
	assert.Equal(t, "35.696", first[out.Index(ColTotalExports)])
	assert.Equal(t, "34.696", first[out.Index("EXPORT_BC")])
	assert.Equal(t, "1", first[out.Index("EXPORT_SK")])
}

func TestClassify_MissingColumns(t *testing.T) {
	_, err := Classify(domain.NewTable("asset_ID"), assetList())
	assert.Error(t, err)

	_, err = Classify(meteredVolume(), domain.NewTable("asset_ID"))
	assert.Error(t, err)
}

func TestRegionOf(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"MOMT MT IMPORT", "MT"},
		{"PW20 PWX EXPORT TO BCH", "BC"},
		{"BC-Alberta Intertie", "BC"},
		{"SPC SK EXPORT", "SK"},
		{"Sask (SK) import", "SK"},
		{"MATL 120SS", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RegionOf(tt.name); got != tt.want {
			t.Errorf("RegionOf(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
