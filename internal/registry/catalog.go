package registry

import "aeso-harvester/internal/domain"

// Endpoint IDs of the built-in catalog.
const (
	AILDemand               = "ail_demand"
	PoolPrice               = "pool_price"
	PoolPriceByDate         = "pool_price_by_date"
	SystemMarginalPrice     = "system_marginal_price"
	AssetList               = "asset_list"
	PoolParticipantList     = "pool_participant_list"
	MeritOrder              = "merit_order"
	MeteredVolume           = "metered_volume"
	SupplyDemandInterchange = "supply_demand_interchange"
)

// Canonical demand schema.
var DemandColumns = []string{
	"begin_datetime_utc",
	"begin_datetime_mpt",
	"alberta_internal_load",
	"forecast_alberta_internal_load",
}

// CombinedDemandID identifies the derived demand plus tie-line series.
const CombinedDemandID = "combined_demand"

// CombinedDemand describes the per-year join of AIL demand with the
// aggregated tie-line flows. It is produced locally, never fetched.
func CombinedDemand() domain.EndpointConfig {
	columns := append([]string{}, DemandColumns...)
	columns = append(columns,
		"IMPORT_BC", "IMPORT_MT", "IMPORT_SK",
		"EXPORT_BC", "EXPORT_MT", "EXPORT_SK",
		"TOTAL_IMPORTS", "TOTAL_EXPORTS",
	)
	return domain.EndpointConfig{
		ID:                  CombinedDemandID,
		Granularity:         domain.GranularityAnnual,
		Subfolder:           "Historical AIL Demand",
		FileTemplate:        "combined_Metered_Demand_{year}.csv",
		Columns:             columns,
		TimeColumn:          "begin_datetime_utc",
		LocalTimeColumn:     "begin_datetime_mpt",
		HourlyRowsPerPeriod: 1,
		Consolidate:         true,
	}
}

// Catalog returns the built-in endpoint definitions.
func Catalog() []domain.EndpointConfig {
	return []domain.EndpointConfig{
		{
			ID:                  AILDemand,
			Strategy:            domain.StrategyReportRecords,
			Granularity:         domain.GranularityAnnual,
			ReportPath:          "report/v1/load/albertaInternalLoad",
			ReportKey:           "Actual Forecast Report",
			Subfolder:           "Historical AIL Demand",
			FileTemplate:        "Metered_Demand_{year}.csv",
			Columns:             DemandColumns,
			TimeColumn:          "begin_datetime_utc",
			LocalTimeColumn:     "begin_datetime_mpt",
			HourlyRowsPerPeriod: 1,
			Consolidate:         true,
			Run:                 true,
		},
		{
			ID:           PoolPrice,
			Strategy:     domain.StrategyReportRecords,
			Granularity:  domain.GranularityAnnual,
			ReportPath:   "report/v1.1/price/poolPrice",
			ReportKey:    "Pool Price Report",
			Subfolder:    "Historical Pool Price",
			FileTemplate: "pool_price_data_{year}.csv",
			Columns: []string{
				"begin_datetime_utc",
				"begin_datetime_mpt",
				"pool_price",
				"forecast_pool_price",
				"rolling_30day_avg",
			},
			TimeColumn:          "begin_datetime_utc",
			LocalTimeColumn:     "begin_datetime_mpt",
			HourlyRowsPerPeriod: 1,
			Consolidate:         true,
			Run:                 true,
		},
		{
			// Same report as PoolPrice, requested one date at a time.
			ID:           PoolPriceByDate,
			Strategy:     domain.StrategyReportRecords,
			Granularity:  domain.GranularityDaily,
			ReportPath:   "report/v1.1/price/poolPrice",
			ReportKey:    "Pool Price Report",
			Subfolder:    "Historical Pool Price By Date",
			FileTemplate: "pool_price_by_date_{year}.csv",
			Columns: []string{
				"begin_datetime_utc",
				"begin_datetime_mpt",
				"pool_price",
				"forecast_pool_price",
				"rolling_30day_avg",
			},
			TimeColumn:          "begin_datetime_utc",
			LocalTimeColumn:     "begin_datetime_mpt",
			HourlyRowsPerPeriod: 1,
		},
		{
			ID:           SystemMarginalPrice,
			Strategy:     domain.StrategyReportRecords,
			Granularity:  domain.GranularityAnnual,
			ReportPath:   "report/v1.1/price/systemMarginalPrice",
			ReportKey:    "System Marginal Price Report",
			Subfolder:    "System Marginal Price",
			FileTemplate: "system_marginal_price_data_{year}.csv",
			Columns: []string{
				"begin_datetime_utc",
				"end_datetime_utc",
				"begin_datetime_mpt",
				"end_datetime_mpt",
				"system_marginal_price",
				"volume",
			},
			TimeColumn:      "begin_datetime_utc",
			LocalTimeColumn: "begin_datetime_mpt",
		},
		{
			ID:           AssetList,
			Strategy:     domain.StrategyRecordList,
			Granularity:  domain.GranularityList,
			ReportPath:   "report/v1/assetlist",
			Subfolder:    "Asset List",
			FileTemplate: "asset_list.csv",
			Columns: []string{
				"asset_name",
				"asset_ID",
				"asset_type",
				"operating_status",
				"pool_participant_name",
				"pool_participant_ID",
				"net_to_grid_asset_flag",
				"asset_incl_storage_flag",
			},
			AssetKeyColumn: "asset_ID",
			Run:            true,
		},
		{
			ID:           PoolParticipantList,
			Strategy:     domain.StrategyRecordList,
			Granularity:  domain.GranularityList,
			ReportPath:   "report/v1/poolparticipantlist",
			Subfolder:    "Pool Participant List",
			FileTemplate: "pool_participant_list.csv",
			Columns: []string{
				"pool_participant_name",
				"pool_participant_ID",
				"corporate_contact",
				"corporate_contact_phone",
				"corporate_contact_email",
			},
		},
		{
			ID:           MeritOrder,
			Strategy:     domain.StrategyEnergyBlocks,
			Granularity:  domain.GranularityDaily,
			ReportPath:   "report/v1/meritOrder/energy",
			Subfolder:    "Merit Order Curves",
			FileTemplate: "merit_order_data_{year}.csv",
			Columns: []string{
				"begin_dateTime_utc",
				"begin_dateTime_mpt",
				"import_or_export",
				"asset_ID",
				"block_number",
				"block_price",
				"from_MW",
				"to_MW",
				"block_size",
				"available_MW",
				"dispatched?",
				"dispatched_MW",
				"flexible?",
				"offer_control",
				"hour",
			},
			TimeColumn:      "begin_dateTime_utc",
			LocalTimeColumn: "begin_dateTime_mpt",
			AssetKeyColumn:  "asset_ID",
			Derived: []domain.Derivation{
				{Column: "hour", From: "begin_dateTime_utc", Kind: domain.DeriveHourOfDay},
			},
		},
		{
			ID:           MeteredVolume,
			Strategy:     domain.StrategyMeteredVolume,
			Granularity:  domain.GranularityDaily,
			ReportPath:   "report/v1/meteredvolume/details",
			Subfolder:    "Metered Volume",
			FileTemplate: "metered_volume_data_{year}.csv",
			Columns: []string{
				"begin_date_utc",
				"begin_date_mpt",
				"pool_participant_ID",
				"asset_ID",
				"asset_class",
				"metered_volume",
			},
			TimeColumn:      "begin_date_utc",
			LocalTimeColumn: "begin_date_mpt",
			AssetKeyColumn:  "asset_ID",
			Consolidate:     true,
		},
		{
			ID:           SupplyDemandInterchange,
			Strategy:     domain.StrategyCSDInterchange,
			Granularity:  domain.GranularityList,
			ReportPath:   "report/v1/csd/summary/current",
			Subfolder:    "Supply Demand",
			FileTemplate: "supply_demand_interchange.csv",
			Columns: []string{
				"effective_datetime_utc",
				"effective_datetime_mpt",
				"path",
				"actual_flow",
			},
		},
	}
}
