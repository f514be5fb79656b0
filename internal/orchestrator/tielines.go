package orchestrator

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"aeso-harvester/internal/demand"
	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/registry"
	"aeso-harvester/internal/storage"
	"aeso-harvester/internal/tieline"
)

// TempFolder holds the intermediate tie-line tables.
const TempFolder = "temp"

// Artefact locations for one year, relative to the output root.
func exportDetailLocation(year int) string {
	return path.Join(TempFolder, fmt.Sprintf("export_categorized_filtered_sorted_%d.csv", year))
}

func importDetailLocation(year int) string {
	return path.Join(TempFolder, fmt.Sprintf("import_categorized_filtered_sorted_%d.csv", year))
}

func summaryLocation(year int) string {
	return path.Join(TempFolder, fmt.Sprintf("export_import_summary_%d.csv", year))
}

// TieLineResult summarizes the tie-line pipeline.
type TieLineResult struct {
	Years        []int    // years whose combined demand file was written
	Unclassified []string // interchange assets without a region, all years
	Manifest     *domain.ManifestRecord
}

// RunTieLines runs only the tie-line pipeline over already harvested
// metered volume, asset list and AIL demand output.
func (o *Orchestrator) RunTieLines(ctx context.Context, years []int) (*RunResult, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	collector := NewCollector(o.logger, o.metrics)

	result := &RunResult{RunID: o.runID}
	result.TieLines = o.runTieLines(ctx, years, collector)
	result.Failures = collector.Failures()
	o.persistFailures(ctx, collector)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("tie lines cancelled: %w", err)
	}
	return result, nil
}

// runTieLines classifies metered volumes into import/export detail,
// aggregates them by region, joins the result onto AIL demand and
// consolidates the combined series.
func (o *Orchestrator) runTieLines(ctx context.Context, years []int, col *Collector) *TieLineResult {
	res := &TieLineResult{}
	logger := o.logger.Named("tieline")

	lookup := func(id string) (domain.EndpointConfig, bool) {
		cfg, err := o.registry.Get(id)
		if err != nil {
			col.Record(Failure{Endpoint: id, Stage: StageTieLine, Err: err})
			return domain.EndpointConfig{}, false
		}
		return cfg, true
	}
	meteredCfg, ok1 := lookup(registry.MeteredVolume)
	assetCfg, ok2 := lookup(registry.AssetList)
	demandCfg, ok3 := lookup(registry.AILDemand)
	if !ok1 || !ok2 || !ok3 {
		return res
	}
	combinedCfg := registry.CombinedDemand()

	assets, err := o.store.ReadPeriod(ctx, assetCfg, 0)
	if err != nil {
		col.Record(Failure{Endpoint: assetCfg.ID, Stage: StageTieLine, Err: err})
		return res
	}

	unclassified := make(map[string]struct{})
	for _, year := range years {
		if ctx.Err() != nil {
			return res
		}
		fail := func(endpoint string, stage Stage, err error) Decision {
			return col.Record(Failure{Endpoint: endpoint, Year: year, Stage: stage, Err: err})
		}

		metered, err := o.store.ReadPeriod(ctx, meteredCfg, year)
		if err != nil {
			if fail(meteredCfg.ID, StageTieLine, err) == Abort {
				return res
			}
			continue
		}

		classified, err := tieline.Classify(metered, assets)
		if err != nil {
			if fail(meteredCfg.ID, StageTieLine, err) == Abort {
				return res
			}
			continue
		}
		for _, id := range classified.Unclassified {
			if _, seen := unclassified[id]; !seen {
				unclassified[id] = struct{}{}
				res.Unclassified = append(res.Unclassified, id)
			}
		}
		if len(classified.Unclassified) > 0 {
			logger.Warn("interchange assets without region skipped",
				zap.Int("year", year),
				zap.Strings("assets", classified.Unclassified))
		}

		summary, err := tieline.Aggregate(classified.Exports, classified.Imports, tieline.WithRegions(tieline.DefaultRegions...))
		if err != nil {
			if fail(meteredCfg.ID, StageTieLine, err) == Abort {
				return res
			}
			continue
		}

		if err := o.writeArtifacts(ctx, year, classified, summary); err != nil {
			if fail(meteredCfg.ID, StageTieLine, err) == Abort {
				return res
			}
			continue
		}

		demandTable, err := o.store.ReadPeriod(ctx, demandCfg, year)
		if err != nil {
			if fail(demandCfg.ID, StageJoin, err) == Abort {
				return res
			}
			continue
		}

		combined, err := demand.Join(demandTable, summary, year)
		if err != nil {
			if fail(combinedCfg.ID, StageJoin, err) == Abort {
				return res
			}
			continue
		}

		if err := o.store.WritePeriod(ctx, combinedCfg, year, combined, storage.Replace); err != nil {
			if fail(combinedCfg.ID, StageWrite, err) == Abort {
				return res
			}
			continue
		}
		res.Years = append(res.Years, year)

		logger.Info("combined demand written",
			zap.Int("year", year),
			zap.Int("rows", combined.Len()),
			zap.Int("imports", classified.Imports.Len()),
			zap.Int("exports", classified.Exports.Len()))
	}

	if o.consolidate && len(res.Years) > 0 {
		res.Manifest = o.consolidateEndpoint(ctx, combinedCfg, col)
	}
	return res
}

func (o *Orchestrator) writeArtifacts(ctx context.Context, year int, c *tieline.Classification, summary *domain.Table) error {
	artefacts := []struct {
		location string
		table    *domain.Table
	}{
		{exportDetailLocation(year), c.Exports},
		{importDetailLocation(year), c.Imports},
		{summaryLocation(year), summary},
	}
	for _, a := range artefacts {
		if err := o.store.WriteTable(ctx, a.location, a.table); err != nil {
			return fmt.Errorf("write %s: %w", a.location, err)
		}
	}
	return nil
}
