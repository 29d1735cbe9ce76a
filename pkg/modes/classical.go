package modes

import (
	"context"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/hazard"
	"github.com/tandemseis/hazengine/pkg/logictree"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/srcmgr"
	"github.com/tandemseis/hazengine/pkg/taskmgr"
)

func init() {
	calculator.Register("classical", func(base *calculator.Base) calculator.Calculator {
		return &ClassicalHazard{Base: base}
	})
}

// ClassicalHazard implements pkg/calculator.Calculator for calculation_mode
// "classical" (spec.md §4.5): builds a hazard.ClassicalPSHA from Base.Params,
// runs it (tiled when sites_per_tile triggers it), and persists the
// per-(trt_id, gsim) probability maps, per-realization curves, mean curve,
// hazard maps and source_info under the keys spec.md §6 names.
type ClassicalHazard struct {
	*calculator.Base

	psha *hazard.ClassicalPSHA
}

func (c *ClassicalHazard) PreExecute(ctx context.Context) error {
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return err
	}
	model, err := paramCSM(c.Params)
	if err != nil {
		return err
	}
	assoc, err := paramAssoc(c.Params)
	if err != nil {
		return err
	}
	sites, err := paramSites(c.Params)
	if err != nil {
		return err
	}
	imls, err := paramIMLs(c.Params)
	if err != nil {
		return err
	}
	gsims, err := paramGSIMs(c.Params)
	if err != nil {
		return err
	}
	geomOf, err := paramGeometryOf(c.Params)
	if err != nil {
		return err
	}

	var mgr *srcmgr.Manager
	if cfg.SitesPerTile > 0 && len(sites) > cfg.SitesPerTile {
		mgr = srcmgr.New(model, cfg.MaximumDistance, cfg.RandomSeed, numTilesFor(len(sites), cfg.SitesPerTile))
		mgr.GeometryOf = geomOf
		if split, serr := paramSplitSource(c.Params); serr == nil {
			mgr.SplitSource = split
		}
		mgr.AssignSerials()
	}

	c.psha = &hazard.ClassicalPSHA{
		CSM:             model,
		Assoc:           assoc,
		Sites:           sites,
		SitesPerTile:    cfg.SitesPerTile,
		IMLs:            imls,
		Poes:            cfg.Poes,
		TruncationLevel: cfg.TruncationLevel,
		ConcurrentTasks: cfg.ConcurrentTasks,
		SrcMgr:          mgr,
		Kernel: &hazard.AnalyticalKernel{
			GeometryOf:        geomOf,
			InvestigationTime: cfg.InvestigationTime,
			RunSeed:           cfg.RandomSeed,
		},
		GSIMs: gsims,
		TM:    taskmgr.New(taskmgr.Options{ConcurrentTasks: cfg.ConcurrentTasks}),
		Log:   c.Log,
	}
	return nil
}

func (c *ClassicalHazard) Execute(ctx context.Context) (interface{}, error) {
	return c.psha.Execute(ctx)
}

func (c *ClassicalHazard) PostExecute(ctx context.Context, result interface{}) error {
	resultsByKey := result.(map[logictree.AssocKey]*types.ProbabilityMap)

	for key, pm := range resultsByKey {
		if err := c.Store.Set(idKey("poes", key.TrtID), pm, map[string]interface{}{"gsim": key.Gsim}); err != nil {
			return err
		}
	}

	out := c.psha.PostExecute(resultsByKey)
	c.Params["classical_result"] = out

	if err := c.Store.Set("hcurves/rlzs", out.CurvesByRlz, nil); err != nil {
		return err
	}
	if err := c.Store.Set("hcurves/mean", out.MeanCurve, nil); err != nil {
		return err
	}
	if out.HazardMaps != nil {
		if err := c.Store.Set("hmaps/mean", out.HazardMaps, nil); err != nil {
			return err
		}
	}
	if err := c.Store.Set("eff_ruptures", out.EffRuptures, nil); err != nil {
		return err
	}
	if c.psha.SrcMgr != nil {
		if err := c.Store.Set("source_info", c.psha.SrcMgr.SourceInfos(), nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *ClassicalHazard) Export(ctx context.Context) error  { return nil }
func (c *ClassicalHazard) CleanUp(ctx context.Context) error { return nil }

// numTilesFor computes ceil(numSites/sitesPerTile), spec.md §4.4/§8
// scenario 6's tile count.
func numTilesFor(numSites, sitesPerTile int) int {
	if sitesPerTile <= 0 {
		return 1
	}
	return (numSites + sitesPerTile - 1) / sitesPerTile
}
