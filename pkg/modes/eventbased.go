package modes

import (
	"context"
	"math/rand"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/hazard"
	"github.com/tandemseis/hazengine/pkg/seismic"
	"github.com/tandemseis/hazengine/pkg/shared/types"
)

func init() {
	calculator.Register("event_based_rupture", func(base *calculator.Base) calculator.Calculator {
		return &EventBasedRuptureCalc{Base: base}
	})
	calculator.Register("event_based", func(base *calculator.Base) calculator.Calculator {
		return &EventBasedCalc{Base: base}
	})
}

// EventBasedRuptureCalc implements pkg/calculator.Calculator for
// calculation_mode "event_based_rupture" (spec.md §4.5): samples stochastic
// event sets over every source, assigns dense event ids, and persists the
// rupture collection under `sescollection/<serial>` and `rup_data/<trt>`.
type EventBasedRuptureCalc struct {
	*calculator.Base

	sampler *hazard.EventBasedRupture
}

func (c *EventBasedRuptureCalc) PreExecute(ctx context.Context) error {
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return err
	}
	sites, err := paramSites(c.Params)
	if err != nil {
		return err
	}
	gsims, err := paramGSIMs(c.Params)
	if err != nil {
		return err
	}
	if _, err := paramGeometryOf(c.Params); err != nil {
		return err
	}
	gmfComputer, _ := paramGmfComputer(c.Params)

	c.sampler = &hazard.EventBasedRupture{
		Sites:               sites,
		Tile:                seismic.Tile{Sites: sites, MaximumDistance: cfg.MaximumDistance},
		MaximumDistance:     cfg.MaximumDistance,
		MinimumIntensity:    cfg.MinimumIntensity,
		SesPerLogicTreePath: cfg.SESPerLogicTreePath,
		GSIMs:               gsims,
		GmfComputer:         gmfComputer,
		TruncationLevel:     cfg.TruncationLevel,
		RunSeed:             cfg.RandomSeed,
	}
	return nil
}

func (c *EventBasedRuptureCalc) Execute(ctx context.Context) (interface{}, error) {
	model, err := paramCSM(c.Params)
	if err != nil {
		return nil, err
	}
	geomOf, err := paramGeometryOf(c.Params)
	if err != nil {
		return nil, err
	}

	var all []types.EBRupture
	for _, tm := range model.TrtModels() {
		for _, src := range tm.Sources {
			geom := geomOf(src)
			if geom == nil {
				continue
			}
			all = append(all, c.sampler.SampleSource(src, geom)...)
		}
	}
	hazard.AssignEventIDs(all)
	return all, nil
}

func (c *EventBasedRuptureCalc) PostExecute(ctx context.Context, result interface{}) error {
	ebruptures := result.([]types.EBRupture)
	c.Params["ebruptures"] = ebruptures

	byTrt := map[int][]types.EBRupture{}
	for _, ebr := range ebruptures {
		if err := c.Store.Set(idKey("sescollection", int(ebr.Serial)), ebr, nil); err != nil {
			return err
		}
		byTrt[ebr.TrtID] = append(byTrt[ebr.TrtID], ebr)
	}
	for trtID, rows := range byTrt {
		if err := c.Store.Set(idKey("rup_data", trtID), rows, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *EventBasedRuptureCalc) Export(ctx context.Context) error  { return nil }
func (c *EventBasedRuptureCalc) CleanUp(ctx context.Context) error { return nil }

// EventBasedCalc implements pkg/calculator.Calculator for calculation_mode
// "event_based" (spec.md §4.5): runs EventBasedRuptureCalc as its
// pre-calculator, then computes GMFs and hazard curves from the sampled
// rupture collection, persisting `gmf_data/<rlz>` and `hcurves/rlzs`.
type EventBasedCalc struct {
	*calculator.Base

	gmf *hazard.EventBasedGMF
}

func (c *EventBasedCalc) PreCalculator() calculator.Calculator {
	return &EventBasedRuptureCalc{Base: c.Base}
}

func (c *EventBasedCalc) PreExecute(ctx context.Context) error {
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return err
	}
	assoc, err := paramAssoc(c.Params)
	if err != nil {
		return err
	}
	gsims, err := paramGSIMs(c.Params)
	if err != nil {
		return err
	}
	gmfComputer, err := paramGmfComputer(c.Params)
	if err != nil {
		return err
	}
	imls, err := paramIMLs(c.Params)
	if err != nil {
		return err
	}

	imts := make([]string, 0, len(imls))
	for imt := range imls {
		imts = append(imts, imt)
	}

	c.gmf = &hazard.EventBasedGMF{
		GmfComputer:         gmfComputer,
		GSIMs:               gsims,
		Assoc:               assoc,
		IMTs:                imts,
		TruncationLevel:     cfg.TruncationLevel,
		InvestigationTime:   cfg.InvestigationTime,
		SesPerLogicTreePath: cfg.SESPerLogicTreePath,
	}
	return nil
}

func (c *EventBasedCalc) Execute(ctx context.Context) (interface{}, error) {
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return nil, err
	}
	sites, err := paramSites(c.Params)
	if err != nil {
		return nil, err
	}
	v, err := param(c.Params, "ebruptures")
	if err != nil {
		return nil, err
	}
	ebruptures := v.([]types.EBRupture)

	rng := rand.New(rand.NewSource(cfg.MasterSeed))
	gmfByRlz := c.gmf.Compute(ebruptures, sites, rng)
	return gmfByRlz, nil
}

func (c *EventBasedCalc) PostExecute(ctx context.Context, result interface{}) error {
	gmfByRlz := result.(map[int][]types.GMFRecord)
	c.Params["gmf_by_rlz"] = gmfByRlz

	for rlz, recs := range gmfByRlz {
		if err := c.Store.Set(idKey("gmf_data", rlz), recs, nil); err != nil {
			return err
		}
	}

	imls, err := paramIMLs(c.Params)
	if err != nil {
		return err
	}
	curves := c.gmf.HazardCurves(gmfByRlz, imls)
	if err := c.Store.Set("hcurves/rlzs", curves, nil); err != nil {
		return err
	}
	return nil
}

func (c *EventBasedCalc) Export(ctx context.Context) error  { return nil }
func (c *EventBasedCalc) CleanUp(ctx context.Context) error { return nil }
