package modes

import (
	"context"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/hazard"
	"github.com/tandemseis/hazengine/pkg/shared/types"
)

func init() {
	calculator.Register("scenario", func(base *calculator.Base) calculator.Calculator {
		return &ScenarioCalc{Base: base}
	})
}

// ScenarioCalc implements pkg/calculator.Calculator for calculation_mode
// "scenario" (spec.md §4.5): one fixed rupture, with as many independent GMF
// realizations as number_of_logic_tree_samples (at least 1), persisted as a
// single `gmf_data/0001` dataset.
type ScenarioCalc struct {
	*calculator.Base

	scenario *hazard.Scenario
	rupture  types.Rupture
}

func (c *ScenarioCalc) PreExecute(ctx context.Context) error {
	cfg, err := paramConfig(c.Params)
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
	rupture, err := paramRupture(c.Params)
	if err != nil {
		return err
	}

	var gsim = gsims[firstAssocKey(gsims)]

	imts := make([]string, 0, len(imls))
	for imt := range imls {
		imts = append(imts, imt)
	}

	numRlz := cfg.NumberOfLogicTreeSamples
	if numRlz <= 0 {
		numRlz = 1
	}

	c.rupture = rupture
	c.scenario = &hazard.Scenario{
		GmfComputer:     gmfComputer,
		GSIM:            gsim,
		IMTs:            imts,
		TruncationLevel: cfg.TruncationLevel,
		NumRealizations: numRlz,
		Seed:            cfg.MasterSeed,
	}
	return nil
}

func (c *ScenarioCalc) Execute(ctx context.Context) (interface{}, error) {
	sites, err := paramSites(c.Params)
	if err != nil {
		return nil, err
	}
	return c.scenario.Compute(c.rupture, sites), nil
}

func (c *ScenarioCalc) PostExecute(ctx context.Context, result interface{}) error {
	recs := result.([]types.GMFRecord)
	c.Params["gmf_records"] = recs
	return c.Store.Set(idKey("gmf_data", 1), recs, nil)
}

func (c *ScenarioCalc) Export(ctx context.Context) error  { return nil }
func (c *ScenarioCalc) CleanUp(ctx context.Context) error { return nil }
