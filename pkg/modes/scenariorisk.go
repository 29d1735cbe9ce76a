package modes

import (
	"context"
	"math"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/risk"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/vulnerability"
)

func init() {
	calculator.Register("scenario_damage", func(base *calculator.Base) calculator.Calculator {
		return &ScenarioDamageCalc{Base: base}
	})
	calculator.Register("scenario_risk", func(base *calculator.Base) calculator.Calculator {
		return &ScenarioRiskCalc{Base: base}
	})
}

// gmvsBySiteAndRlz reshapes a flat GMF record list into per-site,
// per-realization vectors indexed by EventID — the realization index
// hazard.Scenario.Compute assigns (spec.md §4.5).
func gmvsBySiteAndRlz(recs []types.GMFRecord, imt string) map[int][]float64 {
	numRlz := 0
	for _, r := range recs {
		if int(r.EventID)+1 > numRlz {
			numRlz = int(r.EventID) + 1
		}
	}
	out := map[int][]float64{}
	for _, r := range recs {
		v, ok := r.GMV[imt]
		if !ok {
			continue
		}
		vec, ok := out[r.SiteID]
		if !ok {
			vec = make([]float64, numRlz)
			out[r.SiteID] = vec
		}
		vec[r.EventID] = v
	}
	return out
}

// ScenarioDamageCalc implements calculation_mode "scenario_damage"
// (spec.md §4.6): chains ScenarioCalc, folds each realization's GMF into
// per-asset damage-state probabilities, and persists `dmg_by_asset`,
// `dmg_by_taxon`, `dmg_total` and `csq_total`.
type ScenarioDamageCalc struct {
	*calculator.Base

	fragility   map[string]vulnerability.FragilityFunction
	consequence map[string]vulnerability.ConsequenceFunction
}

func (c *ScenarioDamageCalc) PreCalculator() calculator.Calculator {
	return &ScenarioCalc{Base: c.Base}
}

func (c *ScenarioDamageCalc) PreExecute(ctx context.Context) error {
	frag, err := paramFragility(c.Params)
	if err != nil {
		return err
	}
	c.fragility = frag
	c.consequence = paramConsequence(c.Params)
	return nil
}

func (c *ScenarioDamageCalc) Execute(ctx context.Context) (interface{}, error) {
	assetCol, err := paramAssets(c.Params)
	if err != nil {
		return nil, err
	}
	v, err := param(c.Params, "gmf_records")
	if err != nil {
		return nil, err
	}
	recs := v.([]types.GMFRecord)
	imt := imtForLossType(recs)

	calc := &risk.ScenarioDamage{Fragility: c.fragility, Consequence: c.consequence}
	return calc.Compute(assetCol.Assets, gmvsBySiteAndRlz(recs, imt), "structural"), nil
}

func (c *ScenarioDamageCalc) PostExecute(ctx context.Context, result interface{}) error {
	out := result.(risk.ScenarioDamageResult)
	if err := c.Store.Set("dmg_by_asset", out.ByAsset, nil); err != nil {
		return err
	}
	if err := c.Store.Set("dmg_by_taxon", out.ByTaxonomy, nil); err != nil {
		return err
	}
	if err := c.Store.Set("dmg_total", out.Total, nil); err != nil {
		return err
	}
	if len(out.Consequence) > 0 {
		if err := c.Store.Set("csq_total", out.Consequence, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *ScenarioDamageCalc) Export(ctx context.Context) error  { return nil }
func (c *ScenarioDamageCalc) CleanUp(ctx context.Context) error { return nil }

// ScenarioRiskCalc implements calculation_mode "scenario_risk" (spec.md
// §4.6): chains ScenarioCalc, computes the mean and stddev of total loss
// across realizations, and persists them under `loss_maps-stats`.
type ScenarioRiskCalc struct {
	*calculator.Base

	vuln map[string]vulnerability.VulnerabilityFunction
}

func (c *ScenarioRiskCalc) PreCalculator() calculator.Calculator {
	return &ScenarioCalc{Base: c.Base}
}

func (c *ScenarioRiskCalc) PreExecute(ctx context.Context) error {
	vuln, err := paramVuln(c.Params, "vuln")
	if err != nil {
		return err
	}
	c.vuln = vuln
	return nil
}

type scenarioRiskResult struct {
	Mean, StdDev float64
}

func (c *ScenarioRiskCalc) Execute(ctx context.Context) (interface{}, error) {
	assetCol, err := paramAssets(c.Params)
	if err != nil {
		return nil, err
	}
	v, err := param(c.Params, "gmf_records")
	if err != nil {
		return nil, err
	}
	recs := v.([]types.GMFRecord)
	imt := imtForLossType(recs)

	calc := &risk.ScenarioRisk{Vuln: c.vuln}
	mean, stddev := calc.Compute(assetCol.Assets, gmvsBySiteAndRlz(recs, imt), "structural")
	return scenarioRiskResult{Mean: mean, StdDev: stddev}, nil
}

func (c *ScenarioRiskCalc) PostExecute(ctx context.Context, result interface{}) error {
	out := result.(scenarioRiskResult)
	if math.IsNaN(out.Mean) {
		out.Mean = 0
	}
	return c.Store.Set("loss_maps-stats", out, nil)
}

func (c *ScenarioRiskCalc) Export(ctx context.Context) error  { return nil }
func (c *ScenarioRiskCalc) CleanUp(ctx context.Context) error { return nil }
