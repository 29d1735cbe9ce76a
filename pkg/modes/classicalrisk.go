package modes

import (
	"context"
	"fmt"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/hazard"
	"github.com/tandemseis/hazengine/pkg/risk"
	"github.com/tandemseis/hazengine/pkg/riskinput"
	sharedmath "github.com/tandemseis/hazengine/pkg/shared/math"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/vulnerability"
)

func init() {
	calculator.Register("classical_risk", func(base *calculator.Base) calculator.Calculator {
		return &ClassicalRiskCalc{Base: base}
	})
	calculator.Register("classical_damage", func(base *calculator.Base) calculator.Calculator {
		return &ClassicalDamageCalc{Base: base}
	})
	calculator.Register("classical_bcr", func(base *calculator.Base) calculator.Calculator {
		return &ClassicalBCRCalc{Base: base}
	})
}

func classicalResult(p calculator.Params) (hazard.ClassicalResult, error) {
	v, err := param(p, "classical_result")
	if err != nil {
		return hazard.ClassicalResult{}, err
	}
	r, ok := v.(hazard.ClassicalResult)
	if !ok {
		return hazard.ClassicalResult{}, fmt.Errorf("modes: param %q has type %T, want hazard.ClassicalResult", "classical_result", v)
	}
	return r, nil
}

func riskInputsFor(assets types.AssetCollection, pm *types.ProbabilityMap, cfg riskinput.Builder) ([]types.RiskInput, error) {
	cfg.Assets = assets
	cfg.Hazard = newProbabilityMapHazardSource(pm)
	return cfg.Build()
}

// ClassicalRiskCalc implements calculation_mode "classical_risk" (spec.md
// §4.6): chains ClassicalHazard, builds one risk input per (realization,
// IMT) from the stored hazard curves, and computes loss curves per asset,
// persisting `loss_curves-rlzs` and an unweighted mean `loss_curves-stats`.
type ClassicalRiskCalc struct {
	*calculator.Base

	vuln    map[string]vulnerability.VulnerabilityFunction
	builder vulnerability.LossCurveBuilder
}

func (c *ClassicalRiskCalc) PreCalculator() calculator.Calculator {
	return &ClassicalHazard{Base: c.Base}
}

func (c *ClassicalRiskCalc) PreExecute(ctx context.Context) error {
	vuln, err := paramVuln(c.Params, "vuln")
	if err != nil {
		return err
	}
	builder, err := paramLossCurveBuilder(c.Params)
	if err != nil {
		return err
	}
	c.vuln, c.builder = vuln, builder
	return nil
}

func (c *ClassicalRiskCalc) Execute(ctx context.Context) (interface{}, error) {
	assets, err := paramAssets(c.Params)
	if err != nil {
		return nil, err
	}
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return nil, err
	}
	imls, err := paramIMLs(c.Params)
	if err != nil {
		return nil, err
	}
	result, err := classicalResult(c.Params)
	if err != nil {
		return nil, err
	}

	curvesByRlz := map[int][]risk.LossCurve{}
	for rlz, pm := range result.CurvesByRlz {
		rinputs, err := riskInputsFor(assets, pm, riskinput.Builder{
			ConcurrentTasks: cfg.ConcurrentTasks, MasterSeed: cfg.MasterSeed, AssetCorrelation: cfg.AssetCorrelation,
		})
		if err != nil {
			return nil, err
		}
		calc := &risk.ClassicalRisk{Vuln: c.vuln, Builder: c.builder}
		for _, ri := range rinputs {
			calc.IMLs = imls[ri.IMT]
			curvesByRlz[rlz] = append(curvesByRlz[rlz], calc.Compute(ri, rlz)...)
		}
	}
	return curvesByRlz, nil
}

func (c *ClassicalRiskCalc) PostExecute(ctx context.Context, result interface{}) error {
	curvesByRlz := result.(map[int][]risk.LossCurve)
	if err := c.Store.Set("loss_curves-rlzs", curvesByRlz, nil); err != nil {
		return err
	}
	meanCurves := meanLossCurves(curvesByRlz)
	if err := c.Store.Set("loss_curves-stats", meanCurves, nil); err != nil {
		return err
	}

	cfg, err := paramConfig(c.Params)
	if err != nil {
		return err
	}
	if len(cfg.ConditionalLossPoes) == 0 {
		return nil
	}
	mapsByRlz := map[int]map[string][]float64{}
	for rlz, curves := range curvesByRlz {
		mapsByRlz[rlz] = lossMaps(curves, cfg.ConditionalLossPoes)
	}
	if err := c.Store.Set("loss_maps-rlzs", mapsByRlz, nil); err != nil {
		return err
	}
	return c.Store.Set("loss_maps-stats", lossMaps(meanCurves, cfg.ConditionalLossPoes), nil)
}

// lossMaps interpolates each loss curve's ratio at the requested
// conditional_loss_poes, keyed by "<asset_id>/<loss_type>" (spec.md §4.6's
// `loss_maps-rlzs`/`loss_maps-stats`).
func lossMaps(curves []risk.LossCurve, poes []float64) map[string][]float64 {
	out := make(map[string][]float64, len(curves))
	for _, lc := range curves {
		out[lc.AssetID+"/"+lc.LossType] = sharedmath.ComputeHazardMaps(lc.Ratios, lc.PoEs, poes)
	}
	return out
}

func (c *ClassicalRiskCalc) Export(ctx context.Context) error  { return nil }
func (c *ClassicalRiskCalc) CleanUp(ctx context.Context) error { return nil }

// meanLossCurves averages per-(asset, loss_type) PoEs across realizations
// (spec.md §4.6's "loss_curves-stats"). Unweighted: realization weighting
// already folds into the hazard side's mean curve; here it is a simple
// arithmetic mean across the same rlz set.
func meanLossCurves(byRlz map[int][]risk.LossCurve) []risk.LossCurve {
	type key struct{ assetID, lossType string }
	sums := map[key][]float64{}
	ratios := map[key][]float64{}
	counts := map[key]int{}
	for _, curves := range byRlz {
		for _, lc := range curves {
			k := key{lc.AssetID, lc.LossType}
			if sums[k] == nil {
				sums[k] = make([]float64, len(lc.PoEs))
				ratios[k] = lc.Ratios
			}
			for i, p := range lc.PoEs {
				sums[k][i] += p
			}
			counts[k]++
		}
	}
	var out []risk.LossCurve
	for k, sum := range sums {
		n := float64(counts[k])
		poes := make([]float64, len(sum))
		for i, s := range sum {
			poes[i] = s / n
		}
		out = append(out, risk.LossCurve{AssetID: k.assetID, LossType: k.lossType, Ratios: ratios[k], PoEs: poes})
	}
	return out
}

// ClassicalDamageCalc implements calculation_mode "classical_damage"
// (spec.md §4.6): chains ClassicalHazard, computes per-asset damage-state
// distributions from the mean hazard curve, and persists `dmg_by_asset`,
// `dmg_by_taxon` and `dmg_total`.
type ClassicalDamageCalc struct {
	*calculator.Base

	fragility map[string]vulnerability.FragilityFunction
	assets    []types.Asset
}

func (c *ClassicalDamageCalc) PreCalculator() calculator.Calculator {
	return &ClassicalHazard{Base: c.Base}
}

func (c *ClassicalDamageCalc) PreExecute(ctx context.Context) error {
	frag, err := paramFragility(c.Params)
	if err != nil {
		return err
	}
	c.fragility = frag
	return nil
}

func (c *ClassicalDamageCalc) Execute(ctx context.Context) (interface{}, error) {
	assetCol, err := paramAssets(c.Params)
	if err != nil {
		return nil, err
	}
	c.assets = assetCol.Assets
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return nil, err
	}
	imls, err := paramIMLs(c.Params)
	if err != nil {
		return nil, err
	}
	result, err := classicalResult(c.Params)
	if err != nil {
		return nil, err
	}

	rinputs, err := riskInputsFor(assetCol, result.MeanCurve, riskinput.Builder{
		ConcurrentTasks: cfg.ConcurrentTasks, MasterSeed: cfg.MasterSeed, AssetCorrelation: cfg.AssetCorrelation,
	})
	if err != nil {
		return nil, err
	}

	var out []risk.DamageDistribution
	calc := &risk.ClassicalDamage{Fragility: c.fragility}
	for _, ri := range rinputs {
		calc.IMLs = imls[ri.IMT]
		dists, err := calc.Compute(ri)
		if err != nil {
			return nil, err
		}
		out = append(out, dists...)
	}
	return out, nil
}

func (c *ClassicalDamageCalc) PostExecute(ctx context.Context, result interface{}) error {
	dists := result.([]risk.DamageDistribution)

	taxonomyOf := map[string]string{}
	for _, a := range c.assets {
		taxonomyOf[a.ID] = a.Taxonomy
	}

	byAsset := map[string][]float64{}
	byTaxon := map[string][]float64{}
	var total []float64
	for _, d := range dists {
		byAsset[d.AssetID] = d.Probs
		if total == nil {
			total = make([]float64, len(d.Probs))
		}
		for i, p := range d.Probs {
			total[i] += p
		}
		tax := taxonomyOf[d.AssetID]
		vec := byTaxon[tax]
		if vec == nil {
			vec = make([]float64, len(d.Probs))
		}
		for i, p := range d.Probs {
			vec[i] += p
		}
		byTaxon[tax] = vec
	}

	if err := c.Store.Set("dmg_by_asset", byAsset, nil); err != nil {
		return err
	}
	if err := c.Store.Set("dmg_by_taxon", byTaxon, nil); err != nil {
		return err
	}
	return c.Store.Set("dmg_total", total, nil)
}

func (c *ClassicalDamageCalc) Export(ctx context.Context) error  { return nil }
func (c *ClassicalDamageCalc) CleanUp(ctx context.Context) error { return nil }

// ClassicalBCRCalc implements calculation_mode "classical_bcr" (spec.md
// §4.6): chains ClassicalHazard, computes retrofit benefit-cost ratios per
// (asset, loss_type, rlz) from original and retrofitted vulnerability
// functions, persisting `bcr-rlzs`.
type ClassicalBCRCalc struct {
	*calculator.Base

	vulnOrig, vulnRetro map[string]vulnerability.VulnerabilityFunction
	builder             vulnerability.LossCurveBuilder
}

func (c *ClassicalBCRCalc) PreCalculator() calculator.Calculator {
	return &ClassicalHazard{Base: c.Base}
}

func (c *ClassicalBCRCalc) PreExecute(ctx context.Context) error {
	orig, err := paramVuln(c.Params, "vuln")
	if err != nil {
		return err
	}
	retro, err := paramVuln(c.Params, "vuln_retrofitted")
	if err != nil {
		return err
	}
	builder, err := paramLossCurveBuilder(c.Params)
	if err != nil {
		return err
	}
	c.vulnOrig, c.vulnRetro, c.builder = orig, retro, builder
	return nil
}

func (c *ClassicalBCRCalc) Execute(ctx context.Context) (interface{}, error) {
	assets, err := paramAssets(c.Params)
	if err != nil {
		return nil, err
	}
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return nil, err
	}
	imls, err := paramIMLs(c.Params)
	if err != nil {
		return nil, err
	}
	result, err := classicalResult(c.Params)
	if err != nil {
		return nil, err
	}

	var out []risk.BCRResult
	for rlz, pm := range result.CurvesByRlz {
		rinputs, err := riskInputsFor(assets, pm, riskinput.Builder{
			ConcurrentTasks: cfg.ConcurrentTasks, MasterSeed: cfg.MasterSeed, AssetCorrelation: cfg.AssetCorrelation,
		})
		if err != nil {
			return nil, err
		}
		calc := &risk.ClassicalBCR{
			VulnOrig: c.vulnOrig, VulnRetro: c.vulnRetro, Builder: c.builder,
			InterestRate: cfg.InterestRate, AssetLifeExpectancy: cfg.AssetLifeExpectancy,
		}
		for _, ri := range rinputs {
			calc.IMLs = imls[ri.IMT]
			out = append(out, calc.Compute(ri, rlz)...)
		}
	}
	return out, nil
}

func (c *ClassicalBCRCalc) PostExecute(ctx context.Context, result interface{}) error {
	return c.Store.Set("bcr-rlzs", result.([]risk.BCRResult), nil)
}

func (c *ClassicalBCRCalc) Export(ctx context.Context) error  { return nil }
func (c *ClassicalBCRCalc) CleanUp(ctx context.Context) error { return nil }
