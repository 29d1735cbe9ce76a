// Package risk implements spec.md §4.6's risk calculators: classical
// risk/damage/BCR, event-based risk, scenario damage and scenario risk.
// Each calls into pkg/vulnerability for the out-of-scope vulnerability,
// fragility and loss-curve pure functions, and pkg/riskinput for its
// work items.
//
// Grounded on spec.md §4.6 and
// _examples/original_source/openquake/calculators/classical_risk.py,
// classical_damage.py, classical_bcr.py, event_based_risk.py,
// scenario_damage.py and scenario_risk.py.
package risk

import (
	"math"
	"sort"

	sharederrors "github.com/tandemseis/hazengine/pkg/shared/errors"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/vulnerability"
)

// LossCurve is a loss-ratio exceedance curve for one (asset, realization).
type LossCurve struct {
	AssetID    string
	Rlz        int
	LossType   string
	Ratios     []float64
	PoEs       []float64
}

// ClassicalRisk computes loss curves per (asset, rlz) from risk inputs
// (spec.md §4.6).
type ClassicalRisk struct {
	Vuln    map[string]vulnerability.VulnerabilityFunction // loss_type -> function
	Builder vulnerability.LossCurveBuilder
	IMLs    []float64
}

// Compute builds one LossCurve per asset in ri, for every loss type this
// calculator knows a vulnerability function for.
func (c *ClassicalRisk) Compute(ri types.RiskInput, rlz int) []LossCurve {
	var out []LossCurve
	for lossType, vuln := range c.Vuln {
		for _, asset := range ri.Assets {
			poes, ok := ri.HazardAtSite[asset.SiteID]
			if !ok {
				continue
			}
			ratios, curvePoEs := c.Builder.Build(c.IMLs, poes, vuln)
			out = append(out, LossCurve{AssetID: asset.ID, Rlz: rlz, LossType: lossType, Ratios: ratios, PoEs: curvePoEs})
		}
	}
	return out
}

// DamageDistribution gives the probability mass over damage states for one
// asset, index 0 being "no damage".
type DamageDistribution struct {
	AssetID string
	Probs   []float64 // len == NumDamageStates+1
}

// ClassicalDamage computes damage-state distributions per asset
// (spec.md §4.6): rejects `poe == 1` as it would yield log(0) downstream.
type ClassicalDamage struct {
	Fragility map[string]vulnerability.FragilityFunction // taxonomy -> function
	IMLs      []float64
}

func (c *ClassicalDamage) Compute(ri types.RiskInput) ([]DamageDistribution, error) {
	var out []DamageDistribution
	for _, asset := range ri.Assets {
		poes, ok := ri.HazardAtSite[asset.SiteID]
		if !ok {
			continue
		}
		if len(poes) > 0 && poes[0] == 1 {
			return nil, sharederrors.NewInvalidHazard(asset.ID)
		}
		frag, ok := c.Fragility[asset.Taxonomy]
		if !ok {
			continue
		}
		n := frag.NumDamageStates()
		probs := make([]float64, n+1)
		for i, iml := range c.IMLs {
			var occurrence float64
			if i == 0 {
				occurrence = 1 - poes[i]
			} else {
				occurrence = poes[i-1] - poes[i]
			}
			if occurrence <= 0 {
				continue
			}
			prevPoE := 1.0
			for ds := 1; ds <= n; ds++ {
				p := frag.PoE(ds, iml)
				probs[ds-1] += occurrence * (prevPoE - p)
				prevPoE = p
			}
			probs[n] += occurrence * prevPoE
		}
		out = append(out, DamageDistribution{AssetID: asset.ID, Probs: probs})
	}
	return out, nil
}

// BCRResult is one (asset, loss_type, rlz) row of a benefit-cost-ratio
// calculation (spec.md §4.6).
type BCRResult struct {
	AssetID         string
	LossType        string
	Rlz             int
	AnnualLossOrig  float64
	AnnualLossRetro float64
	BCR             float64
}

// ClassicalBCR computes (annual_loss_orig, annual_loss_retro, bcr) per
// (asset, loss_type, rlz) from two loss curve sets — original and
// retrofitted vulnerability — given an interest rate and asset lifetime
// (spec.md §4.6).
type ClassicalBCR struct {
	VulnOrig  map[string]vulnerability.VulnerabilityFunction
	VulnRetro map[string]vulnerability.VulnerabilityFunction
	Builder   vulnerability.LossCurveBuilder
	IMLs      []float64
	InterestRate  float64
	AssetLifeExpectancy float64
}

// averageLoss integrates a loss-ratio exceedance curve to an annual
// average loss: Σ ratios[i] * (poes[i-1]-poes[i]) (a step sum over the
// discrete exceedance steps, with poes[-1] taken as 1 and negative steps
// counted as 0), scaled by the asset's replacement value.
func averageLoss(ratios, poes []float64, assetValue float64) float64 {
	total := 0.0
	for i := range ratios {
		var occurrence float64
		if i == 0 {
			occurrence = 1 - poes[i]
		} else {
			occurrence = poes[i-1] - poes[i]
		}
		if occurrence < 0 {
			occurrence = 0
		}
		total += ratios[i] * occurrence
	}
	return total * assetValue
}

// retrofitMultiplier converts an avoided-loss annuity into the benefit
// side of the BCR ratio (spec.md §4.6's capital-budgeting formula).
func retrofitMultiplier(interestRate, lifeExpectancy float64) float64 {
	if interestRate <= 0 {
		return lifeExpectancy
	}
	return (1 - math.Pow(1+interestRate, -lifeExpectancy)) / interestRate
}

func (c *ClassicalBCR) Compute(ri types.RiskInput, rlz int) []BCRResult {
	var out []BCRResult
	mult := retrofitMultiplier(c.InterestRate, c.AssetLifeExpectancy)
	for lossType, vulnOrig := range c.VulnOrig {
		vulnRetro, ok := c.VulnRetro[lossType]
		if !ok {
			continue
		}
		for _, asset := range ri.Assets {
			poes, ok := ri.HazardAtSite[asset.SiteID]
			if !ok {
				continue
			}
			ratiosOrig, poesOrig := c.Builder.Build(c.IMLs, poes, vulnOrig)
			ratiosRetro, poesRetro := c.Builder.Build(c.IMLs, poes, vulnRetro)
			value := asset.Value(lossType)
			lossOrig := averageLoss(ratiosOrig, poesOrig, value)
			lossRetro := averageLoss(ratiosRetro, poesRetro, value)
			retrofitCost := asset.Retrofitted[lossType]
			var bcr float64
			if retrofitCost > 0 {
				bcr = (lossOrig - lossRetro) * mult / retrofitCost
			}
			out = append(out, BCRResult{
				AssetID: asset.ID, LossType: lossType, Rlz: rlz,
				AnnualLossOrig: lossOrig, AnnualLossRetro: lossRetro, BCR: bcr,
			})
		}
	}
	return out
}

// EventLoss is one row of the event loss table (spec.md §4.6):
// `(rup_id, ass_id?, loss(, loss_insured))`.
type EventLoss struct {
	EventID       uint64
	AssetID       string // empty for aggregate-only rows
	Loss          float64
	LossInsured   float64
}

// EventBasedRisk computes the event loss table and average losses from a
// GMF-keyed risk input (spec.md §4.6).
type EventBasedRisk struct {
	Vuln     map[string]vulnerability.VulnerabilityFunction
	SesRatio float64
}

// Compute derives one EventLoss row per (asset, event) pair whose gmv is
// available, plus the average annual loss per asset
// (avg = Σ loss_ratio * asset_value * ses_ratio, spec.md §4.6).
func (e *EventBasedRisk) Compute(ri types.RiskInput, lossType string, gmvsByEvent map[uint64]map[int]float64) ([]EventLoss, map[string]float64) {
	vuln, ok := e.Vuln[lossType]
	if !ok {
		return nil, nil
	}
	var rows []EventLoss
	avgByAsset := map[string]float64{}
	var eventIDs []uint64
	for id := range gmvsByEvent {
		eventIDs = append(eventIDs, id)
	}
	sort.Slice(eventIDs, func(i, j int) bool { return eventIDs[i] < eventIDs[j] })

	for _, asset := range ri.Assets {
		value := asset.Value(lossType)
		if value == 0 {
			continue
		}
		limit := asset.Limits[lossType]
		deductible := asset.Deductibles[lossType]
		for _, eventID := range eventIDs {
			gmv, ok := gmvsByEvent[eventID][asset.SiteID]
			if !ok {
				continue
			}
			mean, _ := vuln.MeanLossRatio(gmv)
			loss := mean * value
			insured := loss
			if limit > 0 && insured > limit {
				insured = limit
			}
			insured -= deductible
			if insured < 0 {
				insured = 0
			}
			rows = append(rows, EventLoss{EventID: eventID, AssetID: asset.ID, Loss: loss, LossInsured: insured})
			avgByAsset[asset.ID] += loss * e.SesRatio
		}
	}
	return rows, avgByAsset
}

// ScenarioDamage computes per-asset and per-taxonomy damage distributions,
// aggregated to a total, plus an optional consequence distribution
// (spec.md §4.6).
type ScenarioDamage struct {
	Fragility   map[string]vulnerability.FragilityFunction
	Consequence map[string]vulnerability.ConsequenceFunction // taxonomy -> function, optional
}

// ScenarioDamageResult holds the per-asset, per-taxonomy and total damage
// distributions (and optional consequence distributions).
type ScenarioDamageResult struct {
	ByAsset      map[string][]float64
	ByTaxonomy   map[string][]float64
	Total        []float64
	Consequence  map[string]float64 // taxonomy -> mean monetary consequence
}

// Compute aggregates the per-realization GMV at each asset's site into
// damage-state probabilities, averaged across realizations.
func (s *ScenarioDamage) Compute(assets []types.Asset, gmvsBySiteAndRlz map[int][]float64, lossType string) ScenarioDamageResult {
	res := ScenarioDamageResult{ByAsset: map[string][]float64{}, ByTaxonomy: map[string][]float64{}, Consequence: map[string]float64{}}
	var numStates int
	for _, a := range assets {
		frag, ok := s.Fragility[a.Taxonomy]
		if !ok {
			continue
		}
		numStates = frag.NumDamageStates()
		gmvs := gmvsBySiteAndRlz[a.SiteID]
		if len(gmvs) == 0 {
			continue
		}
		probs := make([]float64, numStates+1)
		for _, gmv := range gmvs {
			prevPoE := 1.0
			for ds := 1; ds <= numStates; ds++ {
				p := frag.PoE(ds, gmv)
				probs[ds-1] += prevPoE - p
				prevPoE = p
			}
			probs[numStates] += prevPoE
		}
		n := float64(len(gmvs))
		for i := range probs {
			probs[i] /= n
		}
		res.ByAsset[a.ID] = probs

		tax := res.ByTaxonomy[a.Taxonomy]
		if tax == nil {
			tax = make([]float64, numStates+1)
		}
		for i := range probs {
			tax[i] += probs[i]
		}
		res.ByTaxonomy[a.Taxonomy] = tax

		if res.Total == nil {
			res.Total = make([]float64, numStates+1)
		}
		for i := range probs {
			res.Total[i] += probs[i]
		}

		if cons, ok := s.Consequence[a.Taxonomy]; ok {
			mean := 0.0
			for ds := 1; ds <= numStates; ds++ {
				mean += probs[ds] * cons.Mean(ds) * a.Value(lossType)
			}
			res.Consequence[a.Taxonomy] += mean
		}
	}
	return res
}

// ScenarioRisk computes the mean and stddev of total loss per realization
// (spec.md §4.6).
type ScenarioRisk struct {
	Vuln map[string]vulnerability.VulnerabilityFunction
}

// Compute sums per-asset losses for each realization's GMF, then returns
// the mean and population stddev of the totals across realizations.
func (s *ScenarioRisk) Compute(assets []types.Asset, gmvsBySiteAndRlz map[int][]float64, lossType string) (mean, stddev float64) {
	vuln, ok := s.Vuln[lossType]
	if !ok {
		return 0, 0
	}
	var totals []float64
	numRlz := 0
	for _, gmvs := range gmvsBySiteAndRlz {
		if len(gmvs) > numRlz {
			numRlz = len(gmvs)
		}
	}
	totals = make([]float64, numRlz)
	for _, a := range assets {
		value := a.Value(lossType)
		gmvs := gmvsBySiteAndRlz[a.SiteID]
		for i, gmv := range gmvs {
			m, _ := vuln.MeanLossRatio(gmv)
			totals[i] += m * value
		}
	}
	if len(totals) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, t := range totals {
		sum += t
	}
	mean = sum / float64(len(totals))
	var variance float64
	for _, t := range totals {
		d := t - mean
		variance += d * d
	}
	variance /= float64(len(totals))
	return mean, math.Sqrt(variance)
}
