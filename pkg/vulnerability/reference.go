package vulnerability

import "math"

// LinearVulnerability is the minimal reference VulnerabilityFunction: mean
// loss ratio rises linearly with intensity up to a cap, with a fixed
// coefficient of variation. Not a seismological/engineering model — a
// stand-in good enough to exercise the risk pipeline end-to-end
// (spec.md §8's concrete scenarios).
type LinearVulnerability struct {
	Slope float64
	Cap    float64 // maximum mean loss ratio, in [0,1]
	CoV    float64
}

func (v LinearVulnerability) MeanLossRatio(iml float64) (mean, cov float64) {
	mean = v.Slope * iml
	if mean > v.Cap {
		mean = v.Cap
	}
	if mean < 0 {
		mean = 0
	}
	return mean, v.CoV
}

// LognormalFragility is the minimal reference FragilityFunction: each
// damage state has a lognormal threshold (median, log-stddev); PoE is the
// lognormal CDF evaluated at iml.
type LognormalFragility struct {
	Median   []float64 // one per damage state, ascending
	LogBeta  []float64 // matching length
}

func (f LognormalFragility) NumDamageStates() int { return len(f.Median) }

func (f LognormalFragility) PoE(ds int, iml float64) float64 {
	if ds < 1 || ds > len(f.Median) || iml <= 0 {
		return 0
	}
	median := f.Median[ds-1]
	beta := f.LogBeta[ds-1]
	if median <= 0 || beta <= 0 {
		return 0
	}
	z := math.Log(iml/median) / beta
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// MeanConsequence is the minimal reference ConsequenceFunction: a fixed
// mean consequence ratio per damage state.
type MeanConsequence struct {
	Ratios []float64 // one per damage state (1-indexed via ds-1)
}

func (c MeanConsequence) Mean(ds int) float64 {
	if ds < 1 || ds > len(c.Ratios) {
		return 0
	}
	return c.Ratios[ds-1]
}

// DirectLossCurve is the minimal reference LossCurveBuilder: since the
// vulnerability function is monotonic non-decreasing in iml, the
// exceedance probability of "loss ratio >= vuln.MeanLossRatio(iml)" equals
// the exceedance probability of "intensity >= iml" — so the hazard curve's
// poes carry over unchanged, re-indexed onto the loss-ratio axis.
type DirectLossCurve struct{}

func (DirectLossCurve) Build(imls, poes []float64, vuln VulnerabilityFunction) (ratios, curvePoEs []float64) {
	ratios = make([]float64, len(imls))
	curvePoEs = make([]float64, len(poes))
	for i, iml := range imls {
		mean, _ := vuln.MeanLossRatio(iml)
		ratios[i] = mean
	}
	copy(curvePoEs, poes)
	return ratios, curvePoEs
}
