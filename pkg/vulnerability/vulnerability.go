// Package vulnerability defines the interfaces for spec.md §1's other
// deliberately out-of-scope collaborator: "the numerical vulnerability,
// fragility, and loss-curve routines (treated as pure functions)". A
// minimal deterministic reference implementation is provided so
// pkg/risk's calculators are exercisable and testable end-to-end, the
// same pattern pkg/seismic applies to the hazard side.
//
// Grounded on spec.md §1/§4.6 and
// _examples/original_source/openquake/risklib/scientific.py's
// VulnerabilityFunction/FragilityFunction/LossCurve call shapes.
package vulnerability

// VulnerabilityFunction gives the mean loss ratio and its coefficient of
// variation at a ground-motion intensity.
type VulnerabilityFunction interface {
	MeanLossRatio(iml float64) (mean, cov float64)
}

// FragilityFunction gives the probability of meeting or exceeding damage
// state ds (1-indexed; 0 is "no damage") at a ground-motion intensity.
type FragilityFunction interface {
	PoE(ds int, iml float64) float64
	NumDamageStates() int
}

// ConsequenceFunction gives the mean consequence ratio for a damage state,
// used to convert a damage distribution into a monetary loss.
type ConsequenceFunction interface {
	Mean(ds int) float64
}

// LossCurveBuilder derives a loss-ratio exceedance curve from a hazard
// curve and a vulnerability function — spec.md §1 calls this out
// explicitly as an out-of-scope "loss-curve routine".
type LossCurveBuilder interface {
	Build(imls, poes []float64, vuln VulnerabilityFunction) (ratios, curvePoEs []float64)
}
