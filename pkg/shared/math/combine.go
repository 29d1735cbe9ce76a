// Package math provides the small set of pure numerical routines shared by
// the hazard and risk calculators: probabilistic combination of exceedance
// probabilities, hazard-map interpolation, and the ses_ratio conversion.
//
// These are intentionally implemented against the standard library only:
// the teacher (a Kubernetes controller) has no numerics library to reuse,
// and pulling in a general-purpose math/stats package for three formulas
// spec.md gives exact closed forms for would not make the code more
// idiomatic, just heavier.
package math

import (
	"math"
	"sort"
)

// CombineOR implements the probabilistic-OR aggregation law used to combine
// independent probabilities of exceedance: agg(a, b) = 1 - (1-a)(1-b).
func CombineOR(a, b float64) float64 {
	return 1 - (1-a)*(1-b)
}

// CombineORAll folds CombineOR over a slice, starting from 0 (the identity
// for probabilistic OR).
func CombineORAll(probs []float64) float64 {
	acc := 0.0
	for _, p := range probs {
		acc = CombineOR(acc, p)
	}
	return acc
}

// SesRatio converts an annual event rate into the averaging ratio used to
// scale per-event losses into average annual losses:
//
//	ses_ratio = risk_investigation_time / (investigation_time * ses_per_logic_tree_path)
func SesRatio(riskInvestigationTime, investigationTime float64, sesPerLogicTreePath int) float64 {
	return riskInvestigationTime / (investigationTime * float64(sesPerLogicTreePath))
}

// poeFloor is the cutoff below which a probability of exceedance is treated
// as zero for interpolation purposes (spec.md §4.5).
const poeFloor = 1e-30

// ComputeHazardMaps interpolates a hazard curve (given as parallel iml/poe
// arrays, iml ascending) at each of the requested poes, in log-iml /
// log-poe space. It clips poe values below 1e-30, and applies the
// left-extrapolation rule: when the requested poe is at or above the
// curve's maximum, the returned iml is 0.
//
// ComputeHazardMaps is monotone: for fixed imls, increasing poe yields a
// non-increasing iml.
func ComputeHazardMaps(imls, curve []float64, poes []float64) []float64 {
	out := make([]float64, len(poes))
	if len(imls) == 0 || len(curve) == 0 || len(imls) != len(curve) {
		return out
	}

	// curve is expected in iml-ascending order, hence poe-descending.
	logImls := make([]float64, len(imls))
	logPoes := make([]float64, len(curve))
	maxPoe := curve[0]
	for i, v := range imls {
		iml := v
		if iml <= 0 {
			iml = 1e-300
		}
		logImls[i] = math.Log(iml)
	}
	for i, v := range curve {
		c := v
		if c < poeFloor {
			c = poeFloor
		}
		logPoes[i] = math.Log(c)
		if v > maxPoe {
			maxPoe = v
		}
	}

	for i, poe := range poes {
		if poe >= maxPoe {
			out[i] = 0
			continue
		}
		p := poe
		if p < poeFloor {
			p = poeFloor
		}
		logIml := interpolateDescending(logPoes, logImls, math.Log(p))
		out[i] = math.Exp(logIml)
	}
	return out
}

// GMVsToHazCurve derives a hazard curve from a per-site sample of ground
// motion values: the rate of exceedance of each iml over duration,
// converted into a Poissonian probability of exceedance over
// investigationTime (spec.md §4.5's `gmvs_to_haz_curve`).
func GMVsToHazCurve(gmvs []float64, imls []float64, investigationTime, duration float64) []float64 {
	curve := make([]float64, len(imls))
	if duration <= 0 {
		return curve
	}
	for i, iml := range imls {
		count := 0
		for _, v := range gmvs {
			if v >= iml {
				count++
			}
		}
		rate := float64(count) / duration
		curve[i] = 1 - math.Exp(-rate*investigationTime)
	}
	return curve
}

// interpolateDescending linearly interpolates y at x, where xs is sorted in
// descending order (as log-poe is, since poe decreases with increasing
// iml) and ys is the corresponding log-iml at each xs.
func interpolateDescending(xs, ys []float64, x float64) float64 {
	n := len(xs)
	// Find the first index whose value is <= x (xs is descending).
	i := sort.Search(n, func(i int) bool { return xs[i] <= x })
	if i == 0 {
		return ys[0]
	}
	if i >= n {
		return ys[n-1]
	}
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	if x1 == x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}
