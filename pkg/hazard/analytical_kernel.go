package hazard

import (
	"context"
	"math"
	"math/rand"

	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/seismic"
	sharedmath "github.com/tandemseis/hazengine/pkg/shared/math"
	"github.com/tandemseis/hazengine/pkg/shared/types"
)

// AnalyticalKernel is a reference CurveKernel for classical PSHA (spec.md
// §4.5's "external hazard-curves kernel"): for each source it draws one
// representative rupture via its geometry — the same seeded point-sample
// approach the event-based sampler uses — then folds the occurrence rate
// implied by NumRuptures/InvestigationTime through the GSIM's lognormal
// survival function into a Poissonian probability of exceedance, combined
// across sources via probabilistic OR. Full magnitude/distance integration
// over a source's rupture population is the out-of-scope seismological
// primitive spec.md §1 excludes; this reference stands in for it the same
// way seismic.DeterministicGmfComputer stands in for GMF synthesis.
type AnalyticalKernel struct {
	GeometryOf        func(csm.Source) seismic.SourceGeometry
	InvestigationTime float64
	RunSeed           int64
}

// ProbabilityMap implements hazard.CurveKernel.
func (k *AnalyticalKernel) ProbabilityMap(ctx context.Context, sources []csm.Source, gsim seismic.GSIM, sites []types.Site, imls map[string][]float64, truncationLevel float64) (*types.ProbabilityMap, error) {
	pm := types.NewProbabilityMap()
	it := k.InvestigationTime
	if it <= 0 {
		it = 1
	}
	for _, src := range sources {
		if k.GeometryOf == nil || src.NumRuptures <= 0 {
			continue
		}
		geom := k.GeometryOf(src)
		if geom == nil {
			continue
		}
		rng := rand.New(rand.NewSource(k.RunSeed + int64(src.TrtModelID) + hashSourceID(src.ID)))
		rups := geom.SampleRuptures(rng, 1)
		if len(rups) == 0 {
			continue
		}
		rup := rups[0]
		rate := float64(src.NumRuptures) / it

		for _, site := range sites {
			dst, ok := pm.BySite[site.ID]
			if !ok {
				dst = map[string][]float64{}
				pm.BySite[site.ID] = dst
			}
			for imt, levels := range imls {
				cur, ok := dst[imt]
				if !ok {
					cur = make([]float64, len(levels))
					dst[imt] = cur
				}
				mean, stddev := gsim.MeanStdDev(imt, rup, site)
				for i, iml := range levels {
					sf := lognormalSurvival(iml, mean, stddev)
					poe := 1 - math.Exp(-rate*sf)
					cur[i] = sharedmath.CombineOR(cur[i], poe)
				}
			}
		}
	}
	return pm, nil
}

// lognormalSurvival returns P(X >= iml) for X lognormal with log-mean
// logMean and log-stddev logStd (spec.md §4.5; the same Erf-based
// lognormal CDF pkg/vulnerability's LognormalFragility uses, mirrored here
// since it is the closed form for both).
func lognormalSurvival(iml, logMean, logStd float64) float64 {
	if iml <= 0 {
		return 1
	}
	if logStd <= 0 {
		if math.Log(iml) <= logMean {
			return 1
		}
		return 0
	}
	z := (math.Log(iml) - logMean) / logStd
	return 0.5 * (1 - math.Erf(z/math.Sqrt2))
}

// hashSourceID derives a small deterministic offset from a source id so
// sources sharing a trt_model_id don't all draw identical rng streams.
func hashSourceID(id string) int64 {
	var h int64 = 1469598103934665603
	for i := 0; i < len(id); i++ {
		h ^= int64(id[i])
		h *= 1099511628211
	}
	return h
}
