// Package hazard implements spec.md §4.5's hazard calculators: classical
// PSHA, event-based rupture sampling, event-based GMF + curves, and
// scenario GMF. Each follows the calculator state machine of
// pkg/calculator, calling into pkg/taskmgr for the parallel map-reduce
// and pkg/seismic for the out-of-scope ground-motion kernels.
//
// Grounded on spec.md §4.5 and
// _examples/original_source/openquake/calculators/classical.py,
// event_based.py and scenario.py.
package hazard

import (
	"context"

	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/logictree"
	"github.com/tandemseis/hazengine/pkg/seismic"
	sharedmath "github.com/tandemseis/hazengine/pkg/shared/math"
	"github.com/tandemseis/hazengine/pkg/shared/types"
)

// CurveKernel computes a probability-of-exceedance map for a block of
// sources under one GSIM, the out-of-scope "external hazard-curves
// kernel" spec.md §4.5 names explicitly.
type CurveKernel interface {
	ProbabilityMap(ctx context.Context, sources []csm.Source, gsim seismic.GSIM, sites []types.Site, imls map[string][]float64, truncationLevel float64) (*types.ProbabilityMap, error)
}

// sourcesByTrt groups a composite source model's sources by trt_model_id,
// the unit each classical work block is drawn from (spec.md §4.5:
// "sources of a single TRT").
func sourcesByTrt(c *csm.CompositeSourceModel) map[int][]csm.Source {
	out := map[int][]csm.Source{}
	for _, tm := range c.TrtModels() {
		out[tm.TrtID] = append(out[tm.TrtID], tm.Sources...)
	}
	return out
}

// CombineProbabilityMaps projects per-(trt_id, gsim) probability maps onto
// the per-realization view via assoc, combining with probabilistic OR
// (spec.md §4.5: "project per-(trt_id) maps onto per-(trt_id, gsim),
// combine to per-realization curves").
func CombineProbabilityMaps(assoc *logictree.RlzsAssoc, resultsByKey map[logictree.AssocKey]*types.ProbabilityMap) map[int]*types.ProbabilityMap {
	out := map[int]*types.ProbabilityMap{}
	for _, rlz := range assoc.Realizations {
		out[rlz.Ordinal] = types.NewProbabilityMap()
	}
	for key, pm := range resultsByKey {
		for _, rlz := range assoc.Assoc[key] {
			out[rlz.Ordinal].CombineInto(pm, sharedmath.CombineOR)
		}
	}
	return out
}

// MeanCurve computes the realization-weighted mean curve per site/imt/level
// (spec.md §4.5: "weighted by realization weight, or unweighted under
// sampling" — sampling weights already sum to 1/N each, so a single
// weighted average formula covers both cases).
func MeanCurve(assoc *logictree.RlzsAssoc, rlzMaps map[int]*types.ProbabilityMap) *types.ProbabilityMap {
	out := types.NewProbabilityMap()
	totalWeight := assoc.TotalWeight()
	if totalWeight == 0 {
		return out
	}
	for _, rlz := range assoc.Realizations {
		pm, ok := rlzMaps[rlz.Ordinal]
		if !ok {
			continue
		}
		w := rlz.Weight / totalWeight
		for siteID, byIMT := range pm.BySite {
			dst, ok := out.BySite[siteID]
			if !ok {
				dst = map[string][]float64{}
				out.BySite[siteID] = dst
			}
			for imt, levels := range byIMT {
				cur, ok := dst[imt]
				if !ok {
					cur = make([]float64, len(levels))
					dst[imt] = cur
				}
				for i, v := range levels {
					cur[i] += v * w
				}
			}
		}
	}
	return out
}

// HazardMaps derives, per site and IMT, the iml at each requested poe via
// sharedmath.ComputeHazardMaps (spec.md §4.5).
func HazardMaps(pm *types.ProbabilityMap, imls map[string][]float64, poes []float64) map[int]map[string][]float64 {
	out := map[int]map[string][]float64{}
	for siteID, byIMT := range pm.BySite {
		dst := map[string][]float64{}
		for imt, curve := range byIMT {
			dst[imt] = sharedmath.ComputeHazardMaps(imls[imt], curve, poes)
		}
		out[siteID] = dst
	}
	return out
}

