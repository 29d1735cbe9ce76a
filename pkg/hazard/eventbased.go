package hazard

import (
	"math/rand"
	"sort"

	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/logictree"
	"github.com/tandemseis/hazengine/pkg/seismic"
	sharedmath "github.com/tandemseis/hazengine/pkg/shared/math"
	"github.com/tandemseis/hazengine/pkg/shared/types"
)

// EventBasedRupture implements spec.md §4.5's event-based rupture sampler:
// one stochastic event set per source serial, sites filtered by maximum
// distance or (when configured) by a one-draw minimum-intensity check.
type EventBasedRupture struct {
	Sites               []types.Site
	Tile                seismic.Tile
	MaximumDistance     map[string]float64
	MinimumIntensity    map[string]float64
	SesPerLogicTreePath int
	GSIMs               map[logictree.AssocKey]seismic.GSIM
	GmfComputer         seismic.GmfComputer
	TruncationLevel     float64
	RunSeed             int64
}

// SampleSource draws one candidate rupture per (serial, stochastic event
// set) pair, keeping only those whose filtered site set is non-empty
// (spec.md §4.5). Event ids are left unset; call AssignEventIDs once every
// source has been sampled.
func (e *EventBasedRupture) SampleSource(src csm.Source, geom seismic.SourceGeometry) []types.EBRupture {
	var out []types.EBRupture
	for _, serial := range src.Serial {
		rng := rand.New(rand.NewSource(e.RunSeed + int64(serial)))
		rups := geom.SampleRuptures(rng, e.SesPerLogicTreePath)
		for sesIdx, rup := range rups {
			rup.Serial = serial
			rup.SourceID = src.ID
			rup.TrtID = src.TrtModelID
			siteIndices := e.filterSites(rup, geom)
			if len(siteIndices) == 0 {
				continue
			}
			out = append(out, types.EBRupture{
				Rupture:     rup,
				SiteIndices: siteIndices,
				Events:      []types.EventInfo{{SESIndex: sesIdx + 1, OccurrenceNo: 1}},
			})
		}
	}
	return out
}

func (e *EventBasedRupture) filterSites(rup types.Rupture, geom seismic.SourceGeometry) []int {
	candidates := e.Tile.SitesWithin(geom, e.MaximumDistance["default"])
	if len(e.MinimumIntensity) == 0 || e.GmfComputer == nil {
		return candidates
	}

	imts := make([]string, 0, len(e.MinimumIntensity))
	for imt := range e.MinimumIntensity {
		imts = append(imts, imt)
	}
	sort.Strings(imts)

	rng := rand.New(rand.NewSource(e.RunSeed + rup.Seed))
	var kept []int
	for _, siteID := range candidates {
		site, ok := e.siteByID(siteID)
		if !ok {
			continue
		}
		above := false
		for _, gsim := range e.GSIMs {
			for _, rec := range e.GmfComputer.Compute(rup, []types.Site{site}, gsim, imts, e.TruncationLevel, rng) {
				for imt, v := range rec.GMV {
					if v >= e.MinimumIntensity[imt] {
						above = true
					}
				}
			}
			if above {
				break
			}
		}
		if above {
			kept = append(kept, siteID)
		}
	}
	return kept
}

func (e *EventBasedRupture) siteByID(id int) (types.Site, bool) {
	for _, s := range e.Sites {
		if s.ID == id {
			return s, true
		}
	}
	return types.Site{}, false
}

// AssignEventIDs assigns dense event ids over the run after a global sort
// by serial (spec.md §4.5/§5). The slice is sorted and mutated in place,
// and also returned for chaining.
func AssignEventIDs(ebruptures []types.EBRupture) []types.EBRupture {
	sort.Slice(ebruptures, func(i, j int) bool {
		return ebruptures[i].Serial < ebruptures[j].Serial
	})
	var next uint64
	for i := range ebruptures {
		for j := range ebruptures[i].Events {
			ebruptures[i].Events[j].EventID = next
			next++
		}
	}
	return ebruptures
}

// EventBasedGMF implements spec.md §4.5's GMF + curves step: for every
// stored EBRupture, compute ground motion per (site, gsim, realization)
// and optionally fold into a per-realization hazard curve.
type EventBasedGMF struct {
	GmfComputer         seismic.GmfComputer
	GSIMs               map[logictree.AssocKey]seismic.GSIM
	Assoc               *logictree.RlzsAssoc
	IMTs                []string
	TruncationLevel     float64
	InvestigationTime   float64
	SesPerLogicTreePath int
}

// Compute produces gmf_data rows keyed by realization ordinal, in
// event-id order (spec.md §4.5: "append to gmf_data/<rlz> in event-id
// order").
func (g *EventBasedGMF) Compute(ebruptures []types.EBRupture, sites []types.Site, rng *rand.Rand) map[int][]types.GMFRecord {
	bySite := map[int]types.Site{}
	for _, s := range sites {
		bySite[s.ID] = s
	}
	ordered := append([]types.EBRupture(nil), ebruptures...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Events[0].EventID < ordered[j].Events[0].EventID
	})

	out := map[int][]types.GMFRecord{}
	for _, ebr := range ordered {
		var siteSet []types.Site
		for _, id := range ebr.SiteIndices {
			if s, ok := bySite[id]; ok {
				siteSet = append(siteSet, s)
			}
		}
		for _, rlz := range g.Assoc.Realizations {
			gsimName := gsimForRealization(g.Assoc, rlz.Ordinal, ebr.TrtID)
			gsim := g.GSIMs[logictree.AssocKey{TrtID: ebr.TrtID, Gsim: gsimName}]
			if gsim == nil {
				continue
			}
			for _, evt := range ebr.Events {
				for _, rec := range g.GmfComputer.Compute(ebr.Rupture, siteSet, gsim, g.IMTs, g.TruncationLevel, rng) {
					rec.EventID = evt.EventID
					out[rlz.Ordinal] = append(out[rlz.Ordinal], rec)
				}
			}
		}
	}
	return out
}

// HazardCurves folds gmf_data rows into per-realization hazard curves via
// GMVsToHazCurve (spec.md §4.5), with
// duration = investigation_time × ses_per_logic_tree_path.
func (g *EventBasedGMF) HazardCurves(gmfByRlz map[int][]types.GMFRecord, imls map[string][]float64) map[int]*types.ProbabilityMap {
	duration := g.InvestigationTime * float64(g.SesPerLogicTreePath)
	out := map[int]*types.ProbabilityMap{}
	for rlzOrd, recs := range gmfByRlz {
		pm := types.NewProbabilityMap()
		bySiteIMT := map[int]map[string][]float64{}
		for _, rec := range recs {
			dst, ok := bySiteIMT[rec.SiteID]
			if !ok {
				dst = map[string][]float64{}
				bySiteIMT[rec.SiteID] = dst
			}
			for imt, v := range rec.GMV {
				dst[imt] = append(dst[imt], v)
			}
		}
		for siteID, byIMT := range bySiteIMT {
			dst := map[string][]float64{}
			for imt, gmvs := range byIMT {
				dst[imt] = sharedmath.GMVsToHazCurve(gmvs, imls[imt], g.InvestigationTime, duration)
			}
			pm.BySite[siteID] = dst
		}
		out[rlzOrd] = pm
	}
	return out
}

// gsimForRealization recovers the gsim a realization ordinal chose for
// trtID by scanning the assoc's (trt_id, gsim) groupings.
func gsimForRealization(assoc *logictree.RlzsAssoc, ordinal, trtID int) string {
	for _, gsim := range assoc.GsimsByTrtID[trtID] {
		for _, rlz := range assoc.Assoc[logictree.AssocKey{TrtID: trtID, Gsim: gsim}] {
			if rlz.Ordinal == ordinal {
				return gsim
			}
		}
	}
	return ""
}
