// Package logictree implements spec.md §4.3's logic-tree expansion and
// realization algebra: enumeration and Monte Carlo sampling of source-model
// x GSIM branches into weighted SourceModelRealizations, and the RlzsAssoc
// structure that ties (trt_id, gsim) partial results back to per-
// realization aggregates.
//
// Grounded on _examples/original_source/openquake/commonlib/source.py
// (RlzsAssoc, agg_prob, the weight-renormalization warning) for the "what".
package logictree

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	sharedmath "github.com/tandemseis/hazengine/pkg/shared/math"
)

// SMR (SourceModelRealization) is one full path through the composite
// logic tree: a source-model branch paired with a GSIM branch, with its
// combined weight (spec.md §3).
type SMR struct {
	Ordinal       int
	SourceModelPath string
	GsimPath        string
	Weight          float64
	SampleID        int

	// uid is a random identifier minted for every SMR by newSMR; nothing
	// keys on it, so SMR identity is the textual ID alone.
	uid uuid.UUID
}

// ID is the unique textual identifier spec.md §3 defines: the
// concatenation of the source-model and GSIM logic-tree paths.
func (s SMR) ID() string {
	return fmt.Sprintf("%s~%s", s.SourceModelPath, s.GsimPath)
}

func newSMR(ordinal int, smPath, gsimPath string, weight float64, sampleID int) SMR {
	return SMR{
		Ordinal: ordinal, SourceModelPath: smPath, GsimPath: gsimPath,
		Weight: weight, SampleID: sampleID, uid: uuid.New(),
	}
}

// GsimBranch is one candidate GSIM for a TRT, with its logic-tree weight.
type GsimBranch struct {
	TrtID int
	Trt   string
	Gsim  string
	Weight float64
}

// SourceModelBranch is one candidate source model in the source-model
// logic tree, carrying the TRTs it contributes and, per TRT, its
// candidate GSIM branches.
type SourceModelBranch struct {
	Path      string
	Weight    float64
	GsimsByTrt map[int][]GsimBranch // trt_id -> candidate GSIMs for that TRT
	Samples    int                  // 0 unless this branch is itself sampled
}

// CountRupturesFunc reports the effective rupture count for a trt_id,
// known only after source filtering (classical) or sampling (event-based),
// hence injected rather than computed inline (spec.md §4.3).
type CountRupturesFunc func(trtID int) int

// RlzsAssoc is the realization association structure (spec.md §3/§4.3):
// three consistent views over the same data plus the derived
// gsims_by_trt_id index.
type RlzsAssoc struct {
	Realizations   []SMR
	RlzsBySModel   [][]SMR
	Assoc          map[AssocKey][]SMR
	GsimsByTrtID   map[int][]string

	sampling bool
	numSamples int
}

// AssocKey is the (trt_id, gsim) key of the Assoc view.
type AssocKey struct {
	TrtID int
	Gsim  string
}

// Build is the master routine (spec.md §4.3): expands models either by
// full Cartesian enumeration or Monte Carlo sampling, drops TRTs with zero
// effective ruptures (warning, not fatal), and populates all three
// RlzsAssoc views plus the derived gsims_by_trt_id.
func Build(models []SourceModelBranch, numSamples int, seed int64, countRuptures CountRupturesFunc, warn func(string)) (*RlzsAssoc, error) {
	assoc := &RlzsAssoc{
		Assoc:        map[AssocKey][]SMR{},
		GsimsByTrtID: map[int][]string{},
		sampling:     numSamples > 0,
		numSamples:   numSamples,
	}

	reduced := reduceZeroRuptureTrts(models, countRuptures, warn)

	var realizations []SMR
	ordinal := 0
	if numSamples > 0 {
		realizations, ordinal = sampleRealizations(reduced, numSamples, seed, ordinal)
	} else {
		realizations, ordinal = enumerateRealizations(reduced, ordinal)
	}
	_ = ordinal

	assoc.Realizations = realizations
	assoc.RlzsBySModel = partitionBySModel(reduced, realizations)

	for i, sm := range reduced {
		for _, rlz := range assoc.RlzsBySModel[i] {
			for trtID := range sm.GsimsByTrt {
				gsim := gsimForTrt(sm, trtID, rlz)
				if gsim == "" {
					continue
				}
				key := AssocKey{TrtID: trtID, Gsim: gsim}
				assoc.Assoc[key] = append(assoc.Assoc[key], rlz)
			}
		}
	}

	if err := assoc.normalizeWeights(warn); err != nil {
		return nil, err
	}
	assoc.buildGsimsByTrtID()
	return assoc, nil
}

// reduceZeroRuptureTrts drops, from each model's gsim logic tree, the TRTs
// whose effective rupture count is zero, warning with before/after path
// counts (spec.md §4.3).
func reduceZeroRuptureTrts(models []SourceModelBranch, countRuptures CountRupturesFunc, warn func(string)) []SourceModelBranch {
	if countRuptures == nil {
		return models
	}
	out := make([]SourceModelBranch, len(models))
	for i, sm := range models {
		before := len(sm.GsimsByTrt)
		reduced := map[int][]GsimBranch{}
		for trtID, gsims := range sm.GsimsByTrt {
			if countRuptures(trtID) > 0 {
				reduced[trtID] = gsims
			}
		}
		if len(reduced) != before && warn != nil {
			warn(fmt.Sprintf("source model %q: gsim logic tree reduced from %d to %d TRTs (zero effective ruptures)", sm.Path, before, len(reduced)))
		}
		sm.GsimsByTrt = reduced
		out[i] = sm
	}
	return out
}

func enumerateRealizations(models []SourceModelBranch, ordinal int) ([]SMR, int) {
	var out []SMR
	for _, sm := range models {
		for _, gsimPath := range cartesianGsimPaths(sm) {
			weight := sm.Weight * gsimPath.weight
			out = append(out, newSMR(ordinal, sm.Path, gsimPath.path, weight, 0))
			ordinal++
		}
	}
	return out, ordinal
}

type gsimPath struct {
	path   string
	weight float64
	choice map[int]string // trt_id -> chosen gsim
}

// cartesianGsimPaths enumerates the full Cartesian product of one GSIM
// choice per TRT the model contributes.
func cartesianGsimPaths(sm SourceModelBranch) []gsimPath {
	trtIDs := sortedTrtIDs(sm.GsimsByTrt)
	if len(trtIDs) == 0 {
		return []gsimPath{{path: "", weight: 1, choice: map[int]string{}}}
	}
	paths := []gsimPath{{path: "", weight: 1, choice: map[int]string{}}}
	for _, trtID := range trtIDs {
		var next []gsimPath
		for _, p := range paths {
			for _, g := range sm.GsimsByTrt[trtID] {
				choice := cloneChoice(p.choice)
				choice[trtID] = g.Gsim
				next = append(next, gsimPath{
					path:   p.path + fmt.Sprintf("/%d:%s", trtID, g.Gsim),
					weight: p.weight * g.Weight,
					choice: choice,
				})
			}
		}
		paths = next
	}
	return paths
}

func cloneChoice(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedTrtIDs(m map[int][]GsimBranch) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// sampleRealizations draws numSamples paths with a seeded RNG, weighting
// each realization 1/N (spec.md §4.3's Monte Carlo sampling).
func sampleRealizations(models []SourceModelBranch, numSamples int, seed int64, ordinal int) ([]SMR, int) {
	if len(models) == 0 {
		return nil, ordinal
	}
	rng := rand.New(rand.NewSource(seed))
	smCDF := cumulativeWeights(models)
	var out []SMR
	w := 1.0 / float64(numSamples)
	for s := 0; s < numSamples; s++ {
		sm := models[pickIndex(smCDF, rng.Float64())]
		path := sampleGsimPath(sm, rng)
		out = append(out, newSMR(ordinal, sm.Path, path.path, w, s))
		ordinal++
	}
	return out, ordinal
}

func sampleGsimPath(sm SourceModelBranch, rng *rand.Rand) gsimPath {
	trtIDs := sortedTrtIDs(sm.GsimsByTrt)
	choice := map[int]string{}
	pathStr := ""
	for _, trtID := range trtIDs {
		gsims := sm.GsimsByTrt[trtID]
		cdf := cumulativeGsimWeights(gsims)
		g := gsims[pickIndex(cdf, rng.Float64())]
		choice[trtID] = g.Gsim
		pathStr += fmt.Sprintf("/%d:%s", trtID, g.Gsim)
	}
	return gsimPath{path: pathStr, weight: 1, choice: choice}
}

func cumulativeWeights(models []SourceModelBranch) []float64 {
	cdf := make([]float64, len(models))
	sum := 0.0
	for i, m := range models {
		sum += m.Weight
		cdf[i] = sum
	}
	if sum > 0 {
		for i := range cdf {
			cdf[i] /= sum
		}
	}
	return cdf
}

func cumulativeGsimWeights(gsims []GsimBranch) []float64 {
	cdf := make([]float64, len(gsims))
	sum := 0.0
	for i, g := range gsims {
		sum += g.Weight
		cdf[i] = sum
	}
	if sum > 0 {
		for i := range cdf {
			cdf[i] /= sum
		}
	}
	return cdf
}

func pickIndex(cdf []float64, u float64) int {
	for i, c := range cdf {
		if u <= c {
			return i
		}
	}
	return len(cdf) - 1
}

func partitionBySModel(models []SourceModelBranch, realizations []SMR) [][]SMR {
	out := make([][]SMR, len(models))
	idxByPath := map[string]int{}
	for i, m := range models {
		idxByPath[m.Path] = i
	}
	for _, rlz := range realizations {
		if i, ok := idxByPath[rlz.SourceModelPath]; ok {
			out[i] = append(out[i], rlz)
		}
	}
	return out
}

// gsimForTrt recovers the GSIM an SMR chose for trtID, by re-deriving it
// from the realization's GsimPath encoding ("/trt_id:gsim" segments).
func gsimForTrt(sm SourceModelBranch, trtID int, rlz SMR) string {
	needle := fmt.Sprintf("/%d:", trtID)
	path := rlz.GsimPath
	i := indexOf(path, needle)
	if i < 0 {
		return ""
	}
	rest := path[i+len(needle):]
	if end := indexOf(rest, "/"); end >= 0 {
		return rest[:end]
	}
	return rest
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// normalizeWeights enforces spec.md §3's invariant Σ weight = 1 ± 1e-12.
// Under sampling, weights are already 1/N and left untouched. Under
// enumeration, if the total diverges from 1 (because zero-rupture TRTs
// were dropped), every weight is rescaled and a warning logged
// (spec.md §4.3).
func (a *RlzsAssoc) normalizeWeights(warn func(string)) error {
	if a.sampling {
		return nil
	}
	if len(a.Realizations) == 0 {
		return nil
	}
	total := 0.0
	for _, r := range a.Realizations {
		total += r.Weight
	}
	if total == 0 {
		return fmt.Errorf("logictree: all realizations have zero weight")
	}
	if abs(total-1) > 1e-12 {
		if warn != nil {
			warn(fmt.Sprintf("some source models are not contributing; rescaling weights (total was %v)", total))
		}
		for i := range a.Realizations {
			a.Realizations[i].Weight /= total
		}
		for i, group := range a.RlzsBySModel {
			for j := range group {
				a.RlzsBySModel[i][j].Weight /= total
			}
		}
		for k, group := range a.Assoc {
			for i := range group {
				group[i].Weight /= total
			}
			a.Assoc[k] = group
		}
	}
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func (a *RlzsAssoc) buildGsimsByTrtID() {
	for key := range a.Assoc {
		a.GsimsByTrtID[key.TrtID] = append(a.GsimsByTrtID[key.TrtID], key.Gsim)
	}
	for trtID := range a.GsimsByTrtID {
		sort.Strings(a.GsimsByTrtID[trtID])
	}
}

// Combine lifts a per-(trt_id, gsim) value into the per-realization view,
// using the assoc map. agg defaults to the probabilistic-OR law
// (spec.md §4.3); callers pass addition for e.g. event-loss totals.
func Combine(assoc *RlzsAssoc, resultsByKey map[AssocKey]float64, agg func(a, b float64) float64) map[int]float64 {
	if agg == nil {
		agg = sharedmath.CombineOR
	}
	out := map[int]float64{}
	seen := map[int]bool{}
	for _, rlz := range assoc.Realizations {
		out[rlz.Ordinal] = 0
	}
	for key, value := range resultsByKey {
		for _, rlz := range assoc.Assoc[key] {
			if !seen[rlz.Ordinal] {
				out[rlz.Ordinal] = value
				seen[rlz.Ordinal] = true
			} else {
				out[rlz.Ordinal] = agg(out[rlz.Ordinal], value)
			}
		}
	}
	return out
}

// Extract projects assoc onto the given realization ordinals, preserving
// their weights (spec.md §4.3).
func Extract(assoc *RlzsAssoc, ordinals []int) *RlzsAssoc {
	want := map[int]bool{}
	for _, o := range ordinals {
		want[o] = true
	}
	out := &RlzsAssoc{
		Assoc:        map[AssocKey][]SMR{},
		GsimsByTrtID: map[int][]string{},
		sampling:     assoc.sampling,
		numSamples:   assoc.numSamples,
	}
	for _, rlz := range assoc.Realizations {
		if want[rlz.Ordinal] {
			out.Realizations = append(out.Realizations, rlz)
		}
	}
	for _, group := range assoc.RlzsBySModel {
		var kept []SMR
		for _, rlz := range group {
			if want[rlz.Ordinal] {
				kept = append(kept, rlz)
			}
		}
		out.RlzsBySModel = append(out.RlzsBySModel, kept)
	}
	for key, group := range assoc.Assoc {
		var kept []SMR
		for _, rlz := range group {
			if want[rlz.Ordinal] {
				kept = append(kept, rlz)
			}
		}
		if len(kept) > 0 {
			out.Assoc[key] = kept
		}
	}
	out.buildGsimsByTrtID()
	return out
}

// IsSampling reports whether this association was built by Monte Carlo
// sampling rather than full Cartesian enumeration (spec.md §4.3). Hazard
// post-processing does not consult it: the mean curve always weights each
// realization by its Weight.
func (a *RlzsAssoc) IsSampling() bool {
	return a.sampling
}

// TotalWeight sums all realization weights, exercised by the invariant
// tests in spec.md §8 (Σ weight ≈ 1 within 1e-12).
func (a *RlzsAssoc) TotalWeight() float64 {
	total := 0.0
	for _, r := range a.Realizations {
		total += r.Weight
	}
	return total
}
