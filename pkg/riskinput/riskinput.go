// Package riskinput implements spec.md §4.6's risk input builder: it joins
// assets-by-site with hazard output (curves or GMF streams) and correlated
// epsilons into balanced RiskInput work items for pkg/risk.
//
// Grounded on spec.md §4.6 and
// _examples/original_source/openquake/risklib/riskinput.py
// (assets_by_site partitioning, the one-off Gaussian copula for epsilons).
package riskinput

import (
	"math"
	"math/rand"
	"sort"

	sharederrors "github.com/tandemseis/hazengine/pkg/shared/errors"
	"github.com/tandemseis/hazengine/pkg/shared/types"
)

// HazardSource supplies either a hazard curve or a GMF stream per site,
// keyed by IMT — the two shapes spec.md §4.6 calls "curves-by-key
// (classical)" and "GMF-stream-by-rupture (event-based)". Both reduce to
// "a vector of numbers per (site, imt)" from the builder's point of view.
type HazardSource interface {
	// HazardAt returns the hazard vector for (siteID, imt), or nil if that
	// site/imt pair is not present in this source.
	HazardAt(siteID int, imt string) []float64
	// IMTs lists every IMT this hazard source covers.
	IMTs() []string
}

// Builder constructs balanced RiskInput blocks (spec.md §4.6).
type Builder struct {
	Assets             types.AssetCollection
	Hazard             HazardSource
	ConcurrentTasks    int
	MasterSeed         int64
	AssetCorrelation   float64 // 0 = independent, 1 = fully correlated within a taxonomy
	EpsilonsPerAsset    int    // number of epsilon samples per asset (events or Monte Carlo draws)
}

// Build partitions assets into blocks of approximately equal |assets|
// (bounded by ConcurrentTasks), and for each block and IMT emits one
// RiskInput with projected hazard and epsilons, dropping any whose
// weight is zero. Results are sorted by IMT for deterministic iteration
// (spec.md §4.6).
func (b *Builder) Build() ([]types.RiskInput, error) {
	if err := b.checkIMTs(); err != nil {
		return nil, err
	}
	blocks := b.partitionAssets()
	eps := b.correlatedEpsilons()

	var out []types.RiskInput
	for _, imt := range b.Hazard.IMTs() {
		for _, block := range blocks {
			ri := b.buildOne(imt, block, eps)
			if ri.Weight() == 0 {
				continue
			}
			out = append(out, ri)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IMT < out[j].IMT })
	return out, nil
}

// checkIMTs enforces spec.md §4.6's failure semantics: a disjoint IMT set
// between the risk model (here, the epsilon/asset side has none of its
// own — the check is symmetric against the hazard source exposing at
// least one IMT) is fatal.
func (b *Builder) checkIMTs() error {
	if len(b.Hazard.IMTs()) == 0 {
		return sharederrors.NewIMTMismatch(nil, b.Hazard.IMTs())
	}
	return nil
}

// partitionAssets splits assets into ConcurrentTasks blocks of
// approximately equal size, never splitting mid-way in a way that would
// separate an asset from its own record (spec.md §4.6: "partition into
// blocks of approximately equal |assets| respecting concurrent_tasks").
func (b *Builder) partitionAssets() [][]types.Asset {
	n := b.ConcurrentTasks
	if n < 1 {
		n = 1
	}
	assets := b.Assets.Assets
	if len(assets) == 0 {
		return nil
	}
	if n > len(assets) {
		n = len(assets)
	}
	blockSize := (len(assets) + n - 1) / n
	var blocks [][]types.Asset
	for i := 0; i < len(assets); i += blockSize {
		end := i + blockSize
		if end > len(assets) {
			end = len(assets)
		}
		blocks = append(blocks, assets[i:end])
	}
	return blocks
}

// correlatedEpsilons draws one-off Gaussian-copula-correlated epsilon
// samples per asset, seeded from MasterSeed (spec.md §4.6): assets sharing
// a taxonomy share a common factor scaled by sqrt(AssetCorrelation), plus
// an independent idiosyncratic term scaled by sqrt(1-AssetCorrelation).
func (b *Builder) correlatedEpsilons() map[int][]float64 {
	out := map[int][]float64{}
	if b.EpsilonsPerAsset <= 0 {
		return out
	}
	rho := b.AssetCorrelation
	if rho < 0 {
		rho = 0
	}
	if rho > 1 {
		rho = 1
	}
	common := math.Sqrt(rho)
	idio := math.Sqrt(1 - rho)

	commonFactors := map[string][]float64{}
	rng := rand.New(rand.NewSource(b.MasterSeed))
	for _, a := range b.Assets.Assets {
		cf, ok := commonFactors[a.Taxonomy]
		if !ok {
			cf = make([]float64, b.EpsilonsPerAsset)
			for i := range cf {
				cf[i] = rng.NormFloat64()
			}
			commonFactors[a.Taxonomy] = cf
		}
		eps := make([]float64, b.EpsilonsPerAsset)
		for i := range eps {
			eps[i] = common*cf[i] + idio*rng.NormFloat64()
		}
		out[a.Ordinal] = eps
	}
	return out
}

func (b *Builder) buildOne(imt string, block []types.Asset, eps map[int][]float64) types.RiskInput {
	hazard := map[int][]float64{}
	var reducedAssets []types.Asset
	var reducedEps [][]float64
	for _, a := range block {
		h := b.Hazard.HazardAt(a.SiteID, imt)
		if h == nil {
			continue
		}
		hazard[a.SiteID] = h
		reducedAssets = append(reducedAssets, a)
		reducedEps = append(reducedEps, eps[a.Ordinal])
	}
	return types.RiskInput{
		IMT:          imt,
		Assets:       reducedAssets,
		HazardAtSite: hazard,
		Epsilons:     reducedEps,
	}
}
