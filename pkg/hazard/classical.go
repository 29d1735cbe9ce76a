package hazard

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/logictree"
	"github.com/tandemseis/hazengine/pkg/seismic"
	sharedmath "github.com/tandemseis/hazengine/pkg/shared/math"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/srcmgr"
	"github.com/tandemseis/hazengine/pkg/taskmgr"
)

// ClassicalPSHA implements spec.md §4.5's classical calculator: one
// probability map per (trt_id, gsim) computed in parallel over the
// sources of that TRT, then combined into per-realization curves and
// hazard maps in post_execute.
//
// When SrcMgr and SitesPerTile are set, Execute splits the site
// collection into tiles of at most SitesPerTile sites (spec.md §4.4:
// "tiling triggered when sites > sites_per_tile"), runs SrcMgr's
// filter/split pass once per tile, and unions the per-tile results — the
// tiles partition the sites, so no site is ever produced by more than one
// tile. With SrcMgr nil, Execute runs a single implicit tile over the
// whole CSM unfiltered, preserving the untiled behavior callers that don't
// need tiling (e.g. tests) rely on.
type ClassicalPSHA struct {
	CSM             *csm.CompositeSourceModel
	Assoc           *logictree.RlzsAssoc
	Sites           []types.Site
	SitesPerTile    int
	IMLs            map[string][]float64
	Poes            []float64
	TruncationLevel float64
	ConcurrentTasks int

	SrcMgr *srcmgr.Manager

	Kernel CurveKernel
	GSIMs  map[logictree.AssocKey]seismic.GSIM

	TM  *taskmgr.TaskManager
	Log logr.Logger

	effRuptures map[int]int
	numTiles    int
}

// tiles partitions Sites into at most SitesPerTile-sized chunks
// (spec.md §4.4/§8 scenario 6), or returns a single tile covering every
// site when tiling is not configured or not triggered.
func (c *ClassicalPSHA) tiles() []seismic.Tile {
	maxDist := map[string]float64{}
	if c.SrcMgr != nil {
		maxDist = c.SrcMgr.MaximumDistance
	}
	if c.SrcMgr == nil || c.SitesPerTile <= 0 || len(c.Sites) <= c.SitesPerTile {
		return []seismic.Tile{{Sites: c.Sites, MaximumDistance: maxDist}}
	}
	var out []seismic.Tile
	for i := 0; i < len(c.Sites); i += c.SitesPerTile {
		end := i + c.SitesPerTile
		if end > len(c.Sites) {
			end = len(c.Sites)
		}
		out = append(out, seismic.Tile{Sites: c.Sites[i:end], MaximumDistance: maxDist})
	}
	return out
}

// NumTiles reports how many tiles the last Execute call ran, for
// `source_info`/performance reporting (spec.md §4.4).
func (c *ClassicalPSHA) NumTiles() int {
	if c.numTiles > 0 {
		return c.numTiles
	}
	return len(c.tiles())
}

// EffRuptures returns, per trt_id, the total ruptures of sources that
// survived filtering across every tile divided by the number of tiles
// (spec.md §4.5: "recorded as eff_ruptures / num_tiles to avoid double
// counting"; spec.md §8 scenario 6 keeps this fractional, not rounded).
func (c *ClassicalPSHA) EffRuptures() map[int]float64 {
	out := make(map[int]float64, len(c.effRuptures))
	n := c.NumTiles()
	for trtID, raw := range c.effRuptures {
		out[trtID] = float64(raw) / float64(n)
	}
	return out
}

// tileSources resolves tile's sources, grouped by trt_model_id: via
// SrcMgr's filter/split pass when configured, or the whole CSM
// unfiltered otherwise.
func (c *ClassicalPSHA) tileSources(tile seismic.Tile) (map[int][]csm.Source, error) {
	if c.SrcMgr == nil {
		return sourcesByTrt(c.CSM), nil
	}
	filtered, err := c.SrcMgr.FilterAndSplit(tile)
	if err != nil {
		return nil, err
	}
	bySource := map[int][]csm.Source{}
	for _, s := range filtered {
		bySource[s.TrtModelID] = append(bySource[s.TrtModelID], s)
	}
	return bySource, nil
}

// Execute computes one ProbabilityMap per (trt_id, gsim) pair the
// association actually uses, each via a parallel apply_reduce over that
// TRT's sources within each tile (spec.md §4.5), unioned across tiles.
func (c *ClassicalPSHA) Execute(ctx context.Context) (map[logictree.AssocKey]*types.ProbabilityMap, error) {
	tiles := c.tiles()
	c.numTiles = len(tiles)
	c.effRuptures = map[int]int{}
	results := map[logictree.AssocKey]*types.ProbabilityMap{}

	for _, tile := range tiles {
		bySource, err := c.tileSources(tile)
		if err != nil {
			return nil, err
		}
		for trtID, sources := range bySource {
			for _, s := range sources {
				c.effRuptures[trtID] += s.NumRuptures
			}
		}

		for trtID, gsims := range c.Assoc.GsimsByTrtID {
			sources := bySource[trtID]
			if len(sources) == 0 {
				continue
			}
			items := make([]taskmgr.Item, len(sources))
			for i, s := range sources {
				items[i] = s
			}
			keyFn := func(taskmgr.Item) string { return "" }
			weightFn := func(it taskmgr.Item) float64 { return it.(csm.Source).Weight }

			for _, gsimName := range gsims {
				key := logictree.AssocKey{TrtID: trtID, Gsim: gsimName}
				gsimImpl := c.GSIMs[key]
				if gsimImpl == nil {
					continue
				}

				tileSites := tile.Sites
				fn := func(ctx context.Context, block taskmgr.Block, rest ...interface{}) (interface{}, error) {
					srcs := make([]csm.Source, len(block.Items))
					for i, it := range block.Items {
						srcs[i] = it.(csm.Source)
					}
					return c.Kernel.ProbabilityMap(ctx, srcs, gsimImpl, tileSites, c.IMLs, c.TruncationLevel)
				}
				agg := func(acc, val interface{}) interface{} {
					a := acc.(*types.ProbabilityMap)
					v, ok := val.(*types.ProbabilityMap)
					if ok && v != nil {
						a.CombineInto(v, sharedmath.CombineOR)
					}
					return a
				}

				res, err := c.TM.ApplyReduce(ctx, fn, items, nil, agg, types.NewProbabilityMap(), c.ConcurrentTasks, weightFn, keyFn, "classical_psha", nil)
				if err != nil {
					return nil, err
				}
				pm := res.(*types.ProbabilityMap)
				if existing, ok := results[key]; ok {
					existing.CombineInto(pm, sharedmath.CombineOR)
				} else {
					results[key] = pm
				}
			}
		}
	}
	return results, nil
}

// ClassicalResult is post_execute's output (spec.md §4.5).
type ClassicalResult struct {
	CurvesByRlz map[int]*types.ProbabilityMap
	MeanCurve   *types.ProbabilityMap
	HazardMaps  map[int]map[string][]float64 // site -> imt -> iml per poe
	EffRuptures map[int]float64              // trt_id -> eff_ruptures / num_tiles
}

// PostExecute projects per-(trt_id, gsim) maps onto per-realization curves,
// computes the mean curve, and derives hazard maps (spec.md §4.5).
func (c *ClassicalPSHA) PostExecute(resultsByKey map[logictree.AssocKey]*types.ProbabilityMap) ClassicalResult {
	rlzMaps := CombineProbabilityMaps(c.Assoc, resultsByKey)
	mean := MeanCurve(c.Assoc, rlzMaps)
	var maps map[int]map[string][]float64
	if len(c.Poes) > 0 {
		maps = HazardMaps(mean, c.IMLs, c.Poes)
	}
	return ClassicalResult{CurvesByRlz: rlzMaps, MeanCurve: mean, HazardMaps: maps, EffRuptures: c.EffRuptures()}
}
