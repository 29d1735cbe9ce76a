// Package csm implements spec.md §4.4's composite source model: the deep
// copy of parsed sources grouped by source-model, then by tectonic region
// type (TrtModel), with weights and the maxweight splitting target.
//
// Grounded on spec.md §3/§4.4 and
// _examples/original_source/openquake/commonlib/source.py's TrtModel,
// CompositeSourceModel and SourceManager for the exact semantics (weight
// monotone in num_ruptures, maxweight scaled by sqrt(num_tiles)/2, the
// light/heavy two-pass split).
package csm

import (
	"fmt"
	"sort"

	sharederrors "github.com/tandemseis/hazengine/pkg/shared/errors"
)

// Source is one seismic source: geometry/magnitude computation is an
// out-of-scope external collaborator (spec.md §1); only the fields the
// orchestration layer needs are modeled here.
type Source struct {
	TrtModelID  int
	ID          string
	Weight      float64
	NumRuptures int
	Serial      []uint32 // assigned by srcmgr.AssignSerials; one entry per rupture
}

// TrtModel groups the sources of a shared tectonic region type
// (spec.md §3). EffRuptures is populated only after filtering.
type TrtModel struct {
	TrtID       int
	Trt         string
	MinMag      float64
	MaxMag      float64
	Sources     []Source
	Weight      float64
	EffRuptures int
}

// TotRuptures sums NumRuptures over every source in the group.
func (tm *TrtModel) TotRuptures() int {
	total := 0
	for _, s := range tm.Sources {
		total += s.NumRuptures
	}
	return total
}

// SourceModel is one branch of the source-model logic tree
// (spec.md §3): an ordinal, name, logic-tree path, weight, its TRT
// groups, and (conceptually) a GSIM logic tree reduced elsewhere
// (pkg/logictree) once TRTs with EffRuptures == 0 are known.
type SourceModel struct {
	Ordinal int
	Name    string
	Path    string
	Weight  float64
	TrtModels []TrtModel
	Samples   int
}

// CompositeSourceModel owns the full set of source models
// (spec.md §4.4): grouped by source-model, then by TRT.
type CompositeSourceModel struct {
	SourceModels []SourceModel

	Weight         float64 // total declared weight, Σ source weights
	FilteredWeight float64 // updated as sources are filtered in by srcmgr
	MaxWeight      float64 // per-chunk splitting target
}

// New builds a CompositeSourceModel, validating that source ids are
// unique within each source model (spec.md §3 invariant: "duplicate source
// id within one source model is fatal") and computing Weight/MaxWeight.
func New(models []SourceModel) (*CompositeSourceModel, error) {
	for _, sm := range models {
		seen := map[string]bool{}
		for _, tm := range sm.TrtModels {
			for _, src := range tm.Sources {
				if seen[src.ID] {
					return nil, sharederrors.NewDuplicateSourceID(sm.Name, src.ID)
				}
				seen[src.ID] = true
			}
		}
	}
	csm := &CompositeSourceModel{SourceModels: models}
	csm.setWeights()
	return csm, nil
}

// setWeights computes the total declared weight and the maxweight
// splitting target (spec.md §4.4: "maxweight is the per-chunk target used
// by the splitter"). The target is heuristically set to the mean source
// weight times a small constant, matching the original's intent that
// maxweight scale with the overall distribution rather than being fixed.
func (csm *CompositeSourceModel) setWeights() {
	var total float64
	n := 0
	for _, sm := range csm.SourceModels {
		for _, tm := range sm.TrtModels {
			for _, src := range tm.Sources {
				total += src.Weight
				n++
			}
		}
	}
	csm.Weight = total
	if n > 0 {
		csm.MaxWeight = total / float64(n) * 10
	} else {
		csm.MaxWeight = 1
	}
}

// TrtModels yields every TrtModel across every source model, in
// declaration order.
func (csm *CompositeSourceModel) TrtModels() []*TrtModel {
	var out []*TrtModel
	for i := range csm.SourceModels {
		sm := &csm.SourceModels[i]
		for j := range sm.TrtModels {
			out = append(out, &sm.TrtModels[j])
		}
	}
	return out
}

// SourceKind selects which partition of GetSources to return.
type SourceKind int

const (
	KindAll SourceKind = iota
	KindLight
	KindHeavy
)

// GetSources extracts sources by kind relative to csm.MaxWeight
// (spec.md §4.4/§4.5's "light" then "heavy" two-pass filtering order).
// Callers that apply the tile-scaled maxweight (srcmgr.Manager) should use
// GetSourcesByWeight instead.
func (csm *CompositeSourceModel) GetSources(kind SourceKind) []Source {
	return csm.GetSourcesByWeight(kind, csm.MaxWeight)
}

// GetSourcesByWeight extracts sources by kind relative to an explicit
// maxWeight threshold, letting callers supply a value scaled by
// sqrt(num_tiles)/2 (spec.md §4.4) instead of the model's own MaxWeight.
func (csm *CompositeSourceModel) GetSourcesByWeight(kind SourceKind, maxWeight float64) []Source {
	var out []Source
	for _, tm := range csm.TrtModels() {
		for _, src := range tm.Sources {
			switch kind {
			case KindAll:
				out = append(out, src)
			case KindLight:
				if src.Weight <= maxWeight {
					out = append(out, src)
				}
			case KindHeavy:
				if src.Weight > maxWeight {
					out = append(out, src)
				}
			}
		}
	}
	return out
}

// NumSources returns the total number of sources across every TRT group.
func (csm *CompositeSourceModel) NumSources() int {
	return len(csm.GetSources(KindAll))
}

// String renders a compact summary, useful in logs and the source_info
// table headers.
func (tm TrtModel) String() string {
	return fmt.Sprintf("TrtModel(%d, %s, %d sources, eff_ruptures=%d)", tm.TrtID, tm.Trt, len(tm.Sources), tm.EffRuptures)
}

// SortedTrtIDs returns every distinct trt_id across the model, ascending.
func (csm *CompositeSourceModel) SortedTrtIDs() []int {
	seen := map[int]bool{}
	var ids []int
	for _, tm := range csm.TrtModels() {
		if !seen[tm.TrtID] {
			seen[tm.TrtID] = true
			ids = append(ids, tm.TrtID)
		}
	}
	sort.Ints(ids)
	return ids
}
