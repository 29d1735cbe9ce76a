// Package srcmgr implements spec.md §4.4's source manager: the hazard
// pre-step that filters sources by distance to a site tile, splits heavy
// sources, assigns deterministic per-rupture serial ids, and packs
// filtered sources into weighted blocks for pkg/taskmgr.
//
// Grounded on spec.md §4.4 and
// _examples/original_source/openquake/commonlib/source.py's SourceManager
// (maxweight scaled by sqrt(num_tiles)/2, light-then-heavy two-pass,
// serial range pre-allocation, per-source filter/split/calc time
// recording).
package srcmgr

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/seismic"
	"github.com/tandemseis/hazengine/pkg/taskmgr"

	sharederrors "github.com/tandemseis/hazengine/pkg/shared/errors"
)

// SourceInfo records per-source filter/split/calc timing for the
// `source_info` table (spec.md §6/§9).
type SourceInfo struct {
	TrtModelID int
	SourceID   string
	Weight     float64
	SplitNum   int
	FilterTime float64 // seconds
	SplitTime  float64 // seconds
	CalcTime   float64 // seconds
}

// Manager drives the pre-hazard filter/split/serial/block pipeline for
// one CompositeSourceModel (spec.md §4.4).
type Manager struct {
	CSM             *csm.CompositeSourceModel
	MaximumDistance map[string]float64
	RunSeed         int64
	NumTiles        int
	FilterSources   bool

	GeometryOf func(csm.Source) seismic.SourceGeometry // resolves a Source to its out-of-scope geometry
	SplitSource func(csm.Source) []csm.Source          // splits a heavy source, preserving TRT

	mu        sync.Mutex
	splitMap  map[string][]csm.Source // "sourceID#trtModelID" -> split children
	infos     map[string]*SourceInfo
	maxWeight float64
}

// New builds a Manager, applying the heuristic maxweight scaling
// (spec.md §4.4: "heuristically scaled by sqrt(num_tiles)/2").
func New(c *csm.CompositeSourceModel, maximumDistance map[string]float64, runSeed int64, numTiles int) *Manager {
	if numTiles < 1 {
		numTiles = 1
	}
	return &Manager{
		CSM:             c,
		MaximumDistance: maximumDistance,
		RunSeed:         runSeed,
		NumTiles:        numTiles,
		FilterSources:   true,
		splitMap:        map[string][]csm.Source{},
		infos:           map[string]*SourceInfo{},
		maxWeight:       c.MaxWeight * math.Sqrt(float64(numTiles)) / 2,
	}
}

func sourceKeyString(trtModelID int, sourceID string) string {
	return sourceID + "#" + itoa(trtModelID)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// AssignSerials pre-allocates a dense uint32 range sized to the sum of
// NumRuptures over every source, handing each source a contiguous slice
// (spec.md §4.4 step 4 / §3's reproducibility invariant:
// serial = rup_seed - run_seed + 1, which we model directly as each
// rupture's Seed = RunSeed + Serial).
func (m *Manager) AssignSerials() {
	var start uint32
	for i := range m.CSM.SourceModels {
		sm := &m.CSM.SourceModels[i]
		for j := range sm.TrtModels {
			tm := &sm.TrtModels[j]
			for k := range tm.Sources {
				src := &tm.Sources[k]
				serial := make([]uint32, src.NumRuptures)
				for r := 0; r < src.NumRuptures; r++ {
					serial[r] = start + uint32(r)
				}
				src.Serial = serial
				start += uint32(src.NumRuptures)
			}
		}
	}
}

// FilterAndSplit runs spec.md §4.4's two-pass pipeline over tile: light
// sources first, then heavy sources split into TRT-preserving children,
// their serials re-sliced from the parent's range. Discarded (out of
// maximum_distance) sources contribute nothing and are skipped.
func (m *Manager) FilterAndSplit(tile seismic.Tile) ([]csm.Source, error) {
	var out []csm.Source
	for _, kind := range []csm.SourceKind{csm.KindLight, csm.KindHeavy} {
		candidates := m.CSM.GetSourcesByWeight(kind, m.maxWeight)
		for _, src := range candidates {
			filterStart := time.Now()
			trt := trtOf(m.CSM, src.TrtModelID)
			geom := m.geometryOf(src)
			if m.FilterSources && geom != nil && !tile.Contains(geom, trt) {
				continue
			}
			filterTime := time.Since(filterStart).Seconds()

			var produced []csm.Source
			splitTime := 0.0
			if kind == csm.KindHeavy {
				key := sourceKeyString(src.TrtModelID, src.ID)
				m.mu.Lock()
				children, ok := m.splitMap[key]
				m.mu.Unlock()
				if !ok {
					if m.SplitSource == nil {
						return nil, sharederrors.FailedToWithDetails("split source", "srcmgr", src.ID, nil)
					}
					splitStart := time.Now()
					children = m.SplitSource(src)
					reassignChildSerials(src, children)
					splitTime = time.Since(splitStart).Seconds()
					m.mu.Lock()
					m.splitMap[key] = children
					m.mu.Unlock()
				}
				produced = children
			} else {
				produced = []csm.Source{src}
			}

			m.recordInfo(src, len(produced), filterTime, splitTime)
			out = append(out, produced...)
		}
	}
	return out, nil
}

func (m *Manager) geometryOf(src csm.Source) seismic.SourceGeometry {
	if m.GeometryOf == nil {
		return nil
	}
	return m.GeometryOf(src)
}

func trtOf(c *csm.CompositeSourceModel, trtModelID int) string {
	for _, tm := range c.TrtModels() {
		if tm.TrtID == trtModelID {
			return tm.Trt
		}
	}
	return ""
}

// reassignChildSerials re-slices a split heavy source's serial range
// across its children in order (spec.md §4.4 step 4: "split children
// re-slice their parent's range").
func reassignChildSerials(parent csm.Source, children []csm.Source) {
	start := 0
	for i := range children {
		nr := children[i].NumRuptures
		if start+nr > len(parent.Serial) {
			nr = len(parent.Serial) - start
		}
		if nr < 0 {
			nr = 0
		}
		children[i].Serial = append([]uint32(nil), parent.Serial[start:start+nr]...)
		start += nr
	}
}

func (m *Manager) recordInfo(src csm.Source, splitNum int, filterTime, splitTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sourceKeyString(src.TrtModelID, src.ID)
	info, ok := m.infos[key]
	if !ok {
		info = &SourceInfo{TrtModelID: src.TrtModelID, SourceID: src.ID, Weight: src.Weight}
		m.infos[key] = info
	}
	info.SplitNum = splitNum
	info.FilterTime += filterTime
	info.SplitTime += splitTime
}

// RecordCalcTime adds calc time to a source's info row, called by the
// hazard calculator once a work block finishes.
func (m *Manager) RecordCalcTime(trtModelID int, sourceID string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sourceKeyString(trtModelID, sourceID)
	if info, ok := m.infos[key]; ok {
		info.CalcTime += seconds
	}
}

// SourceInfos returns the recorded per-source rows, sorted by
// descending filter+split time (matching the original's
// `store_source_info` ordering).
func (m *Manager) SourceInfos() []SourceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SourceInfo, 0, len(m.infos))
	for _, info := range m.infos {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FilterTime+out[i].SplitTime > out[j].FilterTime+out[j].SplitTime
	})
	return out
}

// PackBlocks packs filtered sources into weighted blocks honoring
// trt_model_id boundaries (spec.md §4.4 step 5), reusing pkg/taskmgr's
// generic block splitter.
func (m *Manager) PackBlocks(sources []csm.Source, concurrentTasks int) []taskmgr.Block {
	items := make([]taskmgr.Item, len(sources))
	for i, s := range sources {
		items[i] = s
	}
	weightFn := func(it taskmgr.Item) float64 { return it.(csm.Source).Weight }
	keyFn := func(it taskmgr.Item) string { return itoa(it.(csm.Source).TrtModelID) }
	return taskmgr.SplitInBlocks(items, concurrentTasks, weightFn, keyFn)
}
