package hazard

import (
	"context"
	"math/rand"
	"testing"

	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/logictree"
	"github.com/tandemseis/hazengine/pkg/seismic"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/srcmgr"
	"github.com/tandemseis/hazengine/pkg/taskmgr"
)

type fakeKernel struct{}

func (fakeKernel) ProbabilityMap(ctx context.Context, sources []csm.Source, gsim seismic.GSIM, sites []types.Site, imls map[string][]float64, truncationLevel float64) (*types.ProbabilityMap, error) {
	pm := types.NewProbabilityMap()
	for _, s := range sites {
		levels := make([]float64, len(imls["PGA"]))
		for i := range levels {
			levels[i] = 0.1 * float64(len(sources))
		}
		pm.BySite[s.ID] = map[string][]float64{"PGA": levels}
	}
	return pm, nil
}

func twoTrtAssoc(t *testing.T) *logictree.RlzsAssoc {
	t.Helper()
	models := []logictree.SourceModelBranch{
		{
			Path: "sm1", Weight: 1,
			GsimsByTrt: map[int][]logictree.GsimBranch{
				0: {{TrtID: 0, Trt: "ASC", Gsim: "GMPE_A", Weight: 1}},
			},
		},
	}
	assoc, err := logictree.Build(models, 0, 1, nil, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return assoc
}

func TestClassicalPSHA_ExecuteAndPostExecute(t *testing.T) {
	assoc := twoTrtAssoc(t)
	c, err := csm.New([]csm.SourceModel{
		{
			Ordinal: 0, Name: "sm1", Path: "sm1", Weight: 1,
			TrtModels: []csm.TrtModel{
				{TrtID: 0, Trt: "ASC", Sources: []csm.Source{{TrtModelID: 0, ID: "s1", Weight: 1, NumRuptures: 5}}},
			},
		},
	})
	if err != nil {
		t.Fatalf("csm.New() error: %v", err)
	}

	calc := &ClassicalPSHA{
		CSM:             c,
		Assoc:           assoc,
		Sites:           []types.Site{{ID: 1, Lon: 0, Lat: 0}},
		IMLs:            map[string][]float64{"PGA": {0.1, 0.2, 0.3}},
		Poes:            []float64{0.1},
		ConcurrentTasks: 1,
		Kernel:          fakeKernel{},
		GSIMs: map[logictree.AssocKey]seismic.GSIM{
			{TrtID: 0, Gsim: "GMPE_A"}: seismic.AttenuationGSIM{NameStr: "GMPE_A"},
		},
		TM: taskmgr.New(taskmgr.Options{ConcurrentTasks: 1}),
	}

	results, err := calc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}

	out := calc.PostExecute(results)
	if len(out.CurvesByRlz) != 1 {
		t.Errorf("len(CurvesByRlz) = %d, want 1", len(out.CurvesByRlz))
	}
	if out.MeanCurve.BySite[1]["PGA"][0] <= 0 {
		t.Errorf("expected positive mean curve value, got %v", out.MeanCurve.BySite[1]["PGA"])
	}
}

func TestClassicalPSHA_Execute_TilingMatchesSingleTile(t *testing.T) {
	assoc := twoTrtAssoc(t)
	c, err := csm.New([]csm.SourceModel{
		{
			Ordinal: 0, Name: "sm1", Path: "sm1", Weight: 1,
			TrtModels: []csm.TrtModel{
				{TrtID: 0, Trt: "ASC", Sources: []csm.Source{{TrtModelID: 0, ID: "s1", Weight: 1, NumRuptures: 5}}},
			},
		},
	})
	if err != nil {
		t.Fatalf("csm.New() error: %v", err)
	}
	gsims := map[logictree.AssocKey]seismic.GSIM{
		{TrtID: 0, Gsim: "GMPE_A"}: seismic.AttenuationGSIM{NameStr: "GMPE_A"},
	}

	sites := make([]types.Site, 250)
	for i := range sites {
		sites[i] = types.Site{ID: i + 1, Lon: 0, Lat: 0}
	}

	untiled := &ClassicalPSHA{
		CSM: c, Assoc: assoc, Sites: sites,
		IMLs: map[string][]float64{"PGA": {0.1, 0.2, 0.3}}, Poes: []float64{0.1},
		ConcurrentTasks: 1, Kernel: fakeKernel{}, GSIMs: gsims,
		TM: taskmgr.New(taskmgr.Options{ConcurrentTasks: 1}),
	}
	wantResults, err := untiled.Execute(context.Background())
	if err != nil {
		t.Fatalf("untiled Execute() error: %v", err)
	}

	mgr := srcmgr.New(c, map[string]float64{"default": 100}, 1, 1)
	tiled := &ClassicalPSHA{
		CSM: c, Assoc: assoc, Sites: sites, SitesPerTile: 100,
		IMLs: map[string][]float64{"PGA": {0.1, 0.2, 0.3}}, Poes: []float64{0.1},
		ConcurrentTasks: 1, Kernel: fakeKernel{}, GSIMs: gsims, SrcMgr: mgr,
		TM: taskmgr.New(taskmgr.Options{ConcurrentTasks: 1}),
	}
	gotResults, err := tiled.Execute(context.Background())
	if err != nil {
		t.Fatalf("tiled Execute() error: %v", err)
	}

	if tiled.NumTiles() != 3 {
		t.Errorf("NumTiles() = %d, want 3 (ceil(250/100))", tiled.NumTiles())
	}

	wantOut := untiled.PostExecute(wantResults)
	gotOut := tiled.PostExecute(gotResults)

	if len(gotOut.MeanCurve.BySite) != len(wantOut.MeanCurve.BySite) {
		t.Fatalf("len(MeanCurve.BySite) = %d, want %d", len(gotOut.MeanCurve.BySite), len(wantOut.MeanCurve.BySite))
	}
	for siteID, byIMT := range wantOut.MeanCurve.BySite {
		gotIMT, ok := gotOut.MeanCurve.BySite[siteID]
		if !ok {
			t.Fatalf("site %d missing from tiled mean curve", siteID)
		}
		for imt, levels := range byIMT {
			gotLevels := gotIMT[imt]
			for i, v := range levels {
				if gotLevels[i] != v {
					t.Errorf("site %d imt %s level %d: tiled=%v want=%v", siteID, imt, i, gotLevels[i], v)
				}
			}
		}
	}

	for trtID, want := range wantOut.EffRuptures {
		if got := gotOut.EffRuptures[trtID]; got != want {
			t.Errorf("EffRuptures[%d] = %v, want %v (each tile re-sees the unfiltered CSM, so the per-tile sum divided by num_tiles recovers the untiled total)", trtID, got, want)
		}
	}
}

func TestEventBasedRupture_SampleSourceAndAssignEventIDs(t *testing.T) {
	src := csm.Source{TrtModelID: 0, ID: "s1", NumRuptures: 3, Serial: []uint32{10, 20, 30}}
	geom := seismic.PointSource{Lon: 0, Lat: 0, Mag: 6, SourceID: "s1", TrtID: 0}
	sampler := &EventBasedRupture{
		Sites:               []types.Site{{ID: 1, Lon: 0, Lat: 0}},
		Tile:                seismic.Tile{Sites: []types.Site{{ID: 1, Lon: 0, Lat: 0}}, MaximumDistance: map[string]float64{"default": 100}},
		MaximumDistance:     map[string]float64{"default": 100},
		SesPerLogicTreePath: 2,
		RunSeed:             1,
	}
	ebrs := sampler.SampleSource(src, geom)
	if len(ebrs) == 0 {
		t.Fatal("expected at least one EBRupture")
	}
	for _, e := range ebrs {
		if len(e.SiteIndices) == 0 {
			t.Error("expected non-empty SiteIndices")
		}
	}

	AssignEventIDs(ebrs)
	seen := map[uint64]bool{}
	for _, e := range ebrs {
		for _, evt := range e.Events {
			if seen[evt.EventID] {
				t.Errorf("duplicate event id %d", evt.EventID)
			}
			seen[evt.EventID] = true
		}
	}
}

func TestScenario_Compute(t *testing.T) {
	s := &Scenario{
		GmfComputer:     seismic.DeterministicGmfComputer{},
		GSIM:            seismic.AttenuationGSIM{NameStr: "A", MagCoeff: 0.8, DistCoeff: 1, Intercept: -1, LogStdDev: 0.4},
		IMTs:            []string{"PGA"},
		TruncationLevel: 3,
		NumRealizations: 4,
		Seed:            7,
	}
	sites := []types.Site{{ID: 1, Lon: 0, Lat: 0}, {ID: 2, Lon: 0.1, Lat: 0.1}}
	recs := s.Compute(types.Rupture{Mag: 6.5}, sites)
	if len(recs) != 8 {
		t.Fatalf("len(recs) = %d, want 8", len(recs))
	}
}

func TestEventBasedGMF_ComputeAndHazardCurves(t *testing.T) {
	assoc := twoTrtAssoc(t)
	g := &EventBasedGMF{
		GmfComputer: seismic.DeterministicGmfComputer{},
		GSIMs: map[logictree.AssocKey]seismic.GSIM{
			{TrtID: 0, Gsim: "GMPE_A"}: seismic.AttenuationGSIM{NameStr: "GMPE_A", MagCoeff: 0.8, DistCoeff: 1, Intercept: -1, LogStdDev: 0.4},
		},
		Assoc:               assoc,
		IMTs:                []string{"PGA"},
		TruncationLevel:     3,
		InvestigationTime:   1,
		SesPerLogicTreePath: 10,
	}
	ebrs := []types.EBRupture{
		{
			Rupture:     types.Rupture{TrtID: 0, Mag: 6, Serial: 1},
			SiteIndices: []int{1},
			Events:      []types.EventInfo{{EventID: 0}},
		},
	}
	sites := []types.Site{{ID: 1, Lon: 0, Lat: 0}}
	rng := rand.New(rand.NewSource(3))
	gmfs := g.Compute(ebrs, sites, rng)
	if len(gmfs) == 0 {
		t.Fatal("expected gmf rows for at least one realization")
	}
	curves := g.HazardCurves(gmfs, map[string][]float64{"PGA": {0.01, 0.1}})
	if len(curves) != len(gmfs) {
		t.Errorf("len(curves) = %d, want %d", len(curves), len(gmfs))
	}
}
