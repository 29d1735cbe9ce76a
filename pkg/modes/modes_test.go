package modes

import (
	"context"
	"testing"

	"github.com/go-logr/logr"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/config"
	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/hazard"
	"github.com/tandemseis/hazengine/pkg/logictree"
	"github.com/tandemseis/hazengine/pkg/seismic"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/store"
)

func twoSourceAssoc(t *testing.T) *logictree.RlzsAssoc {
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

func pointSourceModel() *csm.CompositeSourceModel {
	model, err := csm.New([]csm.SourceModel{
		{
			Ordinal: 0, Name: "sm1", Path: "sm1", Weight: 1,
			TrtModels: []csm.TrtModel{
				{TrtID: 0, Trt: "ASC", Sources: []csm.Source{
					{TrtModelID: 0, ID: "s1", Weight: 1, NumRuptures: 5},
				}},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return model
}

func geometryOf(src csm.Source) seismic.SourceGeometry {
	return seismic.PointSource{Lon: 0, Lat: 0, Mag: 6.0, TrtID: src.TrtModelID, SourceID: src.ID}
}

// TestClassicalHazard_EndToEnd drives calculation_mode "classical" through
// the full calculator.Run lifecycle against a real on-disk store, proving
// the registered mode actually produces and persists hazard output rather
// than failing with "unknown calculation_mode".
func TestClassicalHazard_EndToEnd(t *testing.T) {
	st, err := store.Create(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("store.Create() error: %v", err)
	}
	defer st.Close()

	base := calculator.NewBase(st, logr.Discard())
	base.Params["config"] = &config.Config{
		ConcurrentTasks: 1, TruncationLevel: 3, Poes: []float64{0.1},
		InvestigationTime: 1, MasterSeed: 1, RandomSeed: 1,
	}
	base.Params["csm"] = pointSourceModel()
	base.Params["assoc"] = twoSourceAssoc(t)
	base.Params["sites"] = []types.Site{{ID: 1, Lon: 0, Lat: 0}, {ID: 2, Lon: 0.1, Lat: 0}}
	base.Params["imls"] = map[string][]float64{"PGA": {0.1, 0.2, 0.3}}
	base.Params["gsims"] = map[logictree.AssocKey]seismic.GSIM{
		{TrtID: 0, Gsim: "GMPE_A"}: seismic.AttenuationGSIM{NameStr: "GMPE_A", MagCoeff: 0.8, DistCoeff: 1.2, Intercept: -1, LogStdDev: 0.5},
	}
	base.Params["geometry_of"] = geometryOf

	calc, err := calculator.New("classical", base)
	if err != nil {
		t.Fatalf("calculator.New() error: %v", err)
	}
	if _, err := calculator.Run(context.Background(), calc, base, 0, nil); err != nil {
		t.Fatalf("calculator.Run() error: %v", err)
	}

	var mean types.ProbabilityMap
	if err := st.Get("hcurves/mean", &mean); err != nil {
		t.Fatalf("Get(hcurves/mean) error: %v", err)
	}
	if len(mean.BySite) != 2 {
		t.Errorf("len(mean.BySite) = %d, want 2", len(mean.BySite))
	}

	var eff map[int]float64
	if err := st.Get("eff_ruptures", &eff); err != nil {
		t.Fatalf("Get(eff_ruptures) error: %v", err)
	}
	if eff[0] != 5 {
		t.Errorf("eff_ruptures[0] = %v, want 5", eff[0])
	}
}

// TestScenarioCalc_EndToEnd drives calculation_mode "scenario" through the
// full lifecycle, checking gmf_data/0001 is persisted with one record per
// (site, realization).
func TestScenarioCalc_EndToEnd(t *testing.T) {
	st, err := store.Create(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("store.Create() error: %v", err)
	}
	defer st.Close()

	base := calculator.NewBase(st, logr.Discard())
	base.Params["config"] = &config.Config{TruncationLevel: 3, NumberOfLogicTreeSamples: 4, MasterSeed: 7}
	base.Params["sites"] = []types.Site{{ID: 1, Lon: 0, Lat: 0}, {ID: 2, Lon: 0.1, Lat: 0}}
	base.Params["imls"] = map[string][]float64{"PGA": {0.1, 0.2}}
	base.Params["gsims"] = map[logictree.AssocKey]seismic.GSIM{
		{TrtID: 0, Gsim: "GMPE_A"}: seismic.AttenuationGSIM{NameStr: "GMPE_A", MagCoeff: 0.8, DistCoeff: 1.2, Intercept: -1, LogStdDev: 0.5},
	}
	base.Params["gmf_computer"] = seismic.DeterministicGmfComputer{}
	base.Params["rupture"] = types.Rupture{TrtID: 0, SourceID: "s1", Mag: 6.5}

	calc, err := calculator.New("scenario", base)
	if err != nil {
		t.Fatalf("calculator.New() error: %v", err)
	}
	if _, err := calculator.Run(context.Background(), calc, base, 0, nil); err != nil {
		t.Fatalf("calculator.Run() error: %v", err)
	}

	var recs []types.GMFRecord
	if err := st.Get("gmf_data/0001", &recs); err != nil {
		t.Fatalf("Get(gmf_data/0001) error: %v", err)
	}
	if len(recs) != 2*4 {
		t.Errorf("len(recs) = %d, want %d (2 sites x 4 realizations)", len(recs), 2*4)
	}
}

// confirms AnalyticalKernel produces a non-trivial exceedance curve.
func TestAnalyticalKernel_ProbabilityMap(t *testing.T) {
	k := &hazard.AnalyticalKernel{GeometryOf: geometryOf, InvestigationTime: 1, RunSeed: 1}
	gsim := seismic.AttenuationGSIM{NameStr: "GMPE_A", MagCoeff: 0.8, DistCoeff: 1.2, Intercept: -1, LogStdDev: 0.5}
	sources := []csm.Source{{TrtModelID: 0, ID: "s1", Weight: 1, NumRuptures: 10}}
	sites := []types.Site{{ID: 1, Lon: 0, Lat: 0}}
	imls := map[string][]float64{"PGA": {0.05, 0.1, 0.5}}

	pm, err := k.ProbabilityMap(context.Background(), sources, gsim, sites, imls, 3)
	if err != nil {
		t.Fatalf("ProbabilityMap() error: %v", err)
	}
	levels := pm.BySite[1]["PGA"]
	if len(levels) != 3 {
		t.Fatalf("len(levels) = %d, want 3", len(levels))
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] > levels[i-1] {
			t.Errorf("levels[%d] = %v > levels[%d] = %v, want non-increasing PoE with increasing IML", i, levels[i], i-1, levels[i-1])
		}
	}
	if levels[0] <= 0 {
		t.Errorf("levels[0] = %v, want > 0", levels[0])
	}
}
