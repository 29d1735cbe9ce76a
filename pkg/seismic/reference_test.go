package seismic

import (
	"math/rand"
	"testing"

	"github.com/tandemseis/hazengine/pkg/shared/types"
)

func TestPointSource_SampleRuptures(t *testing.T) {
	src := PointSource{Lon: 0, Lat: 0, Mag: 6.5, SourceID: "s1", TrtID: 1}
	rng := rand.New(rand.NewSource(42))
	rups := src.SampleRuptures(rng, 5)
	if len(rups) != 5 {
		t.Fatalf("len(rups) = %d, want 5", len(rups))
	}
	for _, r := range rups {
		if r.Mag != 6.5 || r.TrtID != 1 || r.SourceID != "s1" {
			t.Errorf("rupture fields wrong: %+v", r)
		}
	}
}

func TestDeterministicGmfComputer_Compute(t *testing.T) {
	gsim := AttenuationGSIM{NameStr: "Test2024", MagCoeff: 0.8, DistCoeff: 1.2, Intercept: -2, LogStdDev: 0.5}
	rup := types.Rupture{Mag: 6.0}
	sites := []types.Site{{ID: 1, Lon: 0, Lat: 0}, {ID: 2, Lon: 0.1, Lat: 0.1}}
	rng := rand.New(rand.NewSource(7))

	gmf := DeterministicGmfComputer{}.Compute(rup, sites, gsim, []string{"PGA"}, 3, rng)
	if len(gmf) != 2 {
		t.Fatalf("len(gmf) = %d, want 2", len(gmf))
	}
	for _, rec := range gmf {
		if rec.GMV["PGA"] <= 0 {
			t.Errorf("PGA gmv should be positive, got %v", rec.GMV["PGA"])
		}
	}
}

func TestTile_Contains(t *testing.T) {
	tile := Tile{
		Sites:           []types.Site{{ID: 1, Lon: 0, Lat: 0}},
		MaximumDistance: map[string]float64{"default": 50},
	}
	near := PointSource{Lon: 0.01, Lat: 0.01}
	far := PointSource{Lon: 50, Lat: 50}
	if !tile.Contains(near, "Active Shallow Crust") {
		t.Error("expected near source to be contained")
	}
	if tile.Contains(far, "Active Shallow Crust") {
		t.Error("expected far source to be excluded")
	}
}
