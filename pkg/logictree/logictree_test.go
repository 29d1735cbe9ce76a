package logictree

import (
	"math"
	"testing"
)

func twoModelBranches() []SourceModelBranch {
	return []SourceModelBranch{
		{
			Path: "SM1", Weight: 0.6,
			GsimsByTrt: map[int][]GsimBranch{
				0: {{TrtID: 0, Trt: "Active Shallow Crust", Gsim: "BA2008", Weight: 1.0}},
			},
		},
		{
			Path: "SM2", Weight: 0.4,
			GsimsByTrt: map[int][]GsimBranch{
				0: {{TrtID: 0, Trt: "Active Shallow Crust", Gsim: "CB2008", Weight: 1.0}},
			},
		},
	}
}

func TestBuild_Enumeration_TwoModels(t *testing.T) {
	assoc, err := Build(twoModelBranches(), 0, 0, nil, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(assoc.Realizations) != 2 {
		t.Fatalf("len(Realizations) = %d, want 2", len(assoc.Realizations))
	}
	weights := map[string]float64{}
	for _, r := range assoc.Realizations {
		weights[r.SourceModelPath] = r.Weight
	}
	if math.Abs(weights["SM1"]-0.6) > 1e-9 {
		t.Errorf("SM1 weight = %v, want 0.6", weights["SM1"])
	}
	if math.Abs(weights["SM2"]-0.4) > 1e-9 {
		t.Errorf("SM2 weight = %v, want 0.4", weights["SM2"])
	}
	if math.Abs(assoc.TotalWeight()-1) > 1e-12 {
		t.Errorf("TotalWeight() = %v, want 1", assoc.TotalWeight())
	}
}

func TestBuild_CombineCurves(t *testing.T) {
	assoc, err := Build(twoModelBranches(), 0, 0, nil, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	results := map[AssocKey]float64{}
	for key := range assoc.Assoc {
		if key.Gsim == "BA2008" {
			results[key] = 0.1
		} else {
			results[key] = 0.2
		}
	}
	combined := Combine(assoc, results, nil)
	for _, rlz := range assoc.Realizations {
		if rlz.SourceModelPath == "SM1" && combined[rlz.Ordinal] != 0.1 {
			t.Errorf("SM1 realization combined = %v, want 0.1", combined[rlz.Ordinal])
		}
		if rlz.SourceModelPath == "SM2" && combined[rlz.Ordinal] != 0.2 {
			t.Errorf("SM2 realization combined = %v, want 0.2", combined[rlz.Ordinal])
		}
	}
}

func TestBuild_Sampling_WeightIsOneOverN(t *testing.T) {
	assoc, err := Build(twoModelBranches(), 10, 42, nil, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(assoc.Realizations) != 10 {
		t.Fatalf("len(Realizations) = %d, want 10", len(assoc.Realizations))
	}
	for _, r := range assoc.Realizations {
		if math.Abs(r.Weight-0.1) > 1e-12 {
			t.Errorf("sampled realization weight = %v, want 0.1", r.Weight)
		}
	}
}

func TestBuild_ReducesZeroRuptureTrts(t *testing.T) {
	models := []SourceModelBranch{
		{
			Path: "SM1", Weight: 1.0,
			GsimsByTrt: map[int][]GsimBranch{
				0: {{Gsim: "BA2008", Weight: 1.0}},
				1: {{Gsim: "CY2008", Weight: 1.0}},
			},
		},
	}
	var warnings []string
	countRuptures := func(trtID int) int {
		if trtID == 1 {
			return 0
		}
		return 5
	}
	assoc, err := Build(models, 0, 0, countRuptures, func(msg string) { warnings = append(warnings, msg) })
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the reduced gsim logic tree")
	}
	if _, ok := assoc.GsimsByTrtID[1]; ok {
		t.Error("trt_id 1 should have been dropped")
	}
}

func TestExtract_PreservesWeights(t *testing.T) {
	assoc, err := Build(twoModelBranches(), 0, 0, nil, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	sub := Extract(assoc, []int{0})
	if len(sub.Realizations) != 1 {
		t.Fatalf("len(Realizations) = %d, want 1", len(sub.Realizations))
	}
	if sub.Realizations[0].Weight != assoc.Realizations[0].Weight {
		t.Errorf("extracted weight changed: got %v, want %v", sub.Realizations[0].Weight, assoc.Realizations[0].Weight)
	}
}
