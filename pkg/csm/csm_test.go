package csm

import "testing"

func sample() []SourceModel {
	return []SourceModel{
		{
			Ordinal: 0, Name: "SM1", Path: "SM1", Weight: 1,
			TrtModels: []TrtModel{
				{
					TrtID: 0, Trt: "Active Shallow Crust",
					Sources: []Source{
						{TrtModelID: 0, ID: "s1", Weight: 1, NumRuptures: 10},
						{TrtModelID: 0, ID: "s2", Weight: 20, NumRuptures: 200},
					},
				},
			},
		},
	}
}

func TestNew_DuplicateSourceID(t *testing.T) {
	models := sample()
	models[0].TrtModels[0].Sources = append(models[0].TrtModels[0].Sources, Source{ID: "s1"})
	if _, err := New(models); err == nil {
		t.Fatal("expected DuplicateSourceID error")
	}
}

func TestNew_ComputesWeights(t *testing.T) {
	csm, err := New(sample())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if csm.Weight != 21 {
		t.Errorf("Weight = %v, want 21", csm.Weight)
	}
	if csm.MaxWeight <= 0 {
		t.Errorf("MaxWeight = %v, want > 0", csm.MaxWeight)
	}
}

func TestGetSources_LightHeavySplit(t *testing.T) {
	csm, err := New(sample())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	csm.MaxWeight = 5
	light := csm.GetSources(KindLight)
	heavy := csm.GetSources(KindHeavy)
	if len(light) != 1 || light[0].ID != "s1" {
		t.Errorf("light sources = %v, want [s1]", light)
	}
	if len(heavy) != 1 || heavy[0].ID != "s2" {
		t.Errorf("heavy sources = %v, want [s2]", heavy)
	}
}

func TestTrtModel_TotRuptures(t *testing.T) {
	tm := TrtModel{Sources: []Source{{NumRuptures: 3}, {NumRuptures: 4}}}
	if tm.TotRuptures() != 7 {
		t.Errorf("TotRuptures() = %d, want 7", tm.TotRuptures())
	}
}
