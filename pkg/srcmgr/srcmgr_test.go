package srcmgr

import (
	"testing"

	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/seismic"
	"github.com/tandemseis/hazengine/pkg/shared/types"
)

func sampleCSM(t *testing.T) *csm.CompositeSourceModel {
	t.Helper()
	models := []csm.SourceModel{
		{
			Ordinal: 0, Name: "SM1", Path: "SM1", Weight: 1,
			TrtModels: []csm.TrtModel{
				{
					TrtID: 0, Trt: "Active Shallow Crust",
					Sources: []csm.Source{
						{TrtModelID: 0, ID: "near-light", Weight: 1, NumRuptures: 3},
						{TrtModelID: 0, ID: "far-light", Weight: 1, NumRuptures: 3},
						{TrtModelID: 0, ID: "heavy", Weight: 100, NumRuptures: 50},
					},
				},
			},
		},
	}
	c, err := csm.New(models)
	if err != nil {
		t.Fatalf("csm.New() error: %v", err)
	}
	c.MaxWeight = 5
	return c
}

func geometryFor(id string) seismic.SourceGeometry {
	switch id {
	case "near-light":
		return seismic.PointSource{Lon: 0, Lat: 0, SourceID: id}
	case "far-light":
		return seismic.PointSource{Lon: 50, Lat: 50, SourceID: id}
	default:
		return seismic.PointSource{Lon: 0, Lat: 0, SourceID: id}
	}
}

func TestAssignSerials_DenseNonOverlapping(t *testing.T) {
	c := sampleCSM(t)
	m := New(c, map[string]float64{"default": 100}, 42, 1)
	m.AssignSerials()

	seen := map[uint32]bool{}
	for _, tm := range c.TrtModels() {
		for _, src := range tm.Sources {
			if len(src.Serial) != src.NumRuptures {
				t.Errorf("source %s: len(Serial) = %d, want %d", src.ID, len(src.Serial), src.NumRuptures)
			}
			for _, s := range src.Serial {
				if seen[s] {
					t.Errorf("duplicate serial %d", s)
				}
				seen[s] = true
			}
		}
	}
}

func TestFilterAndSplit_DiscardsOutOfRange(t *testing.T) {
	c := sampleCSM(t)
	m := New(c, map[string]float64{"default": 10}, 1, 1)
	m.GeometryOf = func(s csm.Source) seismic.SourceGeometry { return geometryFor(s.ID) }
	m.SplitSource = func(s csm.Source) []csm.Source {
		return []csm.Source{
			{TrtModelID: s.TrtModelID, ID: s.ID + "-a", Weight: s.Weight / 2, NumRuptures: s.NumRuptures / 2, Serial: s.Serial},
			{TrtModelID: s.TrtModelID, ID: s.ID + "-b", Weight: s.Weight / 2, NumRuptures: s.NumRuptures - s.NumRuptures/2, Serial: s.Serial},
		}
	}
	m.AssignSerials()

	tile := seismic.Tile{
		Sites:           []types.Site{{ID: 1, Lon: 0, Lat: 0}},
		MaximumDistance: map[string]float64{"default": 10},
	}
	out, err := m.FilterAndSplit(tile)
	if err != nil {
		t.Fatalf("FilterAndSplit() error: %v", err)
	}

	var ids []string
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	foundFar := false
	for _, id := range ids {
		if id == "far-light" {
			foundFar = true
		}
	}
	if foundFar {
		t.Errorf("expected far-light to be filtered out, got %v", ids)
	}
	foundNear := false
	foundSplit := false
	for _, id := range ids {
		if id == "near-light" {
			foundNear = true
		}
		if id == "heavy-a" || id == "heavy-b" {
			foundSplit = true
		}
	}
	if !foundNear {
		t.Errorf("expected near-light to survive filtering, got %v", ids)
	}
	if !foundSplit {
		t.Errorf("expected heavy source to be split, got %v", ids)
	}

	infos := m.SourceInfos()
	if len(infos) == 0 {
		t.Error("expected source_info rows to be recorded")
	}
}

func TestPackBlocks_HonorsTrtModelBoundary(t *testing.T) {
	c := sampleCSM(t)
	m := New(c, nil, 1, 1)
	sources := []csm.Source{
		{TrtModelID: 0, ID: "a", Weight: 4, NumRuptures: 1},
		{TrtModelID: 1, ID: "b", Weight: 4, NumRuptures: 1},
	}
	blocks := m.PackBlocks(sources, 2)
	for _, b := range blocks {
		trt := -1
		for _, it := range b.Items {
			s := it.(csm.Source)
			if trt == -1 {
				trt = s.TrtModelID
			} else if trt != s.TrtModelID {
				t.Errorf("block mixes trt_model_id %d and %d", trt, s.TrtModelID)
			}
		}
	}
}
