// Package seismic defines the interfaces for spec.md §1's deliberately
// out-of-scope external collaborators — rupture geometry, GSIM
// context/intensity computation, and site tiling — plus a minimal
// deterministic reference implementation good enough to exercise the
// pipeline end-to-end (spec.md §8's concrete scenarios).
//
// Grounded on spec.md §1's interface boundary and §4.5/§4.6 call sites.
package seismic

import (
	"math/rand"

	"github.com/tandemseis/hazengine/pkg/shared/types"
)

// SourceGeometry answers distance and rupture-sampling questions about one
// source's geometry. A real implementation would carry polygon/fault
// geometry; the reference implementation below reduces sources to a
// centroid point, which is sufficient to exercise filtering and
// sampling without modeling actual seismology.
type SourceGeometry interface {
	// DistanceKm returns the minimum distance in km from the source to
	// the given site.
	DistanceKm(site types.Site) float64
	// SampleRuptures draws n ruptures from the source using rng, yielding
	// one types.Rupture per occurrence.
	SampleRuptures(rng *rand.Rand, n int) []types.Rupture
}

// GSIM predicts ground-motion intensity given a rupture and a site
// (spec.md §1's "GSIM context/intensity computations").
type GSIM interface {
	Name() string
	// MeanStdDev returns the log-mean and log-stddev of the intensity
	// distribution for imt at the given rupture/site pair.
	MeanStdDev(imt string, rup types.Rupture, site types.Site) (mean, stddev float64)
}

// GmfComputer synthesizes ground-motion values for one rupture across a
// set of sites under a single GSIM (spec.md §4.5's "external
// GmfComputer").
type GmfComputer interface {
	Compute(rup types.Rupture, sites []types.Site, gsim GSIM, imts []string, truncationLevel float64, rng *rand.Rand) []types.GMFRecord
}

// Tile bounds a spatial partition of the site collection, used to cap
// memory during classical tiling (spec.md §4.4's "Tile" concept).
type Tile struct {
	Sites            []types.Site
	MaximumDistance  map[string]float64
}

// Contains reports whether geom lies within the tile's maximum distance
// of at least one of the tile's sites, for the given tectonic region type.
func (t Tile) Contains(geom SourceGeometry, trt string) bool {
	maxDist, ok := t.MaximumDistance[trt]
	if !ok {
		maxDist = t.MaximumDistance["default"]
	}
	for _, s := range t.Sites {
		if geom.DistanceKm(s) <= maxDist {
			return true
		}
	}
	return false
}

// SitesWithin returns the site ids within maxDist km of geom, used to
// populate an EBRupture's SiteIndices.
func (t Tile) SitesWithin(geom SourceGeometry, maxDist float64) []int {
	var out []int
	for _, s := range t.Sites {
		if geom.DistanceKm(s) <= maxDist {
			out = append(out, s.ID)
		}
	}
	return out
}
