// Package types holds the data model shared by every hazengine package:
// sites, assets, ruptures, probability maps, and risk inputs, per
// spec.md §3.
package types

import "math"

// Site is one point of the hazard site collection.
type Site struct {
	ID  int
	Lon float64
	Lat float64
}

// SiteCollection is a filtered, ordered set of sites. SiteID values index
// into Sites.
type SiteCollection struct {
	Sites []Site
}

// NearestSite returns the id of the site nearest to (lon, lat) and the
// distance to it in kilometres, using the haversine great-circle formula
// on a spherical earth.
func (sc SiteCollection) NearestSite(lon, lat float64) (siteID int, distanceKm float64, ok bool) {
	if len(sc.Sites) == 0 {
		return 0, 0, false
	}
	best := -1
	bestDist := 0.0
	for i, s := range sc.Sites {
		d := haversineKm(lon, lat, s.Lon, s.Lat)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return sc.Sites[best].ID, bestDist, true
}

const earthRadiusKm = 6371.0

func haversineKm(lon1, lat1, lon2, lat2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	sinSq := func(x float64) float64 { return math.Sin(x) * math.Sin(x) }
	a := sinSq(dLat/2) + math.Cos(rad(lat1))*math.Cos(rad(lat2))*sinSq(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKm * c
}

// Asset is one exposed item of insured value.
type Asset struct {
	Ordinal     int
	ID          string
	Taxonomy    string
	SiteID      int
	Lon, Lat    float64
	Number      float64
	Values      map[string]float64 // loss_type -> replacement value
	Deductibles map[string]float64
	Limits      map[string]float64
	Retrofitted map[string]float64
	Occupants   map[string]float64 // time_event -> occupants
}

// Value returns the asset's replacement value for lossType, or 0 if unset.
func (a Asset) Value(lossType string) float64 {
	return a.Values[lossType]
}

// AssetCollection is a flat, ordinal-indexed array of assets built once per
// run after associating assets to the filtered site collection.
type AssetCollection struct {
	Assets []Asset
}

// ByTaxonomy groups asset ordinals by taxonomy, preserving first-seen order.
func (ac AssetCollection) ByTaxonomy() map[string][]int {
	out := map[string][]int{}
	for _, a := range ac.Assets {
		out[a.Taxonomy] = append(out[a.Taxonomy], a.Ordinal)
	}
	return out
}

// Rupture is rupture geometry + magnitude + seed + source identity. Actual
// geometry computation is an out-of-scope external collaborator
// (spec.md §1); only the fields the orchestration layer depends on are
// modeled here.
type Rupture struct {
	TrtID    int
	SourceID string
	Serial   uint32
	Seed     int64
	Mag      float64
}

// EventInfo is one (event_id, ses_index, occurrence_no) triple belonging to
// an EBRupture.
type EventInfo struct {
	EventID      uint64
	SESIndex     int
	OccurrenceNo int
}

// EBRupture adds event-based metadata to a Rupture: the events it produced
// and the site indices within the maximum distance.
type EBRupture struct {
	Rupture
	Events      []EventInfo
	SiteIndices []int
}

// Multiplicity is the number of events this rupture produced.
func (r EBRupture) Multiplicity() int {
	return len(r.Events)
}

// ProbabilityMap maps site -> IMT -> IML index -> probability of
// exceedance.
type ProbabilityMap struct {
	// BySite[siteID][imt] is a slice aligned with that IMT's IML levels.
	BySite map[int]map[string][]float64
}

// NewProbabilityMap returns an empty map.
func NewProbabilityMap() *ProbabilityMap {
	return &ProbabilityMap{BySite: map[int]map[string][]float64{}}
}

// CombineInto folds other into pm using agg, site by site, IMT by IMT,
// level by level. agg must be commutative and associative (spec.md §5).
func (pm *ProbabilityMap) CombineInto(other *ProbabilityMap, agg func(a, b float64) float64) {
	for siteID, byIMT := range other.BySite {
		dst, ok := pm.BySite[siteID]
		if !ok {
			dst = map[string][]float64{}
			pm.BySite[siteID] = dst
		}
		for imt, levels := range byIMT {
			cur, ok := dst[imt]
			if !ok {
				cur = make([]float64, len(levels))
				dst[imt] = cur
			}
			for i, v := range levels {
				cur[i] = agg(cur[i], v)
			}
		}
	}
}

// GMFRecord is one row of a GMF dataset: (site_id, event_id, gmv[imt]).
type GMFRecord struct {
	SiteID  int
	EventID uint64
	GMV     map[string]float64
}

// RiskInput is a unit of risk-calculation work: one IMT, a set of
// (asset, hazard-at-site) pairs of compatible taxonomy, and aligned
// epsilons.
type RiskInput struct {
	IMT          string
	Assets       []Asset
	HazardAtSite map[int][]float64 // site_id -> curve or gmvs, by IMT's ordering
	Epsilons     [][]float64       // [asset index][event/sample index]
}

// Weight is the total number of assets this risk input covers, the unit
// TaskManager's block splitter packs by (spec.md §4.6).
func (ri RiskInput) Weight() float64 {
	return float64(len(ri.Assets))
}
