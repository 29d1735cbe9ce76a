// Package modes wires the pure hazard/risk/riskinput libraries into
// concrete pkg/calculator.Calculator implementations, one per
// calculation_mode spec.md §6 names, each self-registering with
// pkg/calculator's constructor-time registry so cmd/hazengine can drive a
// real end-to-end run.
//
// A calculator's inputs — the composite source model, the realization
// association, the site/asset collections, the GSIM and vulnerability/
// fragility/consequence functions, and the source-geometry/GMF-synthesis
// collaborators — are the out-of-scope "parsed NRML input" spec.md §1
// excludes from this engine. They are threaded in through
// calculator.Base.Params under the keys this package's paramX helpers
// document, the same boundary pkg/seismic and pkg/vulnerability already
// draw between in-scope orchestration and out-of-scope domain numerics.
//
// Grounded on spec.md §2's data-flow diagram (C6 writes into C1, C7 reads
// C1, C8 writes into C1) and
// _examples/original_source/openquake/calculators/base.py's
// HazardCalculator/RiskCalculator split.
package modes

import (
	"fmt"
	"sort"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/config"
	"github.com/tandemseis/hazengine/pkg/csm"
	"github.com/tandemseis/hazengine/pkg/logictree"
	"github.com/tandemseis/hazengine/pkg/seismic"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/vulnerability"
)

// firstAssocKey returns an arbitrary key from a GSIM map, for modes like
// scenario that spec.md §4.5 defines over a single GSIM rather than a
// full realization association.
func firstAssocKey(gsims map[logictree.AssocKey]seismic.GSIM) logictree.AssocKey {
	for k := range gsims {
		return k
	}
	return logictree.AssocKey{}
}

// probabilityMapHazardSource adapts a stored hazard curve into
// riskinput.HazardSource — spec.md §4.6's "curves-by-key (classical)"
// shape — without pkg/riskinput needing to know pkg/hazard's types.
type probabilityMapHazardSource struct {
	pm   *types.ProbabilityMap
	imts []string
}

func newProbabilityMapHazardSource(pm *types.ProbabilityMap) *probabilityMapHazardSource {
	seen := map[string]bool{}
	var imts []string
	for _, byIMT := range pm.BySite {
		for imt := range byIMT {
			if !seen[imt] {
				seen[imt] = true
				imts = append(imts, imt)
			}
		}
	}
	sort.Strings(imts)
	return &probabilityMapHazardSource{pm: pm, imts: imts}
}

func (h *probabilityMapHazardSource) HazardAt(siteID int, imt string) []float64 {
	byIMT, ok := h.pm.BySite[siteID]
	if !ok {
		return nil
	}
	return byIMT[imt]
}

func (h *probabilityMapHazardSource) IMTs() []string { return h.imts }

func param(p calculator.Params, key string) (interface{}, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("modes: missing required param %q", key)
	}
	return v, nil
}

func paramConfig(p calculator.Params) (*config.Config, error) {
	v, err := param(p, "config")
	if err != nil {
		return nil, err
	}
	cfg, ok := v.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want *config.Config", "config", v)
	}
	return cfg, nil
}

func paramCSM(p calculator.Params) (*csm.CompositeSourceModel, error) {
	v, err := param(p, "csm")
	if err != nil {
		return nil, err
	}
	c, ok := v.(*csm.CompositeSourceModel)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want *csm.CompositeSourceModel", "csm", v)
	}
	return c, nil
}

func paramAssoc(p calculator.Params) (*logictree.RlzsAssoc, error) {
	v, err := param(p, "assoc")
	if err != nil {
		return nil, err
	}
	a, ok := v.(*logictree.RlzsAssoc)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want *logictree.RlzsAssoc", "assoc", v)
	}
	return a, nil
}

func paramSites(p calculator.Params) ([]types.Site, error) {
	v, err := param(p, "sites")
	if err != nil {
		return nil, err
	}
	s, ok := v.([]types.Site)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want []types.Site", "sites", v)
	}
	return s, nil
}

func paramIMLs(p calculator.Params) (map[string][]float64, error) {
	v, err := param(p, "imls")
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string][]float64)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want map[string][]float64", "imls", v)
	}
	return m, nil
}

func paramGSIMs(p calculator.Params) (map[logictree.AssocKey]seismic.GSIM, error) {
	v, err := param(p, "gsims")
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[logictree.AssocKey]seismic.GSIM)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want map[logictree.AssocKey]seismic.GSIM", "gsims", v)
	}
	return m, nil
}

func paramGeometryOf(p calculator.Params) (func(csm.Source) seismic.SourceGeometry, error) {
	v, err := param(p, "geometry_of")
	if err != nil {
		return nil, err
	}
	f, ok := v.(func(csm.Source) seismic.SourceGeometry)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want func(csm.Source) seismic.SourceGeometry", "geometry_of", v)
	}
	return f, nil
}

func paramSplitSource(p calculator.Params) (func(csm.Source) []csm.Source, error) {
	v, err := param(p, "split_source")
	if err != nil {
		return nil, err
	}
	f, ok := v.(func(csm.Source) []csm.Source)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want func(csm.Source) []csm.Source", "split_source", v)
	}
	return f, nil
}

func paramGmfComputer(p calculator.Params) (seismic.GmfComputer, error) {
	v, err := param(p, "gmf_computer")
	if err != nil {
		return nil, err
	}
	c, ok := v.(seismic.GmfComputer)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want seismic.GmfComputer", "gmf_computer", v)
	}
	return c, nil
}

func paramAssets(p calculator.Params) (types.AssetCollection, error) {
	v, err := param(p, "assets")
	if err != nil {
		return types.AssetCollection{}, err
	}
	a, ok := v.(types.AssetCollection)
	if !ok {
		return types.AssetCollection{}, fmt.Errorf("modes: param %q has type %T, want types.AssetCollection", "assets", v)
	}
	return a, nil
}

func paramVuln(p calculator.Params, key string) (map[string]vulnerability.VulnerabilityFunction, error) {
	v, err := param(p, key)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]vulnerability.VulnerabilityFunction)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want map[string]vulnerability.VulnerabilityFunction", key, v)
	}
	return m, nil
}

func paramFragility(p calculator.Params) (map[string]vulnerability.FragilityFunction, error) {
	v, err := param(p, "fragility")
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]vulnerability.FragilityFunction)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want map[string]vulnerability.FragilityFunction", "fragility", v)
	}
	return m, nil
}

func paramConsequence(p calculator.Params) map[string]vulnerability.ConsequenceFunction {
	v, ok := p["consequence"]
	if !ok {
		return nil
	}
	m, _ := v.(map[string]vulnerability.ConsequenceFunction)
	return m
}

func paramLossCurveBuilder(p calculator.Params) (vulnerability.LossCurveBuilder, error) {
	v, err := param(p, "loss_curve_builder")
	if err != nil {
		return nil, err
	}
	b, ok := v.(vulnerability.LossCurveBuilder)
	if !ok {
		return nil, fmt.Errorf("modes: param %q has type %T, want vulnerability.LossCurveBuilder", "loss_curve_builder", v)
	}
	return b, nil
}

func paramRupture(p calculator.Params) (types.Rupture, error) {
	v, err := param(p, "rupture")
	if err != nil {
		return types.Rupture{}, err
	}
	r, ok := v.(types.Rupture)
	if !ok {
		return types.Rupture{}, fmt.Errorf("modes: param %q has type %T, want types.Rupture", "rupture", v)
	}
	return r, nil
}

// idKey formats the `poes/<trt_id>`, `gmf_data/<rlz>`, `sescollection/<serial>`
// family of store keys spec.md §6 names, zero-padded to 4 digits.
func idKey(prefix string, id int) string {
	return fmt.Sprintf("%s/%04d", prefix, id)
}
