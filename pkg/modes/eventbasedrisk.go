package modes

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/risk"
	"github.com/tandemseis/hazengine/pkg/shared/types"
	"github.com/tandemseis/hazengine/pkg/vulnerability"
)

func init() {
	calculator.Register("event_based_risk", func(base *calculator.Base) calculator.Calculator {
		return &EventBasedRiskCalc{Base: base}
	})
}

// EventBasedRiskCalc implements calculation_mode "event_based_risk"
// (spec.md §4.6): chains EventBasedCalc, derives per-(asset, event) losses
// from the sampled GMF streams, and persists the event loss table, average
// annual losses and the aggregate loss exceedance curve.
type EventBasedRiskCalc struct {
	*calculator.Base

	vuln map[string]vulnerability.VulnerabilityFunction
}

func (c *EventBasedRiskCalc) PreCalculator() calculator.Calculator {
	return &EventBasedCalc{Base: c.Base}
}

func (c *EventBasedRiskCalc) PreExecute(ctx context.Context) error {
	vuln, err := paramVuln(c.Params, "vuln")
	if err != nil {
		return err
	}
	c.vuln = vuln
	return nil
}

// eventLossesByRlzAndType is Execute's output: rlz -> loss_type -> rows.
type eventLossesByRlzAndType map[int]map[string][]risk.EventLoss

func (c *EventBasedRiskCalc) Execute(ctx context.Context) (interface{}, error) {
	assetCol, err := paramAssets(c.Params)
	if err != nil {
		return nil, err
	}
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return nil, err
	}
	v, err := param(c.Params, "gmf_by_rlz")
	if err != nil {
		return nil, err
	}
	gmfByRlz := v.(map[int][]types.GMFRecord)

	sesRatio := cfg.SesRatio()
	rows := eventLossesByRlzAndType{}
	avgByRlzAndType := map[int]map[string]map[string]float64{}

	for rlz, recs := range gmfByRlz {
		rows[rlz] = map[string][]risk.EventLoss{}
		avgByRlzAndType[rlz] = map[string]map[string]float64{}
		for lossType := range c.vuln {
			imt := imtForLossType(recs)
			gmvsByEvent := gmvsByEvent(recs, imt)
			ri := types.RiskInput{Assets: assetCol.Assets}
			calc := &risk.EventBasedRisk{Vuln: c.vuln, SesRatio: sesRatio}
			eventRows, avg := calc.Compute(ri, lossType, gmvsByEvent)
			rows[rlz][lossType] = eventRows
			avgByRlzAndType[rlz][lossType] = avg
		}
	}
	return eventBasedRiskResult{rows: rows, avgByRlzAndType: avgByRlzAndType}, nil
}

type eventBasedRiskResult struct {
	rows            eventLossesByRlzAndType
	avgByRlzAndType map[int]map[string]map[string]float64
}

func (c *EventBasedRiskCalc) PostExecute(ctx context.Context, result interface{}) error {
	out := result.(eventBasedRiskResult)
	cfg, err := paramConfig(c.Params)
	if err != nil {
		return err
	}

	for rlz, byType := range out.rows {
		for lossType, eventRows := range byType {
			if err := c.Store.Set(fmt.Sprintf("ass_loss_table/rlz-%04d/%s", rlz, lossType), eventRows, nil); err != nil {
				return err
			}
			if err := c.Store.Set(fmt.Sprintf("agg_loss_table/rlz-%04d/%s", rlz, lossType), aggregateByEvent(eventRows), nil); err != nil {
				return err
			}
		}
	}
	if err := c.Store.Set("avg_losses-rlzs", out.avgByRlzAndType, nil); err != nil {
		return err
	}
	if err := c.Store.Set("avg_losses-stats", meanAvgLosses(out.avgByRlzAndType), nil); err != nil {
		return err
	}

	aggCurves := map[int]map[string]aggLossCurve{}
	for rlz, byType := range out.rows {
		aggCurves[rlz] = map[string]aggLossCurve{}
		for lossType, eventRows := range byType {
			aggCurves[rlz][lossType] = buildAggLossCurve(aggregateByEvent(eventRows), cfg.SesRatio())
		}
	}
	if err := c.Store.Set("agg_curve-rlzs", aggCurves, nil); err != nil {
		return err
	}
	return c.Store.Set("agg_curve-stats", meanAggCurve(aggCurves), nil)
}

func (c *EventBasedRiskCalc) Export(ctx context.Context) error  { return nil }
func (c *EventBasedRiskCalc) CleanUp(ctx context.Context) error { return nil }

// imtForLossType picks the intensity measure type a GMF stream carries.
// Loss-type-to-IMT mapping is the out-of-scope vulnerability-model
// bookkeeping spec.md §1 excludes; a single-IMT GMF stream (the common
// case this engine's reference GmfComputer produces) makes any record's
// first key the right choice.
func imtForLossType(recs []types.GMFRecord) string {
	for _, r := range recs {
		for imt := range r.GMV {
			return imt
		}
	}
	return ""
}

func gmvsByEvent(recs []types.GMFRecord, imt string) map[uint64]map[int]float64 {
	out := map[uint64]map[int]float64{}
	for _, r := range recs {
		v, ok := r.GMV[imt]
		if !ok {
			continue
		}
		bySite, ok := out[r.EventID]
		if !ok {
			bySite = map[int]float64{}
			out[r.EventID] = bySite
		}
		bySite[r.SiteID] = v
	}
	return out
}

// aggregateByEvent sums asset-level losses into one row per event (spec.md
// §4.6's aggregate loss table).
func aggregateByEvent(rows []risk.EventLoss) map[uint64]float64 {
	out := map[uint64]float64{}
	for _, r := range rows {
		out[r.EventID] += r.Loss
	}
	return out
}

func meanAvgLosses(byRlzAndType map[int]map[string]map[string]float64) map[string]map[string]float64 {
	sums := map[string]map[string]float64{}
	n := float64(len(byRlzAndType))
	if n == 0 {
		return sums
	}
	for _, byType := range byRlzAndType {
		for lossType, byAsset := range byType {
			dst, ok := sums[lossType]
			if !ok {
				dst = map[string]float64{}
				sums[lossType] = dst
			}
			for assetID, v := range byAsset {
				dst[assetID] += v / n
			}
		}
	}
	return sums
}

// aggLossCurve is an aggregate loss exceedance curve: parallel Losses
// (ascending) and Poes arrays.
type aggLossCurve struct {
	Losses []float64
	Poes   []float64
}

// buildAggLossCurve folds per-event aggregate losses into an exceedance
// curve the same way GMVsToHazCurve folds per-site ground motion into a
// hazard curve: each event occurs at rate sesRatio per year, and the
// probability of exceeding a loss level over one year is
// 1 - exp(-rate_exceeding * 1yr) (spec.md §4.6).
func buildAggLossCurve(byEvent map[uint64]float64, sesRatio float64) aggLossCurve {
	losses := make([]float64, 0, len(byEvent))
	for _, l := range byEvent {
		losses = append(losses, l)
	}
	sort.Float64s(losses)

	n := len(losses)
	out := aggLossCurve{Losses: make([]float64, n), Poes: make([]float64, n)}
	for i, l := range losses {
		exceeding := n - i
		rate := float64(exceeding) * sesRatio
		out.Losses[i] = l
		out.Poes[i] = 1 - math.Exp(-rate)
	}
	return out
}

func meanAggCurve(byRlz map[int]map[string]aggLossCurve) map[string]aggLossCurve {
	byType := map[string][]aggLossCurve{}
	for _, curves := range byRlz {
		for lossType, c := range curves {
			byType[lossType] = append(byType[lossType], c)
		}
	}
	out := map[string]aggLossCurve{}
	for lossType, curves := range byType {
		if len(curves) == 0 {
			continue
		}
		longest := curves[0]
		for _, c := range curves {
			if len(c.Losses) > len(longest.Losses) {
				longest = c
			}
		}
		sumPoes := make([]float64, len(longest.Losses))
		for _, c := range curves {
			for i := range longest.Losses {
				if i < len(c.Poes) {
					sumPoes[i] += c.Poes[i]
				}
			}
		}
		n := float64(len(curves))
		poes := make([]float64, len(sumPoes))
		for i, s := range sumPoes {
			poes[i] = s / n
		}
		out[lossType] = aggLossCurve{Losses: longest.Losses, Poes: poes}
	}
	return out
}
