// Package calculator implements spec.md §4.7's calculator lifecycle: the
// abstract pre_execute/execute/post_execute/export/clean_up state machine,
// pre-calculator chaining, parent-store rebinding, and the Monitor
// performance accounting the original threads through every phase.
//
// Grounded on spec.md §4.7 and
// _examples/original_source/openquake/calculators/base.py
// (BaseCalculator.run, HazardCalculator, RiskCalculator) for the *what*,
// and jhkimqd-chaos-utils/pkg/core/orchestrator/orchestrator.go (TestState
// enum + an Orchestrator struct holding every phase's components) for the
// Go state-machine *how*.
package calculator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/tandemseis/hazengine/pkg/store"
)

// Phase names one step of the calculator state machine (spec.md §4.7).
type Phase int

const (
	PhaseInit Phase = iota
	PhasePreExecute
	PhaseExecute
	PhasePostExecute
	PhaseExport
	PhaseCleanUp
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhasePreExecute:
		return "PRE_EXECUTE"
	case PhaseExecute:
		return "EXECUTE"
	case PhasePostExecute:
		return "POST_EXECUTE"
	case PhaseExport:
		return "EXPORT"
	case PhaseCleanUp:
		return "CLEAN_UP"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Calculator is the state machine every hazard/risk calculator implements
// (spec.md §4.7): pre_execute may recursively run a pre-calculator or
// rebind a parent store; execute runs the parallel map-reduce; post_execute
// persists results; export is format-driven and optional; clean_up flushes
// and leaves the store open.
type Calculator interface {
	PreExecute(ctx context.Context) error
	Execute(ctx context.Context) (interface{}, error)
	PostExecute(ctx context.Context, result interface{}) error
	Export(ctx context.Context) error
	CleanUp(ctx context.Context) error
}

// PreCalculator optionally supplies another Calculator that must run first
// (spec.md §4.7: "pre_calculator chaining"); its store becomes the
// running calculator's own store.
type PreCalculator interface {
	PreCalculator() Calculator
}

// Params holds the persistent attributes spec.md §4.7 lists as cached in
// memory but always backed by the store: sitemesh, sitecol, etags,
// rlzs_assoc, realizations, assetcol, cost_types, taxonomies, job_info,
// performance, csm. Calculators read/write through this struct rather than
// the store directly so every phase sees a consistent in-memory view.
type Params map[string]interface{}

// Base is embedded by every concrete calculator, providing the shared
// state the lifecycle needs: params, a Monitor, the datastore, and an
// optional pre-calculator (spec.md §4.7).
type Base struct {
	Params  Params
	Monitor *Monitor
	Store   *store.Store
	Log     logr.Logger

	phase Phase
}

// NewBase wires a Base around an already-open store.
func NewBase(st *store.Store, log logr.Logger) *Base {
	return &Base{Params: Params{}, Monitor: NewMonitor(), Store: st, Log: log, phase: PhaseInit}
}

// Phase reports the calculator's current lifecycle phase.
func (b *Base) Phase() Phase { return b.phase }

// Run drives calc through the full state machine (spec.md §4.7): if calc
// also implements PreCalculator and priorCalcID == 0, the pre-calculator
// is constructed and run first, and its store becomes this calculator's
// store; otherwise if priorCalcID != 0, openParent is used to open that
// store and attach it as this one's parent via store.SetParent.
func Run(ctx context.Context, calc Calculator, base *Base, priorCalcID int64, openParent func(calcID int64) (*store.Store, error)) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			base.phase = PhaseFailed
			err = fmt.Errorf("calculator panicked: %v", r)
		}
	}()

	if pc, ok := calc.(PreCalculator); ok && priorCalcID == 0 {
		if pre := pc.PreCalculator(); pre != nil {
			if _, err := Run(ctx, pre, base, 0, openParent); err != nil {
				base.phase = PhaseFailed
				return nil, err
			}
		}
	} else if priorCalcID != 0 && openParent != nil {
		parent, err := openParent(priorCalcID)
		if err != nil {
			base.phase = PhaseFailed
			return nil, err
		}
		if err := base.Store.SetParent(parent); err != nil {
			base.phase = PhaseFailed
			return nil, err
		}
	}

	base.phase = PhasePreExecute
	stop := base.Monitor.Start("pre_execute")
	err = calc.PreExecute(ctx)
	stop()
	if err != nil {
		base.phase = PhaseFailed
		return nil, err
	}

	base.phase = PhaseExecute
	stop = base.Monitor.Start("execute")
	result, err = calc.Execute(ctx)
	stop()
	if err != nil {
		base.phase = PhaseFailed
		return nil, err
	}

	base.phase = PhasePostExecute
	stop = base.Monitor.Start("post_execute")
	err = calc.PostExecute(ctx, result)
	stop()
	if err != nil {
		base.phase = PhaseFailed
		return nil, err
	}

	base.phase = PhaseExport
	stop = base.Monitor.Start("export")
	err = calc.Export(ctx)
	stop()
	if err != nil {
		base.phase = PhaseFailed
		return nil, err
	}

	base.phase = PhaseCleanUp
	stop = base.Monitor.Start("clean_up")
	err = calc.CleanUp(ctx)
	stop()
	if err != nil {
		base.phase = PhaseFailed
		return nil, err
	}

	if err := base.Store.Set("performance_data", base.Monitor.Snapshot(), nil); err != nil {
		base.phase = PhaseFailed
		return nil, err
	}

	base.phase = PhaseCompleted
	return result, nil
}

// ModeFactory constructs a Calculator given an already-built Base, the
// constructor-time mode registry's value type (spec.md §4.7).
type ModeFactory func(base *Base) Calculator

// registry is the constructor-time calculation-mode lookup (spec.md §4.7):
// calculation_mode string (e.g. "classical", "event_based",
// "scenario_damage") -> factory.
var registry = map[string]ModeFactory{}

// Register adds a calculation mode to the global registry. Calculator
// packages call this from an init() so cmd/hazengine need not import every
// concrete calculator package by name.
func Register(mode string, factory ModeFactory) {
	registry[mode] = factory
}

// New looks up and constructs the calculator for calculationMode, or
// reports an unknown-mode error.
func New(calculationMode string, base *Base) (Calculator, error) {
	factory, ok := registry[calculationMode]
	if !ok {
		return nil, fmt.Errorf("calculator: unknown calculation_mode %q", calculationMode)
	}
	return factory(base), nil
}

// Monitor is the performance-accounting context manager spec.md §4.7
// supplements from the original's per-phase wall time and memory
// tracking: a small stopwatch threaded through every phase, persisted
// into the store's performance_data key.
type Monitor struct {
	durations map[string]time.Duration
}

// NewMonitor returns an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{durations: map[string]time.Duration{}}
}

// Start begins timing phase and returns a stop function that records the
// elapsed duration when called.
func (m *Monitor) Start(phase string) func() {
	t0 := time.Now()
	return func() {
		m.durations[phase] += time.Since(t0)
	}
}

// Snapshot returns a copy of the recorded phase durations in seconds,
// matching the `performance_data` shape spec.md §6 names.
func (m *Monitor) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(m.durations))
	for phase, d := range m.durations {
		out[phase] = d.Seconds()
	}
	return out
}
