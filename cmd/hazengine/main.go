// Command hazengine is the thin CLI entry point spec.md §6 describes: point
// it at a job.ini file and a data directory, and it drives one calculator
// run through pkg/calculator's lifecycle. Front-ends are a non-goal
// (spec.md §1), so this stays a demonstration driver rather than a feature
// surface — no flags beyond what's needed to open a store and find a job.ini.
//
// The concrete calculation modes (classical, event_based, scenario_damage,
// ...) live in pkg/modes and self-register into pkg/calculator's mode
// registry via init(); blank-importing the package below is enough for
// calculator.New to resolve any of them and run a real end-to-end
// calculation. What main() still can't do on its own is populate
// base.Params with a composite source model, site collection and asset
// collection: building those from NRML/CSV input files is the out-of-scope
// "parsed input" spec.md §1 excludes, so a caller driving hazengine as a
// library sets those Params entries itself before calculator.Run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tandemseis/hazengine/pkg/calculator"
	"github.com/tandemseis/hazengine/pkg/config"
	_ "github.com/tandemseis/hazengine/pkg/modes"
	"github.com/tandemseis/hazengine/pkg/shared/logging"
	"github.com/tandemseis/hazengine/pkg/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("hazengine", flag.ContinueOnError)
	jobPath := fs.String("job", "", "path to a job.ini configuration file")
	dataDir := fs.String("data-dir", ".", "directory holding calc_<id>.hazdb datastore files")
	priorCalcID := fs.Int64("prior-calc-id", 0, "calc id of a prior run to chain off (0 = none)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *jobPath == "" {
		fmt.Fprintln(os.Stderr, "hazengine: -job is required")
		return 2
	}

	log, err := logging.NewLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hazengine: logger init: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*jobPath)
	if err != nil {
		log.Error(err, "failed to load job.ini", "path", *jobPath)
		return 1
	}

	st, err := store.Create(*dataDir, 0)
	if err != nil {
		log.Error(err, "failed to open datastore", "dir", *dataDir)
		return 1
	}
	defer st.Close()

	log.Info("starting calculation", "calc_id", st.CalcID(), "calculation_mode", cfg.CalculationMode)

	base := calculator.NewBase(st, log)
	base.Params["config"] = cfg

	calc, err := calculator.New(string(cfg.CalculationMode), base)
	if err != nil {
		log.Error(err, "failed to construct calculator", "calculation_mode", cfg.CalculationMode)
		return 1
	}

	openParent := func(calcID int64) (*store.Store, error) {
		return store.Create(*dataDir, calcID)
	}

	_, err = calculator.Run(context.Background(), calc, base, *priorCalcID, openParent)
	if err != nil {
		log.Error(err, "calculation failed", "calc_id", st.CalcID(), "phase", base.Phase().String())
		return 1
	}

	log.Info("calculation completed", "calc_id", st.CalcID())
	return 0
}
