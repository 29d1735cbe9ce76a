// Package config loads the flat job.ini configuration file spec.md §6
// describes, and validates it.
package config

import (
	"time"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"

	sharederrors "github.com/tandemseis/hazengine/pkg/shared/errors"
)

// CalculationMode selects which calculator pkg/calculator's registry
// dispatches to.
type CalculationMode string

const (
	ModeClassical           CalculationMode = "classical"
	ModeClassicalRisk       CalculationMode = "classical_risk"
	ModeClassicalDamage     CalculationMode = "classical_damage"
	ModeClassicalBCR        CalculationMode = "classical_bcr"
	ModeEventBasedRupture   CalculationMode = "event_based_rupture"
	ModeEventBased          CalculationMode = "event_based"
	ModeEventBasedRisk      CalculationMode = "event_based_risk"
	ModeScenario            CalculationMode = "scenario"
	ModeScenarioDamage      CalculationMode = "scenario_damage"
	ModeScenarioRisk        CalculationMode = "scenario_risk"
)

// Config is the core-relevant recognized option surface from spec.md §6.
type Config struct {
	CalculationMode CalculationMode `ini:"calculation_mode" validate:"required"`

	MaximumDistance map[string]float64 `ini:"-"`
	MinimumIntensity map[string]float64 `ini:"-"`

	SitesPerTile     int `ini:"sites_per_tile"`
	ConcurrentTasks  int `ini:"concurrent_tasks" validate:"required,min=1"`

	SESPerLogicTreePath    int     `ini:"ses_per_logic_tree_path"`
	InvestigationTime      float64 `ini:"investigation_time" validate:"min=0"`
	RiskInvestigationTime  float64 `ini:"risk_investigation_time"`

	NumberOfLogicTreeSamples int   `ini:"number_of_logic_tree_samples"`
	RandomSeed               int64 `ini:"random_seed"`
	MasterSeed               int64 `ini:"master_seed"`

	TruncationLevel  float64 `ini:"truncation_level"`
	AssetCorrelation float64 `ini:"asset_correlation" validate:"min=0,max=1"`

	QuantileHazardCurves []float64 `ini:"-"`
	MeanHazardCurves     bool      `ini:"mean_hazard_curves"`
	Poes                 []float64 `ini:"-"`
	HazardMaps           bool      `ini:"hazard_maps"`
	UniformHazardSpectra bool      `ini:"uniform_hazard_spectra"`
	IndividualCurves     bool      `ini:"individual_curves"`

	InsuredLosses        bool    `ini:"insured_losses"`
	AvgLosses            bool    `ini:"avg_losses"`
	AssetLossTable       bool    `ini:"asset_loss_table"`
	ConditionalLossPoes  []float64 `ini:"-"`
	LossCurveResolution  int     `ini:"loss_curve_resolution"`

	TimeEvent       string `ini:"time_event"`
	AllCostTypes    bool   `ini:"all_cost_types"`
	SpecificAssets  []string `ini:"-"`
	Exports         []string `ini:"-"`
	ExportDir       string `ini:"export_dir"`

	InterestRate        float64 `ini:"interest_rate"`
	AssetLifeExpectancy float64 `ini:"asset_life_expectancy"`
}

// SesRatio returns the conversion ratio spec.md §4.6/§8 defines.
func (c Config) SesRatio() float64 {
	it := c.InvestigationTime
	if it == 0 {
		return 0
	}
	return c.RiskInvestigationTime / (it * float64(c.SESPerLogicTreePath))
}

// Sampling reports whether the logic tree is Monte Carlo sampled
// (number_of_logic_tree_samples > 0) rather than fully enumerated.
func (c Config) Sampling() bool {
	return c.NumberOfLogicTreeSamples > 0
}

// Duration parses a job.ini-style duration string ("30s", "5m") falling
// back to seconds-as-a-number if no unit suffix is present.
func Duration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	return time.ParseDuration(s + "s")
}

// Load reads and validates a job.ini file.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, sharederrors.NewParseError(path, 0, err)
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (*Config, error) {
	cfg := &Config{
		ConcurrentTasks:       1,
		LossCurveResolution:   20,
		AssetCorrelation:      0,
		InvestigationTime:     1,
		RiskInvestigationTime: 1,
		SESPerLogicTreePath:   1,
	}

	general := f.Section("general")
	if err := general.MapTo(cfg); err != nil {
		return nil, sharederrors.NewConfigError("general", err)
	}

	cfg.MaximumDistance = sectionFloats(f, "maximum_distance")
	cfg.MinimumIntensity = sectionFloats(f, "minimum_intensity")
	cfg.QuantileHazardCurves = floatList(f.Section("general").Key("quantile_hazard_curves").String())
	cfg.Poes = floatList(f.Section("general").Key("poes").String())
	cfg.ConditionalLossPoes = floatList(f.Section("general").Key("conditional_loss_poes").String())
	cfg.SpecificAssets = stringList(f.Section("general").Key("specific_assets").String())
	cfg.Exports = stringList(f.Section("general").Key("exports").String())

	if cfg.RiskInvestigationTime == 0 {
		cfg.RiskInvestigationTime = cfg.InvestigationTime
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, sharederrors.NewConfigError("job.ini", err)
	}
	if _, ok := cfg.MaximumDistance["default"]; !ok && len(cfg.MaximumDistance) == 0 {
		return nil, sharederrors.NewConfigError("maximum_distance", nil)
	}
	return cfg, nil
}

// sectionFloats reads a section of scalar keys (e.g. maximum_distance,
// minimum_intensity) into a map, keeping the "default" key intact.
func sectionFloats(f *ini.File, section string) map[string]float64 {
	out := map[string]float64{}
	sec, err := f.GetSection(section)
	if err != nil {
		return out
	}
	for _, key := range sec.Keys() {
		if v, err := key.Float64(); err == nil {
			out[key.Name()] = v
		}
	}
	return out
}
