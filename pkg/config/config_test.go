package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeJobINI(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "job.ini")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Classical(t *testing.T) {
	path := writeJobINI(t, `
[general]
calculation_mode = classical
concurrent_tasks = 4
investigation_time = 50
ses_per_logic_tree_path = 1
poes = 0.1, 0.02

[maximum_distance]
default = 200
Active Shallow Crust = 300
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CalculationMode != ModeClassical {
		t.Errorf("CalculationMode = %v, want %v", cfg.CalculationMode, ModeClassical)
	}
	if cfg.ConcurrentTasks != 4 {
		t.Errorf("ConcurrentTasks = %d, want 4", cfg.ConcurrentTasks)
	}
	if len(cfg.Poes) != 2 {
		t.Fatalf("Poes = %v, want 2 entries", cfg.Poes)
	}
	if cfg.MaximumDistance["default"] != 200 {
		t.Errorf("MaximumDistance[default] = %v, want 200", cfg.MaximumDistance["default"])
	}
	if cfg.Sampling() {
		t.Error("Sampling() should be false when number_of_logic_tree_samples is unset")
	}
}

func TestLoad_MissingCalculationMode(t *testing.T) {
	path := writeJobINI(t, `
[general]
concurrent_tasks = 1
investigation_time = 50

[maximum_distance]
default = 200
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for missing calculation_mode")
	}
}

func TestLoad_MissingMaximumDistance(t *testing.T) {
	path := writeJobINI(t, `
[general]
calculation_mode = classical
concurrent_tasks = 1
investigation_time = 50
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for missing maximum_distance")
	}
}

func TestConfigSesRatio(t *testing.T) {
	c := Config{InvestigationTime: 50, RiskInvestigationTime: 1, SESPerLogicTreePath: 2}
	got := c.SesRatio()
	want := 1.0 / 100.0
	if got != want {
		t.Errorf("SesRatio() = %v, want %v", got, want)
	}
}
