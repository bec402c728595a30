package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/hoc-contagion/core"
	"github.com/signalsfoundry/hoc-contagion/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hocsim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/data")
	path := writeConfig(t, `
source:
  kind: dataset
  nverts: ${DATA_DIR}/contact-nverts.txt
  simplices: ${DATA_DIR}/contact-simplices.txt
simulation:
  model: sis
  beta: 0.2
  beta_high_order: [0.3]
  resolution: sequential
  initial_infected: ["7", "9"]
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Source.Nverts != "/data/contact-nverts.txt" {
		t.Fatalf("Source.Nverts = %q, want expanded path", cfg.Source.Nverts)
	}
	if cfg.Simulation.Steps != 100 || cfg.Simulation.Gamma != 0.1 {
		t.Fatalf("defaults lost: steps=%d gamma=%v", cfg.Simulation.Steps, cfg.Simulation.Gamma)
	}

	cc, err := cfg.ContagionConfig()
	if err != nil {
		t.Fatalf("ContagionConfig: %v", err)
	}
	if cc.Model != model.SIS || cc.Resolution != core.ResolveSequential || len(cc.BetaHighOrder) != 1 {
		t.Fatalf("ContagionConfig() = %+v", cc)
	}
	if ids := cfg.InitialInfected(); len(ids) != 2 || ids[0] != "7" {
		t.Fatalf("InitialInfected() = %v, want [7 9]", ids)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := writeConfig(t, "simulation: [unclosed")
	if _, err := LoadFromFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"beta above one", func(c *Config) { c.Simulation.Beta = 1.5 }, "Beta"},
		{"negative high-order rate", func(c *Config) { c.Simulation.BetaHighOrder = []float64{0.1, -0.2} }, "BetaHighOrder"},
		{"unknown model", func(c *Config) { c.Simulation.Model = "SEIR" }, "Model"},
		{"zero steps", func(c *Config) { c.Simulation.Steps = 0 }, "Steps"},
		{"unknown source", func(c *Config) { c.Source.Kind = "stdin" }, "Kind"},
		{"dataset without files", func(c *Config) { c.Source.Kind = SourceDataset }, "Nverts"},
		{"bad resolution", func(c *Config) { c.Simulation.Resolution = "random" }, "Resolution"},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "Exporter"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"random generator too small", func(c *Config) { c.Source.Random.N = 1 }, "N must be at least 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("Validate() = %v, want mention of %q", err, tc.field)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("HOCSIM_MODEL", "SIS")
	t.Setenv("HOCSIM_BETA", "0.25")
	t.Setenv("HOCSIM_BETA_HIGH_ORDER", "0.1, 0.2,0.3")
	t.Setenv("HOCSIM_STEPS", "42")
	t.Setenv("HOCSIM_SEED", "99")
	t.Setenv("HOCSIM_GAMMA", "not-a-number")
	t.Setenv("HOCSIM_RESULTS_PATH", "/tmp/runs.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Simulation.Model != "SIS" || cfg.Simulation.Beta != 0.25 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if got := cfg.Simulation.BetaHighOrder; len(got) != 3 || got[2] != 0.3 {
		t.Fatalf("BetaHighOrder = %v, want [0.1 0.2 0.3]", got)
	}
	if cfg.Simulation.Steps != 42 || cfg.Simulation.Seed != 99 || cfg.Results.Path != "/tmp/runs.db" {
		t.Fatalf("Steps/Seed/Results = %d/%d/%q", cfg.Simulation.Steps, cfg.Simulation.Seed, cfg.Results.Path)
	}
	if cfg.Simulation.Gamma != 0.1 {
		t.Fatalf("unparseable gamma should keep default, got %v", cfg.Simulation.Gamma)
	}
}

func TestTracingEnvOverrides(t *testing.T) {
	t.Setenv("HOCSIM_TRACING_ENABLED", "TRUE")
	t.Setenv("HOCSIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("HOCSIM_TRACING_SERVICE_NAME", "hocsim-ci")
	t.Setenv("HOCSIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("HOCSIM_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tc := cfg.ObservabilityTracing()
	if !tc.Enabled || tc.Exporter != "otlp" || tc.Endpoint != "collector:4317" {
		t.Fatalf("ObservabilityTracing() = %+v", tc)
	}
	if tc.ServiceName != "hocsim-ci" || tc.SampleRatio != 0.25 {
		t.Fatalf("ObservabilityTracing() service/ratio = %q/%v", tc.ServiceName, tc.SampleRatio)
	}

	t.Setenv("HOCSIM_TRACING_SAMPLE_RATIO", "7")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() with sample ratio 7 = %v, want ErrInvalidConfig", err)
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	if tc := cfg.ObservabilityTracing(); !tc.Enabled || tc.Exporter != "otlp" || tc.SampleRatio != 1 {
		t.Fatalf("ObservabilityTracing() = %+v", tc)
	}
	if gen := cfg.Generator(); gen.N != 1000 || gen.TargetK != 4 {
		t.Fatalf("Generator() = %+v", gen)
	}
	if lc := cfg.LoggerConfig(); lc.Level != "info" || lc.Format != "text" {
		t.Fatalf("LoggerConfig() = %+v", lc)
	}
}
