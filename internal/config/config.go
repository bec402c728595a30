// Package config loads hocsim experiment settings from YAML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/hoc-contagion/core"
	"github.com/signalsfoundry/hoc-contagion/internal/logging"
	"github.com/signalsfoundry/hoc-contagion/internal/observability"
	"github.com/signalsfoundry/hoc-contagion/model"
)

// Source kinds.
const (
	SourceDataset = "dataset"
	SourceRandom  = "random"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains all hocsim settings.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Source     SourceConfig     `yaml:"source"`
	Simulation SimulationConfig `yaml:"simulation"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Results    ResultsConfig    `yaml:"results"`
}

// LoggingConfig configures the slog-backed logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// SourceConfig selects where the hypergraph comes from.
type SourceConfig struct {
	// Kind is "dataset" (nverts/simplices files) or "random".
	Kind      string       `yaml:"kind" validate:"oneof=dataset random"`
	Nverts    string       `yaml:"nverts" validate:"required_if=Kind dataset"`
	Simplices string       `yaml:"simplices" validate:"required_if=Kind dataset"`
	Random    RandomConfig `yaml:"random"`
}

// RandomConfig mirrors core.RandomHypergraphGenerator.
type RandomConfig struct {
	N        int     `yaml:"n" validate:"gte=0"`
	S        int     `yaml:"s" validate:"gte=0"`
	P        float64 `yaml:"p" validate:"gte=0,lte=1"`
	TargetK  float64 `yaml:"target_k" validate:"gte=0"`
	MaxDraws int     `yaml:"max_draws" validate:"gte=0"`
}

// SimulationConfig holds the contagion parameters of a single run.
type SimulationConfig struct {
	Model           string    `yaml:"model" validate:"modelkind"`
	Beta            float64   `yaml:"beta" validate:"gte=0,lte=1"`
	Gamma           float64   `yaml:"gamma" validate:"gte=0,lte=1"`
	BetaHighOrder   []float64 `yaml:"beta_high_order" validate:"dive,gte=0,lte=1"`
	Steps           int       `yaml:"steps" validate:"gt=0"`
	Seed            uint64    `yaml:"seed"`
	Resolution      string    `yaml:"resolution" validate:"omitempty,oneof=combined sequential"`
	InitialInfected []string  `yaml:"initial_infected,omitempty"`
}

// SweepConfig describes a λ sweep: for each λ the higher-order rate of every
// order is λ·gamma.
type SweepConfig struct {
	LambdaValues []float64 `yaml:"lambda_values" validate:"dive,gte=0"`
	Gamma        float64   `yaml:"gamma" validate:"gte=0,lte=1"`
	Orders       int       `yaml:"orders" validate:"gte=0"`
	Parallelism  int       `yaml:"parallelism" validate:"gte=0"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter" validate:"omitempty,oneof=stdout otlp otlpgrpc"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// ResultsConfig points at the SQLite results database. Empty disables it.
type ResultsConfig struct {
	Path string `yaml:"path"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("modelkind", func(fl validator.FieldLevel) bool {
		_, err := model.ParseModelKind(fl.Field().String())
		return err == nil
	})
}

// Default returns a Config with sensible defaults: a random hypergraph and
// an SIR run with rates for orders 2 and 3.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Source: SourceConfig{
			Kind: SourceRandom,
			Random: RandomConfig{
				N:       1000,
				S:       500,
				P:       0.5,
				TargetK: 4,
			},
		},
		Simulation: SimulationConfig{
			Model:         string(model.SIR),
			Beta:          0.05,
			Gamma:         0.1,
			BetaHighOrder: []float64{0.1, 0.1},
			Steps:         100,
			Seed:          1,
			Resolution:    core.ResolveCombined.String(),
		},
		Sweep: SweepConfig{
			LambdaValues: []float64{0.5, 1, 1.5, 2},
			Gamma:        0.1,
			Orders:       2,
			Parallelism:  1,
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: observability.DefaultServiceName,
			SampleRatio: 1,
		},
	}
}

// Load returns the defaults, overlaid with path when non-empty, then with
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields absent
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Source.Nverts = expandEnvVars(cfg.Source.Nverts)
	cfg.Source.Simplices = expandEnvVars(cfg.Source.Simplices)
	cfg.Results.Path = expandEnvVars(cfg.Results.Path)
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Source.Kind == SourceRandom {
		if err := c.Generator().Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ContagionConfig converts the simulation section into core parameters.
func (c *Config) ContagionConfig() (core.ContagionConfig, error) {
	kind, err := model.ParseModelKind(c.Simulation.Model)
	if err != nil {
		return core.ContagionConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	res, err := core.ParseResolution(c.Simulation.Resolution)
	if err != nil {
		return core.ContagionConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	rates := make([]float64, len(c.Simulation.BetaHighOrder))
	copy(rates, c.Simulation.BetaHighOrder)
	return core.ContagionConfig{
		Model:         kind,
		Beta:          c.Simulation.Beta,
		Gamma:         c.Simulation.Gamma,
		BetaHighOrder: rates,
		Resolution:    res,
	}, nil
}

// Generator converts the random source section into a generator.
func (c *Config) Generator() core.RandomHypergraphGenerator {
	r := c.Source.Random
	return core.RandomHypergraphGenerator{
		N:        r.N,
		S:        r.S,
		P:        r.P,
		TargetK:  r.TargetK,
		MaxDraws: r.MaxDraws,
	}
}

// InitialInfected returns the configured seed nodes, if any.
func (c *Config) InitialInfected() []model.NodeID {
	if len(c.Simulation.InitialInfected) == 0 {
		return nil
	}
	ids := make([]model.NodeID, len(c.Simulation.InitialInfected))
	for i, s := range c.Simulation.InitialInfected {
		ids[i] = model.NodeID(s)
	}
	return ids
}

// LoggerConfig converts the logging section for logging.New.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}

// ObservabilityTracing converts the tracing section for observability.InitTracing.
func (c *Config) ObservabilityTracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}

	if v := os.Getenv("HOCSIM_SOURCE_KIND"); v != "" {
		cfg.Source.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("HOCSIM_NVERTS"); v != "" {
		cfg.Source.Nverts = v
	}
	if v := os.Getenv("HOCSIM_SIMPLICES"); v != "" {
		cfg.Source.Simplices = v
	}

	if v := os.Getenv("HOCSIM_MODEL"); v != "" {
		cfg.Simulation.Model = v
	}
	if v := os.Getenv("HOCSIM_BETA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.Beta = f
		}
	}
	if v := os.Getenv("HOCSIM_GAMMA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.Gamma = f
		}
	}
	if v := os.Getenv("HOCSIM_BETA_HIGH_ORDER"); v != "" {
		if rates, err := parseFloatList(v); err == nil {
			cfg.Simulation.BetaHighOrder = rates
		}
	}
	if v := os.Getenv("HOCSIM_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simulation.Steps = n
		}
	}
	if v := os.Getenv("HOCSIM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Simulation.Seed = n
		}
	}
	if v := os.Getenv("HOCSIM_RESOLUTION"); v != "" {
		cfg.Simulation.Resolution = strings.ToLower(v)
	}

	if v := os.Getenv("HOCSIM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("HOCSIM_RESULTS_PATH"); v != "" {
		cfg.Results.Path = v
	}

	if v := os.Getenv("HOCSIM_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("HOCSIM_TRACING_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("HOCSIM_TRACING_SERVICE_NAME"); v != "" {
		cfg.Tracing.ServiceName = v
	}
	if v := os.Getenv("HOCSIM_TRACING_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRatio = f
		}
	}
	if v := os.Getenv("HOCSIM_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
}

// parseFloatList parses a comma-separated list such as "0.1,0.2".
func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
