// Package experiment drives complete runs: it builds the hypergraph named by
// a config, identifies its HOCs, simulates, and records the outcome.
package experiment

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/hoc-contagion/core"
	"github.com/signalsfoundry/hoc-contagion/hypergraph"
	"github.com/signalsfoundry/hoc-contagion/internal/config"
	"github.com/signalsfoundry/hoc-contagion/internal/logging"
	"github.com/signalsfoundry/hoc-contagion/internal/observability"
	"github.com/signalsfoundry/hoc-contagion/internal/results"
	"github.com/signalsfoundry/hoc-contagion/model"
)

const tracerName = "github.com/signalsfoundry/hoc-contagion/internal/experiment"

// Runner executes runs and sweeps described by a config.Config.
type Runner struct {
	log     logging.Logger
	metrics *observability.SimulationCollector
	store   *results.Store
}

// RunnerOption customises Runner construction.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics publishes identification and step metrics to c.
func WithMetrics(c *observability.SimulationCollector) RunnerOption {
	return func(r *Runner) {
		r.metrics = c
	}
}

// WithStore persists every finished run to s.
func WithStore(s *results.Store) RunnerOption {
	return func(r *Runner) {
		r.store = s
	}
}

// NewRunner constructs a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{log: logging.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Summary is the outcome of one run.
type Summary struct {
	RunID         string               `json:"run_id"`
	Nodes         int                  `json:"nodes"`
	Hyperedges    int                  `json:"hyperedges"`
	HOCCounts     map[int]int          `json:"hoc_counts"`
	SkippedOrders []int                `json:"skipped_orders,omitempty"`
	History       []model.StatusCounts `json:"history"`
	Final         model.StatusCounts   `json:"final"`
	OutbreakSize  float64              `json:"outbreak_size"`
}

// LoadHypergraph builds the hypergraph named by cfg.Source. Random sources
// draw from a stream derived from the simulation seed.
func (r *Runner) LoadHypergraph(ctx context.Context, cfg *config.Config) (*hypergraph.Hypergraph, error) {
	switch cfg.Source.Kind {
	case config.SourceDataset:
		h, summary, err := core.LoadDatasetFiles(cfg.Source.Nverts, cfg.Source.Simplices)
		if err != nil {
			return nil, err
		}
		r.log.Info(ctx, "dataset loaded",
			logging.Int("simplices", summary.Simplices),
			logging.Int("hyperedges", summary.Hyperedges),
			logging.Int("duplicates", summary.Duplicates),
			logging.Int("nodes", summary.Nodes),
		)
		return h, nil
	case config.SourceRandom:
		rng := NewRand(DeriveSeed(cfg.Simulation.Seed, "source", 0))
		h, err := cfg.Generator().Generate(rng)
		if err != nil {
			return nil, err
		}
		r.log.Info(ctx, "random hypergraph generated",
			logging.Int("hyperedges", h.NumHyperedges()),
			logging.Int("nodes", h.NumNodes()),
			logging.Float64("mean_degree", h.MeanDegree()),
		)
		return h, nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", config.ErrInvalidConfig, cfg.Source.Kind)
	}
}

// Identify loads the hypergraph and computes its HOC map.
func (r *Runner) Identify(ctx context.Context, cfg *config.Config) (*hypergraph.Hypergraph, core.HOCMap, error) {
	h, err := r.LoadHypergraph(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	hocs, err := r.hocEngine().Identify(ctx, h)
	if err != nil {
		return nil, nil, err
	}
	return h, hocs, nil
}

// Run performs a single simulation as configured and stores it when a store
// is attached.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (summary *Summary, err error) {
	ctx, log := logging.WithRunLogger(ctx, r.log)
	runID := logging.RunIDFromContext(ctx)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Experiment/Run")
	span.SetAttributes(attribute.String("run.id", runID))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		r.metrics.IncRun(results.KindRun, err)
	}()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cc, err := cfg.ContagionConfig()
	if err != nil {
		return nil, err
	}

	h, err := r.LoadHypergraph(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := r.simulatorOptions(log)
	if ids := cfg.InitialInfected(); len(ids) > 0 {
		opts = append(opts, core.WithInitialInfected(ids...))
	}
	engine, err := core.NewSimulationEngine(ctx, h, r.hocEngine(), cc, NewRand(cfg.Simulation.Seed), opts...)
	if err != nil {
		return nil, err
	}
	engine.RegisterStepListener(func(step int, counts model.StatusCounts) {
		log.Debug(ctx, "step", logging.Int("step", step), logging.String("counts", counts.String()))
	})

	history, err := engine.Run(ctx, cfg.Simulation.Steps)
	if err != nil {
		return nil, err
	}

	summary = summarize(runID, h, engine.HOCs, engine.Simulator, history)
	log.Info(ctx, "run complete",
		logging.String("final", summary.Final.String()),
		logging.Float64("outbreak_size", summary.OutbreakSize),
	)

	if r.store != nil {
		rec := runRecord(summary, cfg, cc)
		rec.Kind = results.KindRun
		if err := r.store.SaveRun(ctx, rec); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
	}
	return summary, nil
}

func (r *Runner) hocEngine() *core.HOCEngine {
	opts := []core.HOCEngineOption{core.WithHOCLogger(r.log)}
	if r.metrics != nil {
		opts = append(opts, core.WithHOCMetrics(r.metrics))
	}
	return core.NewHOCEngine(opts...)
}

func (r *Runner) simulatorOptions(log logging.Logger) []core.SimulatorOption {
	opts := []core.SimulatorOption{core.WithSimulatorLogger(log)}
	if r.metrics != nil {
		opts = append(opts, core.WithSimulatorMetrics(r.metrics))
	}
	return opts
}

func summarize(runID string, h *hypergraph.Hypergraph, hocs core.HOCMap, sim *core.Simulator, history []model.StatusCounts) *Summary {
	final := sim.StatusCounts()
	return &Summary{
		RunID:         runID,
		Nodes:         h.NumNodes(),
		Hyperedges:    h.NumHyperedges(),
		HOCCounts:     hocs.ComponentCounts(),
		SkippedOrders: sim.SkippedOrders(),
		History:       history,
		Final:         final,
		OutbreakSize:  core.OutbreakSize(final),
	}
}

func runRecord(s *Summary, cfg *config.Config, cc core.ContagionConfig) *results.Run {
	return &results.Run{
		ID:            s.RunID,
		Model:         string(cc.Model),
		Resolution:    cc.Resolution.String(),
		Beta:          cc.Beta,
		Gamma:         cc.Gamma,
		BetaHighOrder: cc.BetaHighOrder,
		Seed:          cfg.Simulation.Seed,
		Steps:         len(s.History),
		Nodes:         s.Nodes,
		Hyperedges:    s.Hyperedges,
		HOCCounts:     s.HOCCounts,
		SkippedOrders: s.SkippedOrders,
		OutbreakSize:  s.OutbreakSize,
		History:       s.History,
	}
}
