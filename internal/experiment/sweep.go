package experiment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/hoc-contagion/core"
	"github.com/signalsfoundry/hoc-contagion/internal/config"
	"github.com/signalsfoundry/hoc-contagion/internal/logging"
	"github.com/signalsfoundry/hoc-contagion/internal/results"
)

// SweepPoint is the outcome of one λ.
type SweepPoint struct {
	Lambda        float64
	Seed          uint64
	BetaHighOrder []float64
	Summary       *Summary
}

// SweepResult collects the points of a sweep in the order of
// cfg.Sweep.LambdaValues.
type SweepResult struct {
	SweepID string
	Nodes   int
	HOCs    map[int]int
	Points  []SweepPoint
}

// SweepRates returns the higher-order rates for λ: λ·gamma repeated for
// orders orders.
func SweepRates(lambda, gamma float64, orders int) []float64 {
	rates := make([]float64, orders)
	for i := range rates {
		rates[i] = lambda * gamma
	}
	return rates
}

// Sweep loads the hypergraph and identifies its HOCs once, then simulates
// every λ in cfg.Sweep.LambdaValues with first-order rate
// cfg.Simulation.Beta, recovery cfg.Sweep.Gamma and higher-order rates
// SweepRates(λ, cfg.Sweep.Gamma, cfg.Sweep.Orders). Each point uses its own
// seed derived from cfg.Simulation.Seed, so results do not depend on
// cfg.Sweep.Parallelism.
func (r *Runner) Sweep(ctx context.Context, cfg *config.Config) (result *SweepResult, err error) {
	sweepID := uuid.NewString()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Experiment/Sweep")
	span.SetAttributes(
		attribute.String("sweep.id", sweepID),
		attribute.Int("sweep.points", len(cfg.Sweep.LambdaValues)),
	)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		r.metrics.IncRun(results.KindSweep, err)
	}()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := cfg.ContagionConfig()
	if err != nil {
		return nil, err
	}
	base.Gamma = cfg.Sweep.Gamma

	h, hocs, err := r.Identify(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log := r.log.With(logging.String("sweep_id", sweepID))
	points := make([]SweepPoint, len(cfg.Sweep.LambdaValues))

	g, gctx := errgroup.WithContext(ctx)
	limit := cfg.Sweep.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, lambda := range cfg.Sweep.LambdaValues {
		g.Go(func() error {
			cc := base
			cc.BetaHighOrder = SweepRates(lambda, cfg.Sweep.Gamma, cfg.Sweep.Orders)
			seed := DeriveSeed(cfg.Simulation.Seed, "sweep", i)
			runID := uuid.NewString()
			plog := log.With(logging.String("run_id", runID), logging.Float64("lambda", lambda))

			opts := r.simulatorOptions(plog)
			if ids := cfg.InitialInfected(); len(ids) > 0 {
				opts = append(opts, core.WithInitialInfected(ids...))
			}
			sim, err := core.NewSimulator(h, hocs, cc, NewRand(seed), opts...)
			if err != nil {
				return fmt.Errorf("lambda=%v: %w", lambda, err)
			}
			history, err := sim.Simulate(gctx, cfg.Simulation.Steps)
			if err != nil {
				return fmt.Errorf("lambda=%v: %w", lambda, err)
			}

			summary := summarize(runID, h, hocs, sim, history)
			points[i] = SweepPoint{
				Lambda:        lambda,
				Seed:          seed,
				BetaHighOrder: cc.BetaHighOrder,
				Summary:       summary,
			}
			plog.Info(gctx, "sweep point complete", logging.Float64("outbreak_size", summary.OutbreakSize))

			if r.store != nil {
				rec := runRecord(summary, cfg, cc)
				rec.Kind = results.KindSweep
				rec.SweepID = sweepID
				rec.Lambda = lambda
				rec.Seed = seed
				if err := r.store.SaveRun(gctx, rec); err != nil {
					return fmt.Errorf("save sweep point lambda=%v: %w", lambda, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &SweepResult{
		SweepID: sweepID,
		Nodes:   h.NumNodes(),
		HOCs:    hocs.ComponentCounts(),
		Points:  points,
	}, nil
}
