package core

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/signalsfoundry/hoc-contagion/hypergraph"
	"github.com/signalsfoundry/hoc-contagion/model"
)

// SimulationEngine wires the pipeline Hypergraph → HOC map → Simulator.
// The HOC map is computed once on construction and never modified.
type SimulationEngine struct {
	Hypergraph *hypergraph.Hypergraph
	HOCs       HOCMap
	Simulator  *Simulator

	stepListeners []func(int, model.StatusCounts)
}

// NewSimulationEngine identifies the HOCs of h with hocEngine (a default
// engine when nil) and builds a simulator over them.
func NewSimulationEngine(ctx context.Context, h *hypergraph.Hypergraph, hocEngine *HOCEngine, cfg ContagionConfig, rng *rand.Rand, opts ...SimulatorOption) (*SimulationEngine, error) {
	if hocEngine == nil {
		hocEngine = NewHOCEngine()
	}
	hocs, err := hocEngine.Identify(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("identify HOCs: %w", err)
	}
	sim, err := NewSimulator(h, hocs, cfg, rng, opts...)
	if err != nil {
		return nil, err
	}
	se := &SimulationEngine{
		Hypergraph: h,
		HOCs:       hocs,
		Simulator:  sim,
	}
	sim.OnStep(se.notify)
	return se, nil
}

// RegisterStepListener adds a callback invoked after every step of Run.
func (se *SimulationEngine) RegisterStepListener(fn func(step int, counts model.StatusCounts)) {
	se.stepListeners = append(se.stepListeners, fn)
}

// Run advances the simulator by steps steps and returns their snapshots.
func (se *SimulationEngine) Run(ctx context.Context, steps int) ([]model.StatusCounts, error) {
	return se.Simulator.Simulate(ctx, steps)
}

func (se *SimulationEngine) notify(step int, counts model.StatusCounts) {
	for _, fn := range se.stepListeners {
		fn(step, counts)
	}
}
