package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/signalsfoundry/hoc-contagion/hypergraph"
	"github.com/signalsfoundry/hoc-contagion/internal/logging"
	"github.com/signalsfoundry/hoc-contagion/model"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrInvalidRate      = errors.New("transmission or recovery rate outside [0,1]")
	ErrUnknownModel     = errors.New("unknown contagion model")
	ErrUnknownHyperedge = errors.New("HOC references a hyperedge absent from the hypergraph")
	ErrUnknownNode      = errors.New("node not in hypergraph")
	ErrNilRand          = errors.New("nil random source")
)

// Resolution decides how several infection attempts on one susceptible node
// within a single step are combined.
type Resolution int

const (
	// ResolveCombined collects every attempt on a node and infects it once
	// with probability 1 − ∏(1 − p_i). The outcome does not depend on the
	// order in which hyperedges are visited.
	ResolveCombined Resolution = iota
	// ResolveSequential draws each attempt as it is visited; the first
	// success infects the node and later attempts on it are skipped.
	ResolveSequential
)

func (r Resolution) String() string {
	switch r {
	case ResolveCombined:
		return "combined"
	case ResolveSequential:
		return "sequential"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

// ParseResolution accepts "combined" or "sequential"; empty means combined.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "", "combined":
		return ResolveCombined, nil
	case "sequential":
		return ResolveSequential, nil
	default:
		return 0, fmt.Errorf("unknown infection resolution %q (valid: combined, sequential)", s)
	}
}

// ContagionConfig holds the rates of one simulation run.
type ContagionConfig struct {
	Model model.ModelKind
	// Beta is the first-order (within-hyperedge) infection probability.
	Beta float64
	// Gamma is the per-step recovery probability of an infected node.
	Gamma float64
	// BetaHighOrder[i] is the infection probability for overlap order i+2.
	// Orders past the end of the slice are skipped with a warning, so an
	// empty slice disables higher-order spread and warns once per HOC order.
	BetaHighOrder []float64
	Resolution    Resolution
}

// Validate checks model kind and rate ranges.
func (c ContagionConfig) Validate() error {
	if c.Model != model.SIR && c.Model != model.SIS {
		return fmt.Errorf("%w: %q", ErrUnknownModel, c.Model)
	}
	if !isProbability(c.Beta) {
		return fmt.Errorf("%w: beta=%v", ErrInvalidRate, c.Beta)
	}
	if !isProbability(c.Gamma) {
		return fmt.Errorf("%w: gamma=%v", ErrInvalidRate, c.Gamma)
	}
	for i, b := range c.BetaHighOrder {
		if !isProbability(b) {
			return fmt.Errorf("%w: beta_high_order[%d]=%v", ErrInvalidRate, i, b)
		}
	}
	if c.Resolution != ResolveCombined && c.Resolution != ResolveSequential {
		return fmt.Errorf("unknown infection resolution %d", c.Resolution)
	}
	return nil
}

// RateForOrder returns the higher-order infection probability for order.
func (c ContagionConfig) RateForOrder(order int) (float64, bool) {
	i := order - MinOrder
	if i < 0 || i >= len(c.BetaHighOrder) {
		return 0, false
	}
	return c.BetaHighOrder[i], true
}

func isProbability(p float64) bool { return p >= 0 && p <= 1 }

// SimulationMetricsRecorder receives per-step counts and configuration gaps.
type SimulationMetricsRecorder interface {
	ObserveStep(counts model.StatusCounts)
	IncSkippedOrder(order int)
}

// hocComponent is a HOC resolved to node indices. neighbors[i] lists the
// other members sharing at least one node with member i.
type hocComponent struct {
	members   [][]int
	neighbors [][]int
}

type hocOrder struct {
	order      int
	beta       float64
	components []hocComponent
}

// Simulator runs the discrete-time SIR/SIS process over a hypergraph and its
// HOC map. It is not safe for concurrent use; independent simulators share
// nothing mutable.
type Simulator struct {
	cfg     ContagionConfig
	rng     *rand.Rand
	log     logging.Logger
	metrics SimulationMetricsRecorder

	nodes  []model.NodeID
	index  map[model.NodeID]int
	edges  [][]int
	orders []hocOrder
	// skipped lists orders without a configured rate, ascending.
	skipped []int

	status []model.Status
	next   []model.Status

	// per-step scratch for ResolveCombined
	escape  []float64
	pending []bool
	touched []int

	steps     int
	history   []model.StatusCounts
	listeners []func(step int, counts model.StatusCounts)

	initial []model.NodeID
}

// SimulatorOption customises Simulator construction.
type SimulatorOption func(*Simulator)

// WithSimulatorLogger sets the simulator's logger.
func WithSimulatorLogger(l logging.Logger) SimulatorOption {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSimulatorMetrics attaches a metrics recorder.
func WithSimulatorMetrics(m SimulationMetricsRecorder) SimulatorOption {
	return func(s *Simulator) {
		s.metrics = m
	}
}

// WithInitialInfected replaces the random seed hyperedge with the given
// nodes.
func WithInitialInfected(ids ...model.NodeID) SimulatorOption {
	return func(s *Simulator) {
		s.initial = append([]model.NodeID(nil), ids...)
	}
}

// NewSimulator prepares a simulator. Every node starts susceptible except
// the members of one hyperedge drawn uniformly from rng (or the nodes given
// via WithInitialInfected). Orders in hocs without a rate in
// cfg.BetaHighOrder are logged as warnings and skipped for the whole run.
// The hypergraph and HOC map are only read during construction.
func NewSimulator(h *hypergraph.Hypergraph, hocs HOCMap, cfg ContagionConfig, rng *rand.Rand, opts ...SimulatorOption) (*Simulator, error) {
	if h == nil {
		return nil, fmt.Errorf("NewSimulator: hypergraph is nil")
	}
	if rng == nil {
		return nil, fmt.Errorf("NewSimulator: %w", ErrNilRand)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewSimulator: %w", err)
	}

	s := &Simulator{
		cfg: cfg,
		rng: rng,
		log: logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.nodes = h.Nodes()
	s.index = make(map[model.NodeID]int, len(s.nodes))
	for i, id := range s.nodes {
		s.index[id] = i
	}

	hyperedges := h.Hyperedges()
	s.edges = make([][]int, len(hyperedges))
	byKey := make(map[model.HyperedgeKey][]int, len(hyperedges))
	for i, e := range hyperedges {
		members := make([]int, len(e))
		for j, id := range e {
			members[j] = s.index[id]
		}
		s.edges[i] = members
		if _, ok := byKey[e.Key()]; !ok {
			byKey[e.Key()] = members
		}
	}

	if err := s.resolveOrders(hocs, byKey); err != nil {
		return nil, fmt.Errorf("NewSimulator: %w", err)
	}

	n := len(s.nodes)
	s.status = make([]model.Status, n)
	s.next = make([]model.Status, n)
	s.escape = make([]float64, n)
	s.pending = make([]bool, n)
	for i := range s.status {
		s.status[i] = model.Susceptible
	}
	if err := s.seed(); err != nil {
		return nil, fmt.Errorf("NewSimulator: %w", err)
	}
	return s, nil
}

func (s *Simulator) resolveOrders(hocs HOCMap, byKey map[model.HyperedgeKey][]int) error {
	for _, order := range hocs.Orders() {
		beta, ok := s.cfg.RateForOrder(order)
		if !ok {
			s.skipped = append(s.skipped, order)
			s.log.Warn(context.Background(), "no higher-order transmission rate for order; skipping",
				logging.Int("order", order),
				logging.Int("rates_configured", len(s.cfg.BetaHighOrder)),
			)
			if s.metrics != nil {
				s.metrics.IncSkippedOrder(order)
			}
			continue
		}

		ho := hocOrder{order: order, beta: beta}
		for _, comp := range hocs[order] {
			hc := hocComponent{members: make([][]int, len(comp))}
			owners := make(map[int][]int)
			for i, key := range comp {
				members, ok := byKey[key]
				if !ok {
					return fmt.Errorf("%w: order %d key %s", ErrUnknownHyperedge, order, key)
				}
				hc.members[i] = members
				for _, n := range members {
					owners[n] = append(owners[n], i)
				}
			}
			hc.neighbors = make([][]int, len(comp))
			for i, members := range hc.members {
				seen := make(map[int]struct{})
				for _, n := range members {
					for _, j := range owners[n] {
						if j != i {
							seen[j] = struct{}{}
						}
					}
				}
				nbrs := make([]int, 0, len(seen))
				for j := range seen {
					nbrs = append(nbrs, j)
				}
				sort.Ints(nbrs)
				hc.neighbors[i] = nbrs
			}
			ho.components = append(ho.components, hc)
		}
		s.orders = append(s.orders, ho)
	}
	return nil
}

func (s *Simulator) seed() error {
	if len(s.initial) > 0 {
		for _, id := range s.initial {
			i, ok := s.index[id]
			if !ok {
				return fmt.Errorf("%w: initial infected %q", ErrUnknownNode, id)
			}
			s.status[i] = model.Infected
		}
		return nil
	}
	if len(s.edges) == 0 {
		return nil
	}
	for _, i := range s.edges[s.rng.IntN(len(s.edges))] {
		s.status[i] = model.Infected
	}
	return nil
}

// OnStep registers a callback invoked by Simulate after every step.
func (s *Simulator) OnStep(fn func(step int, counts model.StatusCounts)) {
	s.listeners = append(s.listeners, fn)
}

// SkippedOrders returns the HOC orders ignored for lack of a rate.
func (s *Simulator) SkippedOrders() []int {
	return append([]int(nil), s.skipped...)
}

// StepsTaken returns how many steps have been applied.
func (s *Simulator) StepsTaken() int { return s.steps }

// Status returns the current status of id.
func (s *Simulator) Status(id model.NodeID) (model.Status, bool) {
	i, ok := s.index[id]
	if !ok {
		return "", false
	}
	return s.status[i], true
}

// Statuses returns a copy of the current status of every node.
func (s *Simulator) Statuses() map[model.NodeID]model.Status {
	out := make(map[model.NodeID]model.Status, len(s.nodes))
	for i, id := range s.nodes {
		out[id] = s.status[i]
	}
	return out
}

// StatusCounts returns how many nodes hold each status. Statuses held by no
// node are absent.
func (s *Simulator) StatusCounts() model.StatusCounts {
	counts := make(model.StatusCounts, 3)
	for _, st := range s.status {
		counts[st]++
	}
	return counts
}

// History returns the snapshots recorded by Simulate so far.
func (s *Simulator) History() []model.StatusCounts {
	return append([]model.StatusCounts(nil), s.history...)
}

// Step advances the process by one synchronous time unit. Every decision in
// the step reads the status committed by the previous step; writes go to a
// separate buffer that is committed at the end.
func (s *Simulator) Step() {
	copy(s.next, s.status)
	s.touched = s.touched[:0]

	// First-order spread within each hyperedge.
	for _, members := range s.edges {
		if !s.anyInfected(members) {
			continue
		}
		for _, n := range members {
			s.attempt(n, s.cfg.Beta)
		}
	}

	// Higher-order spread between overlapping hyperedges of the same HOC.
	for _, ho := range s.orders {
		for _, comp := range ho.components {
			for i, members := range comp.members {
				if !s.anyInfected(members) {
					continue
				}
				for _, j := range comp.neighbors[i] {
					for _, n := range comp.members[j] {
						s.attempt(n, ho.beta)
					}
				}
			}
		}
	}

	if s.cfg.Resolution == ResolveCombined {
		for _, n := range s.touched {
			if p := 1 - s.escape[n]; p > 0 && s.rng.Float64() < p {
				s.next[n] = model.Infected
			}
			s.pending[n] = false
		}
	}

	// Recovery reads only the previous status, so nodes infected in this
	// step cannot recover in it.
	to := model.Recovered
	if s.cfg.Model == model.SIS {
		to = model.Susceptible
	}
	for i, st := range s.status {
		if st == model.Infected && s.rng.Float64() < s.cfg.Gamma {
			s.next[i] = to
		}
	}

	s.status, s.next = s.next, s.status
	s.steps++
}

// attempt records one transmission attempt with probability p on node n.
// Only nodes susceptible in the previous status are eligible.
func (s *Simulator) attempt(n int, p float64) {
	if s.status[n] != model.Susceptible {
		return
	}
	if s.cfg.Resolution == ResolveSequential {
		if s.next[n] == model.Infected {
			return
		}
		if s.rng.Float64() < p {
			s.next[n] = model.Infected
		}
		return
	}
	if !s.pending[n] {
		s.pending[n] = true
		s.escape[n] = 1
		s.touched = append(s.touched, n)
	}
	s.escape[n] *= 1 - p
}

func (s *Simulator) anyInfected(members []int) bool {
	for _, n := range members {
		if s.status[n] == model.Infected {
			return true
		}
	}
	return false
}

// Simulate runs exactly steps steps, recording a status-count snapshot after
// each one, and returns the snapshots of this call in order. It stops early
// only if ctx is cancelled.
func (s *Simulator) Simulate(ctx context.Context, steps int) ([]model.StatusCounts, error) {
	if steps < 0 {
		return nil, fmt.Errorf("Simulate: negative step count %d", steps)
	}
	ctx, span := startSpan(ctx, "Contagion/Simulate",
		attribute.Int("simulation.steps", steps),
		attribute.String("simulation.model", string(s.cfg.Model)),
		attribute.Int("simulation.nodes", len(s.nodes)),
	)
	defer span.End()

	out := make([]model.StatusCounts, 0, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return out, err
		}
		s.Step()
		counts := s.StatusCounts()
		s.history = append(s.history, counts)
		out = append(out, counts)
		if s.metrics != nil {
			s.metrics.ObserveStep(counts)
		}
		for _, fn := range s.listeners {
			fn(s.steps, counts)
		}
	}

	final := model.StatusCounts{}
	if len(out) > 0 {
		final = out[len(out)-1]
	}
	s.log.Debug(ctx, "simulation finished",
		logging.Int("steps", steps),
		logging.String("final", final.String()),
	)
	return out, nil
}

// OutbreakSize returns (I + R) / total for a snapshot, or 0 when empty.
// Under SIS there are no recovered nodes, so this is the infected fraction.
func OutbreakSize(c model.StatusCounts) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Get(model.Infected)+c.Get(model.Recovered)) / float64(total)
}
