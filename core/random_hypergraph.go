package core

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/signalsfoundry/hoc-contagion/hypergraph"
	"github.com/signalsfoundry/hoc-contagion/model"
)

// ErrTargetUnreachable is returned when the generator exhausts its draw
// budget before reaching the requested pool size or mean degree.
var ErrTargetUnreachable = errors.New("random hypergraph target not reached within draw budget")

const (
	// DefaultMeanGroupSize is the Poisson mean of subgroup sizes.
	DefaultMeanGroupSize = 2.0
	// DefaultMaxDraws bounds the sampling loops when MaxDraws is zero.
	DefaultMaxDraws = 10_000_000
)

// RandomHypergraphGenerator samples hyperedges over nodes 0..N-1 until the
// mean node degree reaches TargetK. Each draw either reuses a subgroup from
// a fixed pool of S distinct subgroups (with probability P) or samples a
// fresh subset. Group sizes are Poisson(MeanGroupSize); sizes below two are
// redrawn. A node set is never added twice.
type RandomHypergraphGenerator struct {
	N             int
	S             int
	P             float64
	TargetK       float64
	MeanGroupSize float64
	MaxDraws      int
}

// Validate checks the generator parameters.
func (g RandomHypergraphGenerator) Validate() error {
	if g.N < 2 {
		return fmt.Errorf("random hypergraph: N must be at least 2, got %d", g.N)
	}
	if g.S < 0 {
		return fmt.Errorf("random hypergraph: S must be non-negative, got %d", g.S)
	}
	if g.P < 0 || g.P > 1 {
		return fmt.Errorf("random hypergraph: p must be in [0,1], got %v", g.P)
	}
	if g.TargetK < 0 {
		return fmt.Errorf("random hypergraph: target_k must be non-negative, got %v", g.TargetK)
	}
	if g.MeanGroupSize < 0 || g.MaxDraws < 0 {
		return fmt.Errorf("random hypergraph: mean group size and max draws must be non-negative")
	}
	return nil
}

// Generate builds the hypergraph. Only nodes that end up in some hyperedge
// are part of the result; the mean degree is measured over all N nodes.
func (g RandomHypergraphGenerator) Generate(rng *rand.Rand) (*hypergraph.Hypergraph, error) {
	if rng == nil {
		return nil, fmt.Errorf("random hypergraph: %w", ErrNilRand)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	mean := g.MeanGroupSize
	if mean == 0 {
		mean = DefaultMeanGroupSize
	}
	budget := g.MaxDraws
	if budget == 0 {
		budget = DefaultMaxDraws
	}

	pool := make([]model.Hyperedge, 0, g.S)
	inPool := make(map[model.HyperedgeKey]struct{}, g.S)
	for draws := 0; len(pool) < g.S; draws++ {
		if draws >= budget {
			return nil, fmt.Errorf("%w: built %d of %d subgroups", ErrTargetUnreachable, len(pool), g.S)
		}
		e, ok := g.sampleGroup(rng, mean)
		if !ok {
			continue
		}
		if _, dup := inPool[e.Key()]; dup {
			continue
		}
		inPool[e.Key()] = struct{}{}
		pool = append(pool, e)
	}

	h := hypergraph.New()
	used := make(map[model.HyperedgeKey]struct{})
	incidences := 0
	for draws := 0; float64(incidences)/float64(g.N) < g.TargetK; draws++ {
		if draws >= budget {
			return nil, fmt.Errorf("%w: mean degree %.3f of %.3f", ErrTargetUnreachable,
				float64(incidences)/float64(g.N), g.TargetK)
		}

		var e model.Hyperedge
		if rng.Float64() < g.P && len(pool) > 0 {
			e = pool[rng.IntN(len(pool))]
		} else {
			var ok bool
			if e, ok = g.sampleGroup(rng, mean); !ok {
				continue
			}
		}
		if _, dup := used[e.Key()]; dup {
			continue
		}
		used[e.Key()] = struct{}{}
		h.AddHyperedge(e...)
		incidences += len(e)
	}
	return h, nil
}

// sampleGroup draws a Poisson size and, if it is in [2, N], that many
// distinct nodes.
func (g RandomHypergraphGenerator) sampleGroup(rng *rand.Rand, mean float64) (model.Hyperedge, bool) {
	size := poisson(rng, mean)
	if size < 2 || size > g.N {
		return nil, false
	}
	ids := make([]model.NodeID, 0, size)
	for _, n := range sampleDistinct(rng, g.N, size) {
		ids = append(ids, model.NodeID(strconv.Itoa(n)))
	}
	return model.NewHyperedge(ids...), true
}

// poisson draws from Poisson(lambda) by multiplying uniforms (Knuth). Fine
// for the small means used for group sizes.
func poisson(rng *rand.Rand, lambda float64) int {
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// sampleDistinct returns k distinct integers from [0, n) using Floyd's
// algorithm, in O(k) time regardless of n.
func sampleDistinct(rng *rand.Rand, n, k int) []int {
	chosen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rng.IntN(j + 1)
		if _, ok := chosen[t]; ok {
			t = j
		}
		chosen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
