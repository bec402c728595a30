package core

import (
	"context"
	"sort"
	"time"

	"github.com/signalsfoundry/hoc-contagion/hypergraph"
	"github.com/signalsfoundry/hoc-contagion/internal/logging"
	"github.com/signalsfoundry/hoc-contagion/model"
	"go.opentelemetry.io/otel/attribute"
)

// MinOrder is the lowest overlap order considered by the HOC engine.
const MinOrder = 2

// Adjacency is the hyperedge adjacency graph for one overlap order. Keys are
// hyperedge identities; each value is the set of m-adjacent keys. Edges are
// stored in both directions. Hyperedges that were inserted twice with the
// same content are adjacent to themselves.
type Adjacency map[model.HyperedgeKey]map[model.HyperedgeKey]struct{}

func (a Adjacency) addEdge(x, y model.HyperedgeKey) {
	if a[x] == nil {
		a[x] = make(map[model.HyperedgeKey]struct{})
	}
	if a[y] == nil {
		a[y] = make(map[model.HyperedgeKey]struct{})
	}
	a[x][y] = struct{}{}
	a[y][x] = struct{}{}
}

// HasEdge reports whether x and y are adjacent.
func (a Adjacency) HasEdge(x, y model.HyperedgeKey) bool {
	_, ok := a[x][y]
	return ok
}

// Neighbors returns the sorted neighbours of k.
func (a Adjacency) Neighbors(k model.HyperedgeKey) []model.HyperedgeKey {
	return sortedKeys(a[k])
}

// Keys returns every hyperedge key with at least one edge, sorted.
func (a Adjacency) Keys() []model.HyperedgeKey {
	out := make([]model.HyperedgeKey, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EdgeCount returns the number of undirected edges, self-loops included.
func (a Adjacency) EdgeCount() int {
	directed, loops := 0, 0
	for k, nbrs := range a {
		directed += len(nbrs)
		if _, ok := nbrs[k]; ok {
			loops++
		}
	}
	return (directed-loops)/2 + loops
}

// Component is one high-order component: a sorted set of hyperedge keys.
type Component []model.HyperedgeKey

// Contains reports whether k belongs to the component.
func (c Component) Contains(k model.HyperedgeKey) bool {
	i := sort.Search(len(c), func(i int) bool { return c[i] >= k })
	return i < len(c) && c[i] == k
}

// HOCMap maps an overlap order to the components found at that order.
type HOCMap map[int][]Component

// Orders returns the orders present, ascending.
func (m HOCMap) Orders() []int {
	out := make([]int, 0, len(m))
	for o := range m {
		out = append(out, o)
	}
	sort.Ints(out)
	return out
}

// MaxOrder returns the highest order present, or 0 for an empty map.
func (m HOCMap) MaxOrder() int {
	highest := 0
	for o := range m {
		if o > highest {
			highest = o
		}
	}
	return highest
}

// ComponentCounts returns the number of components per order.
func (m HOCMap) ComponentCounts() map[int]int {
	out := make(map[int]int, len(m))
	for o, comps := range m {
		out[o] = len(comps)
	}
	return out
}

// SharedNodeCount returns the number of nodes two hyperedges have in common.
func SharedNodeCount(a, b model.Hyperedge) int {
	return model.SharedNodeCount(a, b)
}

// pairOverlap is an unordered pair of hyperedge indices (i < j) sharing at
// least one node.
type pairOverlap struct {
	i, j   int
	shared int
}

// pairOverlaps enumerates every pair of hyperedges that co-occur under some
// node. A pair sharing k nodes is seen once per shared node, so the number
// of sightings is exactly its shared-node count.
func pairOverlaps(edges []model.Hyperedge) []pairOverlap {
	incidence := make(map[model.NodeID][]int)
	for idx, e := range edges {
		for _, n := range e {
			incidence[n] = append(incidence[n], idx)
		}
	}

	counts := make(map[[2]int]int)
	for _, idxs := range incidence {
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				counts[[2]int{idxs[a], idxs[b]}]++
			}
		}
	}

	out := make([]pairOverlap, 0, len(counts))
	for p, c := range counts {
		out = append(out, pairOverlap{i: p[0], j: p[1], shared: c})
	}
	sort.Slice(out, func(x, y int) bool {
		if out[x].i != out[y].i {
			return out[x].i < out[y].i
		}
		return out[x].j < out[y].j
	})
	return out
}

func adjacencyFromOverlaps(edges []model.Hyperedge, overlaps []pairOverlap, m int) Adjacency {
	adj := make(Adjacency)
	for _, p := range overlaps {
		if p.shared >= m {
			adj.addEdge(edges[p.i].Key(), edges[p.j].Key())
		}
	}
	return adj
}

// BuildAdjacency returns the m-adjacency graph of h: two hyperedges are
// joined when they share at least m nodes.
func BuildAdjacency(h *hypergraph.Hypergraph, m int) Adjacency {
	edges := h.Hyperedges()
	return adjacencyFromOverlaps(edges, pairOverlaps(edges), m)
}

// ExtractComponents returns the connected components of adj. Traversal uses
// an explicit stack, so component size is not bounded by call depth. Keys
// with no edges never appear. Components come out ordered by their smallest
// key and each component is sorted.
func ExtractComponents(adj Adjacency) []Component {
	visited := make(map[model.HyperedgeKey]struct{}, len(adj))
	var comps []Component

	for _, start := range adj.Keys() {
		if _, seen := visited[start]; seen {
			continue
		}
		visited[start] = struct{}{}
		stack := []model.HyperedgeKey{start}
		var comp Component
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, k)
			for nbr := range adj[k] {
				if _, seen := visited[nbr]; seen {
					continue
				}
				visited[nbr] = struct{}{}
				stack = append(stack, nbr)
			}
		}
		sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
		comps = append(comps, comp)
	}
	return comps
}

// HOCMetricsRecorder receives the outcome of an identification pass.
type HOCMetricsRecorder interface {
	ObserveIdentification(d time.Duration, componentsPerOrder map[int]int)
}

// HOCEngine discovers high-order components for increasing overlap orders.
type HOCEngine struct {
	log     logging.Logger
	metrics HOCMetricsRecorder
}

// HOCEngineOption customises HOCEngine construction.
type HOCEngineOption func(*HOCEngine)

// WithHOCLogger sets the engine's logger.
func WithHOCLogger(l logging.Logger) HOCEngineOption {
	return func(e *HOCEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithHOCMetrics attaches a metrics recorder.
func WithHOCMetrics(m HOCMetricsRecorder) HOCEngineOption {
	return func(e *HOCEngine) {
		e.metrics = m
	}
}

// NewHOCEngine constructs an engine.
func NewHOCEngine(opts ...HOCEngineOption) *HOCEngine {
	e := &HOCEngine{log: logging.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Identify computes the HOC map of h. Starting at order 2 it builds the
// adjacency graph and extracts components, stopping at the first order that
// yields none. Adjacency shrinks monotonically with the order, so the loop
// ends once the order exceeds the largest pairwise overlap. An empty
// hypergraph, or one without any pair sharing two nodes, gives an empty map.
//
// The only error is cancellation of ctx between orders.
func (e *HOCEngine) Identify(ctx context.Context, h *hypergraph.Hypergraph) (HOCMap, error) {
	ctx, span := startSpan(ctx, "HOC/Identify",
		attribute.Int("hypergraph.hyperedges", h.NumHyperedges()),
		attribute.Int("hypergraph.nodes", h.NumNodes()),
	)
	defer span.End()

	start := time.Now()
	edges := h.Hyperedges()
	overlaps := pairOverlaps(edges)

	result := make(HOCMap)
	for m := MinOrder; ; m++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		_, orderSpan := startSpan(ctx, "HOC/Order", attribute.Int("hoc.order", m))
		adj := adjacencyFromOverlaps(edges, overlaps, m)
		comps := ExtractComponents(adj)
		orderSpan.SetAttributes(attribute.Int("hoc.components", len(comps)))
		orderSpan.End()
		if len(comps) == 0 {
			break
		}
		result[m] = comps
		e.log.Debug(ctx, "identified high-order components",
			logging.Int("order", m),
			logging.Int("components", len(comps)),
			logging.Int("adjacency_edges", adj.EdgeCount()),
		)
	}

	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("hoc.max_order", result.MaxOrder()))
	e.log.Info(ctx, "HOC identification complete",
		logging.Int("orders", len(result)),
		logging.Int("max_order", result.MaxOrder()),
		logging.String("duration", elapsed.String()),
	)
	if e.metrics != nil {
		e.metrics.ObserveIdentification(elapsed, result.ComponentCounts())
	}
	return result, nil
}

// IdentifyHOCs runs a default engine over h. It never fails: Identify only
// returns an error when its context is cancelled, and the background context
// never is. Use HOCEngine.Identify to bound the work with a context.
func IdentifyHOCs(h *hypergraph.Hypergraph) HOCMap {
	hocs, _ := NewHOCEngine().Identify(context.Background(), h)
	return hocs
}

func sortedKeys(set map[model.HyperedgeKey]struct{}) []model.HyperedgeKey {
	out := make([]model.HyperedgeKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
