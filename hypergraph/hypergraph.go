// Package hypergraph holds the node set and ordered hyperedge list that the
// HOC engine and contagion simulator read from.
package hypergraph

import (
	"sort"
	"sync"

	"github.com/signalsfoundry/hoc-contagion/model"
)

// Hypergraph is an in-memory, thread-safe container of nodes and hyperedges.
// Hyperedges keep their insertion order and are not deduplicated.
type Hypergraph struct {
	mu sync.RWMutex

	nodes      map[model.NodeID]struct{}
	hyperedges []model.Hyperedge
}

// New constructs an empty hypergraph.
func New() *Hypergraph {
	return &Hypergraph{
		nodes: make(map[model.NodeID]struct{}),
	}
}

// FromHyperedges builds a hypergraph by appending each hyperedge in order.
func FromHyperedges(edges ...[]model.NodeID) *Hypergraph {
	h := New()
	for _, e := range edges {
		h.AddHyperedge(e...)
	}
	return h
}

// AddNode inserts an isolated node. Adding an existing node is a no-op.
func (h *Hypergraph) AddNode(id model.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes[id] = struct{}{}
}

// AddHyperedge appends a hyperedge and adds its members to the node set.
// It returns the hyperedge's index. Identical hyperedges may be added more
// than once.
func (h *Hypergraph) AddHyperedge(ids ...model.NodeID) int {
	edge := model.NewHyperedge(ids...)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range edge {
		h.nodes[id] = struct{}{}
	}
	h.hyperedges = append(h.hyperedges, edge)
	return len(h.hyperedges) - 1
}

// Nodes returns a sorted snapshot of the node set.
func (h *Hypergraph) Nodes() []model.NodeID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	res := make([]model.NodeID, 0, len(h.nodes))
	for id := range h.nodes {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// HasNode reports whether id is in the node set.
func (h *Hypergraph) HasNode(id model.NodeID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.nodes[id]
	return ok
}

// Hyperedges returns a snapshot of the hyperedges in insertion order. The
// hyperedges themselves are shared and must be treated as read-only.
func (h *Hypergraph) Hyperedges() []model.Hyperedge {
	h.mu.RLock()
	defer h.mu.RUnlock()

	res := make([]model.Hyperedge, len(h.hyperedges))
	copy(res, h.hyperedges)
	return res
}

// NumNodes returns the size of the node set.
func (h *Hypergraph) NumNodes() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// NumHyperedges returns the number of hyperedges, duplicates included.
func (h *Hypergraph) NumHyperedges() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hyperedges)
}

// MeanDegree returns the average number of hyperedges a node belongs to.
func (h *Hypergraph) MeanDegree() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.nodes) == 0 {
		return 0
	}
	incidences := 0
	for _, e := range h.hyperedges {
		incidences += len(e)
	}
	return float64(incidences) / float64(len(h.nodes))
}
