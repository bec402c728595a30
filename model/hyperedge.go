package model

import (
	"sort"
	"strings"
)

// NodeID identifies a node of a hypergraph. Dataset loaders and the random
// generator use decimal integers; hand-built hypergraphs may use any label.
type NodeID string

// keySeparator joins node IDs inside a HyperedgeKey. Occurrences of
// keySeparator or keyEscape inside an ID are prefixed with keyEscape, so
// distinct hyperedges never share a key.
const (
	keySeparator = '\x1f'
	keyEscape    = '\x1e'
)

// HyperedgeKey is the sorted-tuple identity of a hyperedge. Two hyperedges
// with the same node content share a key.
type HyperedgeKey string

// String renders the key as a readable node list, e.g. "{A,B,C}".
func (k HyperedgeKey) String() string {
	nodes := k.Nodes()
	parts := make([]string, len(nodes))
	for i, id := range nodes {
		parts[i] = string(id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Nodes splits the key back into its node IDs.
func (k HyperedgeKey) Nodes() []NodeID {
	if k == "" {
		return nil
	}
	var (
		out []NodeID
		cur []byte
	)
	for i := 0; i < len(k); i++ {
		switch c := k[i]; {
		case c == keyEscape && i+1 < len(k):
			i++
			cur = append(cur, k[i])
		case c == keySeparator:
			out = append(out, NodeID(cur))
			cur = cur[:0]
		default:
			cur = append(cur, c)
		}
	}
	return append(out, NodeID(cur))
}

// Hyperedge is an unordered set of nodes stored in canonical form: sorted
// ascending with duplicates removed. Use NewHyperedge to build one.
type Hyperedge []NodeID

// NewHyperedge canonicalises ids into a Hyperedge.
func NewHyperedge(ids ...NodeID) Hyperedge {
	out := make(Hyperedge, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	w := 0
	for i, id := range out {
		if i > 0 && id == out[w-1] {
			continue
		}
		out[w] = id
		w++
	}
	return out[:w]
}

// Key returns the sorted-tuple identity of the hyperedge.
func (e Hyperedge) Key() HyperedgeKey {
	if len(e) == 0 {
		return ""
	}
	var b strings.Builder
	for i, id := range e {
		if i > 0 {
			b.WriteByte(keySeparator)
		}
		for j := 0; j < len(id); j++ {
			if c := id[j]; c == keySeparator || c == keyEscape {
				b.WriteByte(keyEscape)
			}
			b.WriteByte(id[j])
		}
	}
	return HyperedgeKey(b.String())
}

// Contains reports whether id is a member of e.
func (e Hyperedge) Contains(id NodeID) bool {
	i := sort.Search(len(e), func(i int) bool { return e[i] >= id })
	return i < len(e) && e[i] == id
}

// SharedNodeCount returns |a ∩ b|. Both hyperedges must be canonical.
func SharedNodeCount(a, b Hyperedge) int {
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
