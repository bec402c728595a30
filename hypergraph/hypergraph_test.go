package hypergraph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/hoc-contagion/model"
)

func TestAddHyperedgeUpdatesNodes(t *testing.T) {
	h := New()
	h.AddHyperedge("B", "A")
	h.AddHyperedge("C", "B")

	nodes := h.Nodes()
	want := []model.NodeID{"A", "B", "C"}
	if len(nodes) != len(want) {
		t.Fatalf("Nodes() = %v, want %v", nodes, want)
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Fatalf("Nodes() = %v, want %v", nodes, want)
		}
	}
	if got := h.NumHyperedges(); got != 2 {
		t.Fatalf("NumHyperedges() = %d, want 2", got)
	}
}

func TestAddHyperedgeKeepsDuplicates(t *testing.T) {
	h := FromHyperedges(
		[]model.NodeID{"A", "B"},
		[]model.NodeID{"B", "A"},
	)
	edges := h.Hyperedges()
	if len(edges) != 2 {
		t.Fatalf("Hyperedges() len = %d, want 2", len(edges))
	}
	if edges[0].Key() != edges[1].Key() {
		t.Fatalf("expected duplicate hyperedges to share a key")
	}
}

func TestHyperedgesSnapshotIsIndependent(t *testing.T) {
	h := FromHyperedges([]model.NodeID{"A", "B"})
	snap := h.Hyperedges()
	h.AddHyperedge("C", "D")
	if len(snap) != 1 {
		t.Fatalf("snapshot mutated: len = %d, want 1", len(snap))
	}
}

func TestAddNodeIsolated(t *testing.T) {
	h := New()
	h.AddNode("Z")
	h.AddNode("Z")
	if !h.HasNode("Z") || h.NumNodes() != 1 {
		t.Fatalf("AddNode did not register isolated node once")
	}
	if h.MeanDegree() != 0 {
		t.Fatalf("MeanDegree() = %v, want 0", h.MeanDegree())
	}
}

func TestMeanDegree(t *testing.T) {
	h := FromHyperedges(
		[]model.NodeID{"A", "B", "C"},
		[]model.NodeID{"C", "D"},
	)
	// 5 incidences over 4 nodes.
	if got := h.MeanDegree(); got != 1.25 {
		t.Fatalf("MeanDegree() = %v, want 1.25", got)
	}
}

func TestAddHyperedgeReturnsInsertionIndex(t *testing.T) {
	h := New()
	h.AddNode("Q")
	for want, ids := range [][]model.NodeID{{"A", "B"}, {"C"}, {"B", "A"}} {
		if got := h.AddHyperedge(ids...); got != want {
			t.Fatalf("AddHyperedge(%v) = %d, want %d", ids, got, want)
		}
	}
	edges := h.Hyperedges()
	if edges[1].Key() != model.NewHyperedge("C").Key() {
		t.Fatalf("Hyperedges()[1] = %v, want [C]", edges[1])
	}
	if got := h.NumNodes(); got != 4 {
		t.Fatalf("NumNodes() = %d, want 4", got)
	}
}

func TestConcurrentAdds(t *testing.T) {
	h := New()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 50 {
				h.AddHyperedge(model.NodeID(fmt.Sprint(i)), model.NodeID(fmt.Sprintf("%d-%d", i, j)))
			}
		}(i)
	}
	wg.Wait()
	if got := h.NumHyperedges(); got != 400 {
		t.Fatalf("NumHyperedges() = %d, want 400", got)
	}
}
