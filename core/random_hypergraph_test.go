package core

import (
	"errors"
	"math"
	"testing"
)

func TestRandomHypergraphReachesTargetDegree(t *testing.T) {
	gen := RandomHypergraphGenerator{N: 500, S: 300, P: 0.5, TargetK: 3}
	h, err := gen.Generate(newRand(1))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	edges := h.Hyperedges()
	incidences := 0
	seen := make(map[string]bool)
	for _, e := range edges {
		if len(e) < 2 {
			t.Fatalf("hyperedge %v smaller than 2", e)
		}
		k := string(e.Key())
		if seen[k] {
			t.Fatalf("duplicate hyperedge %v", e.Key())
		}
		seen[k] = true
		incidences += len(e)
	}
	if k := float64(incidences) / float64(gen.N); k < gen.TargetK {
		t.Fatalf("mean degree = %.3f, want >= %.1f", k, gen.TargetK)
	}
}

func TestRandomHypergraphIsReproducible(t *testing.T) {
	gen := RandomHypergraphGenerator{N: 100, S: 50, P: 0.3, TargetK: 2}
	a, err := gen.Generate(newRand(9))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := gen.Generate(newRand(9))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ea, eb := a.Hyperedges(), b.Hyperedges()
	if len(ea) != len(eb) {
		t.Fatalf("hyperedge counts differ: %d vs %d", len(ea), len(eb))
	}
	for i := range ea {
		if ea[i].Key() != eb[i].Key() {
			t.Fatalf("hyperedge %d differs: %v vs %v", i, ea[i].Key(), eb[i].Key())
		}
	}
}

func TestRandomHypergraphDrawBudget(t *testing.T) {
	// Only one distinct pair exists over two nodes, so a mean degree of 5
	// cannot be reached.
	gen := RandomHypergraphGenerator{N: 2, S: 1, P: 0.5, TargetK: 5, MaxDraws: 1000}
	if _, err := gen.Generate(newRand(1)); !errors.Is(err, ErrTargetUnreachable) {
		t.Fatalf("Generate() error = %v, want ErrTargetUnreachable", err)
	}
}

func TestRandomHypergraphValidate(t *testing.T) {
	bad := []RandomHypergraphGenerator{
		{N: 1, TargetK: 1},
		{N: 10, S: -1},
		{N: 10, P: 1.5},
		{N: 10, TargetK: -1},
	}
	for _, g := range bad {
		if err := g.Validate(); err == nil {
			t.Fatalf("Validate(%+v) succeeded, want error", g)
		}
	}
	if _, err := (RandomHypergraphGenerator{N: 10}).Generate(nil); !errors.Is(err, ErrNilRand) {
		t.Fatalf("Generate(nil) error = %v, want ErrNilRand", err)
	}
}

func TestPoissonMean(t *testing.T) {
	rng := newRand(3)
	const n = 20000
	sum := 0
	for i := 0; i < n; i++ {
		sum += poisson(rng, 2)
	}
	if mean := float64(sum) / n; math.Abs(mean-2) > 0.1 {
		t.Fatalf("poisson mean = %.3f, want about 2", mean)
	}
}

func TestSampleDistinct(t *testing.T) {
	rng := newRand(4)
	for i := 0; i < 200; i++ {
		got := sampleDistinct(rng, 10, 4)
		seen := make(map[int]bool)
		for _, v := range got {
			if v < 0 || v >= 10 || seen[v] {
				t.Fatalf("sampleDistinct() = %v, want 4 distinct values in [0,10)", got)
			}
			seen[v] = true
		}
	}
}
