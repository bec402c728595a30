package results

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/hoc-contagion/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs", "hocsim.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run := &Run{
		Model:         "SIR",
		Resolution:    "combined",
		Beta:          0.1,
		Gamma:         0.2,
		BetaHighOrder: []float64{0.3, 0.4},
		Seed:          1<<63 + 5,
		Steps:         3,
		Nodes:         10,
		Hyperedges:    4,
		HOCCounts:     map[int]int{2: 3, 3: 1},
		SkippedOrders: []int{4},
		OutbreakSize:  0.6,
		History: []model.StatusCounts{
			{model.Susceptible: 8, model.Infected: 2},
			{model.Susceptible: 6, model.Infected: 3, model.Recovered: 1},
			{model.Susceptible: 4, model.Infected: 2, model.Recovered: 4},
		},
	}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if run.ID == "" || run.CreatedAt.IsZero() || run.Kind != KindRun {
		t.Fatalf("SaveRun did not fill defaults: id=%q created=%v kind=%q", run.ID, run.CreatedAt, run.Kind)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Seed != run.Seed {
		t.Fatalf("Seed = %d, want %d", got.Seed, run.Seed)
	}
	if got.HOCCounts[2] != 3 || got.HOCCounts[3] != 1 || len(got.SkippedOrders) != 1 || got.SkippedOrders[0] != 4 {
		t.Fatalf("decoded JSON columns = %v / %v", got.HOCCounts, got.SkippedOrders)
	}
	if len(got.BetaHighOrder) != 2 || got.BetaHighOrder[1] != 0.4 {
		t.Fatalf("BetaHighOrder = %v, want [0.3 0.4]", got.BetaHighOrder)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
	if len(got.History) != 3 {
		t.Fatalf("History length = %d, want 3", len(got.History))
	}
	if _, ok := got.History[0][model.Recovered]; ok {
		t.Fatalf("empty statuses should be omitted, got %v", got.History[0])
	}
	if got.History[2].String() != run.History[2].String() {
		t.Fatalf("History[2] = %v, want %v", got.History[2], run.History[2])
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.GetRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSaveRunRejectsDuplicateID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if err := s.SaveRun(ctx, &Run{ID: "r1", Model: "SIS"}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.SaveRun(ctx, &Run{ID: "r1", Model: "SIS"}); err == nil {
		t.Fatalf("expected error for duplicate run id")
	}
}

func TestListRuns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, lambda := range []float64{2, 0.5, 1} {
		if err := s.SaveRun(ctx, &Run{
			Kind:      KindSweep,
			SweepID:   "sweep-a",
			Model:     "SIR",
			Lambda:    lambda,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	if err := s.SaveRun(ctx, &Run{Model: "SIS", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	points, err := s.ListRuns(ctx, "sweep-a", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(points) != 3 || points[0].Lambda != 0.5 || points[2].Lambda != 2 {
		t.Fatalf("sweep points not ordered by lambda: %+v", points)
	}
	for _, p := range points {
		if p.History != nil {
			t.Fatalf("ListRuns should not load history")
		}
	}

	latest, err := s.ListRuns(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(latest) != 1 || latest[0].Model != "SIS" || latest[0].SweepID != "" {
		t.Fatalf("ListRuns(limit=1) = %+v, want the newest SIS run", latest)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hocsim.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run := &Run{Model: "SIR"}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetRun(ctx, run.ID); err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
}
