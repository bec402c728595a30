package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeDataset creates a small dataset plus a config pointing at it and
// returns the config path.
func writeDataset(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"nverts.txt":    "3\n3\n3\n2\n",
		"simplices.txt": "1 2 3\n2 3 4\n3 4 5\n8 9\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := "source:\n" +
		"  kind: dataset\n" +
		"  nverts: " + filepath.Join(dir, "nverts.txt") + "\n" +
		"  simplices: " + filepath.Join(dir, "simplices.txt") + "\n" +
		"simulation:\n" +
		"  steps: 4\n" +
		"  seed: 3\n" +
		"  beta_high_order: [0.2]\n" +
		extra
	path := filepath.Join(dir, "hocsim.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "hocsim version "+version) {
		t.Fatalf("version output = %q", out)
	}
}

func TestHOCsCommand(t *testing.T) {
	cfg := writeDataset(t, "")
	out, err := execute(t, "hocs", "--config", cfg, "--json")
	if err != nil {
		t.Fatalf("hocs: %v", err)
	}
	var report struct {
		Nodes      int `json:"nodes"`
		Hyperedges int `json:"hyperedges"`
		Orders     []hocOrderReport
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Nodes != 7 || report.Hyperedges != 4 {
		t.Fatalf("nodes/hyperedges = %d/%d, want 7/4", report.Nodes, report.Hyperedges)
	}
	if len(report.Orders) != 1 || report.Orders[0].Order != 2 || report.Orders[0].Components != 1 || report.Orders[0].Sizes[0] != 3 {
		t.Fatalf("orders = %+v, want one order-2 component of three hyperedges", report.Orders)
	}
}

func TestRunCommandStoresResult(t *testing.T) {
	cfg := writeDataset(t, "")
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--config", cfg, "--results", db, "--steps", "6", "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary struct {
		RunID   string `json:"run_id"`
		History []map[string]int
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if summary.RunID == "" || len(summary.History) != 6 {
		t.Fatalf("summary = %+v, want run id and 6 steps", summary)
	}

	out, err = execute(t, "runs", "show", summary.RunID, "--results", db)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(out, "run "+summary.RunID) || !strings.Contains(out, "outbreak size:") {
		t.Fatalf("runs show output = %q", out)
	}

	if _, err := execute(t, "runs", "show", "missing", "--results", db); err == nil {
		t.Fatalf("expected error for unknown run id")
	}
}

func TestRunCommandTextOutput(t *testing.T) {
	cfg := writeDataset(t, "")
	out, err := execute(t, "run", "--config", cfg, "--model", "sis")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "step\tS\tI\tR") || !strings.Contains(out, "\n4\t") {
		t.Fatalf("run output = %q", out)
	}
}

func TestSweepCommand(t *testing.T) {
	cfg := writeDataset(t, "sweep:\n  orders: 1\n  gamma: 0.2\n")
	db := filepath.Join(t.TempDir(), "runs.db")
	out, err := execute(t, "sweep", "--config", cfg, "--results", db, "--lambda", "0.5,1,2", "--parallelism", "2")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 || lines[1] != "lambda\toutbreak_size" || !strings.HasPrefix(lines[2], "0.5\t") {
		t.Fatalf("sweep output = %q", out)
	}

	sweepID := strings.TrimSuffix(strings.Fields(lines[0])[1], ":")
	out, err = execute(t, "runs", "list", "--results", db, "--sweep", sweepID)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if n := strings.Count(out, "\tsweep\t"); n != 3 {
		t.Fatalf("runs list shows %d sweep points, want 3: %q", n, out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	cfg := writeDataset(t, "")
	if _, err := execute(t, "run", "--config", cfg, "--model", "SEIR"); err == nil {
		t.Fatalf("expected validation error for unknown model")
	}
	if _, err := execute(t, "runs", "list"); err == nil {
		t.Fatalf("expected error without a results database")
	}
}
