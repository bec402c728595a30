// Package results persists run summaries and per-step counts in SQLite.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/signalsfoundry/hoc-contagion/model"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run kinds.
const (
	KindRun   = "run"
	KindSweep = "sweep"
)

// Run is the persisted record of one simulation.
type Run struct {
	ID            string
	Kind          string
	SweepID       string
	Model         string
	Resolution    string
	Beta          float64
	Gamma         float64
	BetaHighOrder []float64
	Lambda        float64
	Seed          uint64
	Steps         int
	Nodes         int
	Hyperedges    int
	HOCCounts     map[int]int
	SkippedOrders []int
	OutbreakSize  float64
	CreatedAt     time.Time

	// History holds one snapshot per step. ListRuns leaves it empty.
	History []model.StatusCounts
}

// Store is a SQLite-backed run store.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the database at path, creating parent directories.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create results directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts run and its history in one transaction. An empty ID is
// replaced with a new UUID and a zero CreatedAt with the current time; both
// are written back to run.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("SaveRun: nil run")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Kind == "" {
		run.Kind = KindRun
	}

	rates, err := marshalJSON(run.BetaHighOrder, "[]")
	if err != nil {
		return err
	}
	hocCounts, err := marshalJSON(run.HOCCounts, "{}")
	if err != nil {
		return err
	}
	skipped, err := marshalJSON(run.SkippedOrders, "[]")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, sweep_id, model, resolution, beta, gamma, beta_high_order,
			lambda, seed, steps, nodes, hyperedges, hoc_counts, skipped_orders, outbreak_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, nullString(run.SweepID), run.Model, run.Resolution, run.Beta, run.Gamma, rates,
		run.Lambda, int64(run.Seed), run.Steps, run.Nodes, run.Hyperedges, hocCounts, skipped,
		run.OutbreakSize, run.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_steps (run_id, step, susceptible, infected, recovered) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stmt.Close()
	for i, c := range run.History {
		if _, err := stmt.ExecContext(ctx, run.ID, i+1,
			c.Get(model.Susceptible), c.Get(model.Infected), c.Get(model.Recovered)); err != nil {
			return fmt.Errorf("failed to insert step %d of run %s: %w", i+1, run.ID, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, kind, sweep_id, model, resolution, beta, gamma, beta_high_order,
	lambda, seed, steps, nodes, hyperedges, hoc_counts, skipped_orders, outbreak_size, created_at`

// GetRun loads a run including its step history.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT susceptible, infected, recovered FROM run_steps WHERE run_id = ? ORDER BY step`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps of run %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var sus, inf, rec int
		if err := rows.Scan(&sus, &inf, &rec); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		run.History = append(run.History, countsFromColumns(sus, inf, rec))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns run summaries, newest first. A sweepID restricts the
// result to the points of that sweep, ordered by λ instead. limit <= 0 means
// no limit.
func (s *Store) ListRuns(ctx context.Context, sweepID string, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if sweepID != "" {
		query += ` WHERE sweep_id = ? ORDER BY lambda, id`
		args = append(args, sweepID)
	} else {
		query += ` ORDER BY created_at DESC, id`
	}
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run                       Run
		sweepID                   sql.NullString
		lambda                    sql.NullFloat64
		seed                      int64
		rates, hocCounts, skipped string
		createdAt                 string
	)
	err := sc.Scan(&run.ID, &run.Kind, &sweepID, &run.Model, &run.Resolution, &run.Beta, &run.Gamma,
		&rates, &lambda, &seed, &run.Steps, &run.Nodes, &run.Hyperedges, &hocCounts, &skipped,
		&run.OutbreakSize, &createdAt)
	if err != nil {
		return nil, err
	}
	run.SweepID = sweepID.String
	run.Lambda = lambda.Float64
	run.Seed = uint64(seed)
	if err := json.Unmarshal([]byte(rates), &run.BetaHighOrder); err != nil {
		return nil, fmt.Errorf("failed to decode beta_high_order of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(hocCounts), &run.HOCCounts); err != nil {
		return nil, fmt.Errorf("failed to decode hoc_counts of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(skipped), &run.SkippedOrders); err != nil {
		return nil, fmt.Errorf("failed to decode skipped_orders of run %s: %w", run.ID, err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// countsFromColumns rebuilds a snapshot, omitting statuses with no nodes.
func countsFromColumns(sus, inf, rec int) model.StatusCounts {
	c := make(model.StatusCounts, 3)
	if sus > 0 {
		c[model.Susceptible] = sus
	}
	if inf > 0 {
		c[model.Infected] = inf
	}
	if rec > 0 {
		c[model.Recovered] = rec
	}
	return c
}

func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %T: %w", v, err)
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
