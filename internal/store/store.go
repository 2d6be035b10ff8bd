// Package store persists batch runs and per-frame results in SQLite.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
)

//go:embed schema.sql
var schemaSQL string

// Frame result statuses.
const (
	StatusOK       = "ok"
	StatusFallback = "fallback"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Store wraps the results database.
type Store struct {
	*sql.DB
}

// Run is one batch invocation over a directory.
type Run struct {
	RunID        string `json:"run_id"`
	Dir          string `json:"dir"`
	StartedAt    int64  `json:"started_at"`
	FinishedAt   int64  `json:"finished_at,omitempty"`
	FramesOK     int    `json:"frames_ok"`
	FramesFailed int    `json:"frames_failed"`
}

// FrameResult is the outcome for one frame. Geometry, Object and Desired
// are nil when the step that produces them did not run or failed.
type FrameResult struct {
	RunID     string             `json:"run_id"`
	Path      string             `json:"path"`
	Kind      string             `json:"kind"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
	Geometry  *ndfilter.Geometry `json:"geometry,omitempty"`
	Object    *frame.Point       `json:"object,omitempty"`
	Desired   *frame.Point       `json:"desired,omitempty"`
	Distance  float64            `json:"distance"`
	Tilt      float64            `json:"tilt"`
	OnFilter  bool               `json:"on_filter"`
	CreatedAt int64              `json:"created_at"`
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps the pragmas in force and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Printf("[store] opened results database %s", path)
	return &Store{db}, nil
}

// StartRun records a new run over dir.
func (s *Store) StartRun(dir string) (*Run, error) {
	run := &Run{RunID: uuid.New().String(), Dir: dir, StartedAt: time.Now().UnixNano()}
	_, err := s.Exec(`INSERT INTO runs (run_id, dir, started_at) VALUES (?, ?, ?)`,
		run.RunID, run.Dir, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run's end time and frame counts.
func (s *Store) FinishRun(runID string, ok, failed int) error {
	res, err := s.Exec(`UPDATE runs SET finished_at = ?, frames_ok = ?, frames_failed = ? WHERE run_id = ?`,
		time.Now().UnixNano(), ok, failed, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun returns one run.
func (s *Store) GetRun(runID string) (*Run, error) {
	var r Run
	var finished sql.NullInt64
	err := s.QueryRow(`SELECT run_id, dir, started_at, finished_at, frames_ok, frames_failed FROM runs WHERE run_id = ?`, runID).
		Scan(&r.RunID, &r.Dir, &r.StartedAt, &finished, &r.FramesOK, &r.FramesFailed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.FinishedAt = finished.Int64
	return &r, nil
}

// RecordResult inserts r, stamping CreatedAt when unset.
func (s *Store) RecordResult(r *FrameResult) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixNano()
	}

	var ls, li, rs, ri, refY, ox, oy, dx, dy, dist, tilt, onFilter interface{}
	if g := r.Geometry; g != nil {
		ls, li, rs, ri, refY = g.Left.Slope, g.Left.Intercept, g.Right.Slope, g.Right.Intercept, g.RefY
		tilt = r.Tilt
	}
	if r.Object != nil {
		ox, oy = r.Object.X, r.Object.Y
		dist, onFilter = r.Distance, r.OnFilter
	}
	if r.Desired != nil {
		dx, dy = r.Desired.X, r.Desired.Y
	}
	var errText interface{}
	if r.Error != "" {
		errText = r.Error
	}

	_, err := s.Exec(`
		INSERT INTO frame_results (
			run_id, path, kind, status, error,
			left_slope, left_intercept, right_slope, right_intercept, ref_y,
			obj_x, obj_y, desired_x, desired_y, distance, tilt, on_filter, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Path, r.Kind, r.Status, errText,
		ls, li, rs, ri, refY,
		ox, oy, dx, dy, dist, tilt, onFilter, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for %s: %w", r.Path, err)
	}
	return nil
}

const resultColumns = `run_id, path, kind, status, error,
	left_slope, left_intercept, right_slope, right_intercept, ref_y,
	obj_x, obj_y, desired_x, desired_y, distance, tilt, on_filter, created_at`

// Results returns a run's frame results in path order.
func (s *Store) Results(runID string) ([]*FrameResult, error) {
	rows, err := s.Query(`SELECT `+resultColumns+` FROM frame_results WHERE run_id = ? ORDER BY path, result_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []*FrameResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestGeometry returns the most recently measured geometry across all
// runs. Fallback results only echo their prior and are not considered.
func (s *Store) LatestGeometry() (*ndfilter.Geometry, error) {
	row := s.QueryRow(`SELECT ` + resultColumns + ` FROM frame_results
		WHERE status = '` + StatusOK + `' AND left_slope IS NOT NULL
		ORDER BY created_at DESC, result_id DESC LIMIT 1`)
	r, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no measured geometry: %w", ErrNotFound)
		}
		return nil, err
	}
	return r.Geometry, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(sc scanner) (*FrameResult, error) {
	var r FrameResult
	var errText sql.NullString
	var ls, li, rs, ri, refY, ox, oy, dx, dy, dist, tilt sql.NullFloat64
	var onFilter sql.NullBool
	err := sc.Scan(
		&r.RunID, &r.Path, &r.Kind, &r.Status, &errText,
		&ls, &li, &rs, &ri, &refY,
		&ox, &oy, &dx, &dy, &dist, &tilt, &onFilter, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	r.Error = errText.String
	if ls.Valid {
		r.Geometry = &ndfilter.Geometry{
			Left:  fit.Line{Slope: ls.Float64, Intercept: li.Float64},
			Right: fit.Line{Slope: rs.Float64, Intercept: ri.Float64},
			RefY:  refY.Float64,
		}
		r.Tilt = tilt.Float64
	}
	if ox.Valid {
		r.Object = &frame.Point{Y: oy.Float64, X: ox.Float64}
		r.Distance = dist.Float64
		r.OnFilter = onFilter.Bool
	}
	if dx.Valid {
		r.Desired = &frame.Point{Y: dy.Float64, X: dx.Float64}
	}
	return &r, nil
}
