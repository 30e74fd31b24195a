// Package history persists a show-level ledger of pipeline runs in SQLite,
// so operators can audit what ran, what skipped, and how long phases took
// across episodes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"redub/internal/pipeline"
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies the
// schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applySchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    episode TEXT NOT NULL,
    video TEXT NOT NULL,
    status TEXT NOT NULL,
    ran INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_phases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    phase TEXT NOT NULL,
    outcome TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_episode ON runs(episode);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}
	return nil
}

// Run is one recorded pipeline run.
type Run struct {
	RunID      string
	Episode    string
	Video      string
	Status     string
	Ran        int
	Skipped    int
	Failed     int
	Error      string
	StartedAt  string
	FinishedAt string
}

// PhaseRow is one phase outcome inside a recorded run.
type PhaseRow struct {
	Phase      string
	Outcome    string
	Reason     string
	DurationMs int
}

// RecordRun persists a run summary. Returns the generated run id.
func (s *Store) RecordRun(ctx context.Context, episode, video string, summary *pipeline.Summary, startedAt time.Time, runErr error) (string, error) {
	runID := uuid.NewString()
	status := "succeeded"
	errText := ""
	if runErr != nil {
		status = "failed"
		errText = runErr.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, episode, video, status, ran, skipped, failed, error, started_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, episode, video, status,
		summary.Ran(), summary.Skipped(), summary.Failed(), errText,
		startedAt.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, p := range summary.Phases {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_phases (run_id, phase, outcome, reason, duration_ms)
             VALUES (?, ?, ?, ?, ?)`,
			runID, p.Name, string(p.Status), p.Reason, p.Duration.Milliseconds(),
		)
		if err != nil {
			return "", fmt.Errorf("insert run phase: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit history tx: %w", err)
	}
	return runID, nil
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, episode, video, status, ran, skipped, failed, error, started_at, finished_at
         FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Episode, &r.Video, &r.Status, &r.Ran, &r.Skipped, &r.Failed, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunPhases returns the phase rows of one run in insertion order.
func (s *Store) RunPhases(ctx context.Context, runID string) ([]PhaseRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, outcome, reason, duration_ms FROM run_phases WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run phases: %w", err)
	}
	defer rows.Close()

	var out []PhaseRow
	for rows.Next() {
		var p PhaseRow
		if err := rows.Scan(&p.Phase, &p.Outcome, &p.Reason, &p.DurationMs); err != nil {
			return nil, fmt.Errorf("scan run phase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
