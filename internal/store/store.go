// Package store keeps run history in SQLite so repeated runs can be compared
// and flaky scenarios spotted.
//
// Every query orders by an explicit key, so history output is stable for the
// same database contents.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/v0xg/webscenario/internal/runner"
)

//go:embed schema.sql
var schemaSQL string

// Store is a run history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// One writer at a time; a single connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun records a summary. Saving the same run ID again replaces it.
func (s *Store) SaveRun(ctx context.Context, sum *runner.Summary) (err error) {
	if sum == nil || sum.RunID == "" {
		return errors.New("save run: summary has no run id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, sum.RunID); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, started_at, duration_ms, passed, failed, errored)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		sum.RunID,
		sum.Start.UnixMilli(),
		sum.Duration.Milliseconds(),
		sum.Count(runner.Passed),
		sum.Count(runner.Failed),
		sum.Count(runner.Errored),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, r := range sum.Results {
		if _, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO results (
				run_id, suite, scenario, group_name, state, attempts,
				duration_ms, failure_kind, failure_detail
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sum.RunID,
			r.Suite,
			r.Name,
			r.Group,
			string(r.State),
			r.Attempts,
			r.DurationMs(),
			string(r.FailureKind),
			r.FailureDetail,
		); err != nil {
			return fmt.Errorf("insert result %q: %w", r.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Run is one stored run.
type Run struct {
	ID         string
	Start      time.Time
	DurationMs int64
	Passed     int
	Failed     int
	Errored    int
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, passed, failed, errored
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r       Run
			startMs int64
		)
		if err := rows.Scan(&r.ID, &startMs, &r.DurationMs, &r.Passed, &r.Failed, &r.Errored); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Start = time.UnixMilli(startMs).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
