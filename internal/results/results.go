// Package results persists validation run history in SQLite, so a
// notebook's behavior over time can be inspected without keeping the
// console output around.
package results

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ouseful-PR/nbval/internal/runner"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Store is the run-history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path. WAL mode keeps
// reads available while a run is being recorded; a single connection
// avoids SQLITE_BUSY between the writer goroutine and itself.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to history database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	// No incremental migrations yet; stamp the current version.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// RunSummary is one recorded run.
type RunSummary struct {
	ID           string
	NotebookPath string
	KernelName   string
	Started      time.Time
	Duration     time.Duration
	Passed       int
	Failed       int
	Skipped      int
}

// CellRecord is one recorded cell outcome.
type CellRecord struct {
	Index       int
	Status      runner.Status
	FailureCode string
	Message     string
	Duration    time.Duration
}

// RecordRun stores a run and its cell outcomes in one transaction,
// returning the new run id.
func (s *Store) RecordRun(ctx context.Context, run runner.RunResult) (string, error) {
	counts := run.Counts()
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin run record: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, notebook_path, kernel_name, started_at, duration_ms, passed, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		run.NotebookPath,
		run.KernelName,
		run.Started.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
		counts[runner.StatusPass],
		counts[runner.StatusFail],
		counts[runner.StatusSkip],
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, cell := range run.Cells {
		code, message := "", ""
		if cell.Err != nil {
			code = string(cell.Err.Code)
			message = cell.Err.Message
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cell_results (run_id, cell_index, status, failure_code, message, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, cell.Index, string(cell.Status), code, message, cell.Duration.Milliseconds(),
		)
		if err != nil {
			return "", fmt.Errorf("insert cell %d: %w", cell.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run record: %w", err)
	}
	return runID, nil
}

// History returns the most recent runs, newest first. An empty
// notebookPath matches every notebook.
func (s *Store) History(ctx context.Context, notebookPath string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, notebook_path, kernel_name, started_at, duration_ms, passed, failed, skipped
		FROM runs`
	args := []any{}
	if notebookPath != "" {
		query += ` WHERE notebook_path = ?`
		args = append(args, notebookPath)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.NotebookPath, &r.KernelName, &started,
			&durationMS, &r.Passed, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", started, err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cells returns the recorded cell outcomes of a run in cell order.
func (s *Store) Cells(ctx context.Context, runID string) ([]CellRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cell_index, status, failure_code, message, duration_ms
		FROM cell_results WHERE run_id = ? ORDER BY cell_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	var out []CellRecord
	for rows.Next() {
		var c CellRecord
		var status string
		var durationMS int64
		if err := rows.Scan(&c.Index, &status, &c.FailureCode, &c.Message, &durationMS); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		c.Status = runner.Status(status)
		c.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}
