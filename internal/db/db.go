package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Run and file statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusOK        = "ok"
)

// DB wraps a sql.DB connection to the migration journal.
type DB struct {
	conn *sql.DB
}

// Run is one invocation of a migration operation.
type Run struct {
	ID        string
	Operation string // add_suffix, delete_old
	Folder    string // logical folder as given by the caller
	Directory string // resolved absolute directory
	Status    string // running, succeeded, failed
	Error     *string
	StartedAt string
	EndedAt   *string
	Files     int // number of file records
}

// RunFile is a single copy or delete performed by a run.
type RunFile struct {
	ID          int64
	RunID       string
	Action      string // copy, delete
	Source      string
	Destination *string
	Status      string // ok, failed
	Error       *string
	CreatedAt   string
}

// dsn builds a file: URI for path with each pragma applied on open. The path
// is percent-encoded so "?", "#" and "%" in directory names reach SQLite
// intact.
func dsn(path string, pragmas ...string) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23").Replace(path)
	q := make(url.Values)
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + escaped + "?" + q.Encode()
}

// Open creates a new DB connection and applies all pending migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(path, "journal_mode(wal)", "busy_timeout(5000)"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &DB{conn: conn}
	if err := d.migrate(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

func (d *DB) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, d.conn, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

// --- Run Methods ---

// StartRun records a new running operation and returns its ID.
func (d *DB) StartRun(operation, folder, directory string) (string, error) {
	id := uuid.NewString()
	_, err := d.conn.Exec(
		`INSERT INTO runs (id, operation, folder, directory, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, operation, folder, directory, StatusRunning, now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run succeeded, or failed with runErr.
func (d *DB) FinishRun(runID string, runErr error) error {
	status := StatusSucceeded
	if runErr != nil {
		status = StatusFailed
	}
	res, err := d.conn.Exec(
		`UPDATE runs SET status = ?, error = ?, ended_at = ? WHERE id = ?`,
		status, errString(runErr), now(), runID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: not found", runID)
	}
	return nil
}

// RecordFile stores one file action of a run. destination is empty for
// deletions; fileErr marks the action failed.
func (d *DB) RecordFile(runID, action, source, destination string, fileErr error) error {
	status := StatusOK
	if fileErr != nil {
		status = StatusFailed
	}
	var dst *string
	if destination != "" {
		dst = &destination
	}
	_, err := d.conn.Exec(
		`INSERT INTO run_files (run_id, action, source, destination, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, action, source, dst, status, errString(fileErr), now(),
	)
	if err != nil {
		return fmt.Errorf("insert run file: %w", err)
	}
	return nil
}

const runColumns = `r.id, r.operation, r.folder, r.directory, r.status, r.error, r.started_at, r.ended_at,
	(SELECT COUNT(*) FROM run_files f WHERE f.run_id = r.id)`

func scanRun(scanner interface{ Scan(...any) error }, r *Run) error {
	return scanner.Scan(&r.ID, &r.Operation, &r.Folder, &r.Directory, &r.Status, &r.Error, &r.StartedAt, &r.EndedAt, &r.Files)
}

// GetRun retrieves a single run by ID. It returns nil when no run matches.
func (d *DB) GetRun(id string) (*Run, error) {
	r := &Run{}
	row := d.conn.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	if err := scanRun(row, r); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := d.conn.Query(
		`SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		if err := scanRun(rows, &r); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListRunFiles returns the file actions of a run in the order they happened.
func (d *DB) ListRunFiles(runID string) ([]RunFile, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, action, source, destination, status, error, created_at
		 FROM run_files WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run files: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var files []RunFile
	for rows.Next() {
		var f RunFile
		if err := rows.Scan(&f.ID, &f.RunID, &f.Action, &f.Source, &f.Destination, &f.Status, &f.Error, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
