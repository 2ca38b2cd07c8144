// Package migrate renames legacy SQLite database files so they carry the
// "SQLite.db" marker, and purges the legacy copies once the host application
// has switched over.
//
// Operations are synchronous and fail fast: the first copy or delete error
// aborts the batch and nothing already done is rolled back. Callers must not
// run operations concurrently against the same directories.
package migrate

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// Marker identifies a database that has already been migrated.
	Marker = "SQLite.db"

	dbExt = ".db"
)

// Operation names, as recorded in the journal.
const (
	OpAddSuffix = "add_suffix"
	OpDeleteOld = "delete_old"
)

// IsDatabaseFile reports whether name has the extension "db".
func IsDatabaseFile(name string) bool {
	return filepath.Ext(name) == dbExt
}

// HasMarker reports whether name already carries the migration marker.
func HasMarker(name string) bool {
	return strings.Contains(name, Marker)
}

// NeedsMigration reports whether name is a legacy database file.
func NeedsMigration(name string) bool {
	return IsDatabaseFile(name) && !HasMarker(name)
}

// SuffixedName returns name with its first ".db" replaced by the marker,
// e.g. "users.db" -> "usersSQLite.db".
func SuffixedName(name string) string {
	return strings.Replace(name, dbExt, Marker, 1)
}

// Journal records what a run did. *db.DB satisfies it.
type Journal interface {
	StartRun(operation, folder, directory string) (string, error)
	RecordFile(runID, action, source, destination string, fileErr error) error
	FinishRun(runID string, runErr error) error
}

// Action is one file operation a run would perform. Destination is empty
// for deletions.
type Action struct {
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
}

// Runner executes migrations against a pair of storage roots.
type Runner struct {
	Roots Roots

	// Verify, when set, is called on every copied database. A non-nil
	// error fails the copy.
	Verify func(path string) error

	// Journal is optional.
	Journal Journal

	// Exclude lists files scan never treats as candidates, such as the
	// journal itself when it lives in a migrated folder.
	Exclude []string

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// NewRunner returns a Runner for roots with no journal and no verification.
func NewRunner(roots Roots) *Runner {
	return &Runner{Roots: roots}
}

// AddSuffix copies every legacy database in folder into the databases root
// under its suffixed name. The sources are left in place.
//
// The first failed copy aborts with ErrCopyFailed. Databases copied before
// the failure stay in the databases root.
func (r *Runner) AddSuffix(folder string) (err error) {
	toDir := r.Roots.Databases
	dir, names, err := r.scan(folder)
	if err != nil {
		return err
	}

	runID := r.startRun(OpAddSuffix, folder, dir)
	defer func() { r.finishRun(runID, err) }()

	for _, name := range names {
		to := SuffixedName(name)
		src := filepath.Join(dir, name)
		dst := filepath.Join(toDir, to)

		cerr := copyFile(src, dst)
		if cerr == nil && r.Verify != nil {
			if verr := r.Verify(dst); verr != nil {
				cerr = fmt.Errorf("verify %s: %w", dst, verr)
			}
		}
		r.recordFile(runID, "copy", src, dst, cerr)
		if cerr != nil {
			r.logf("[migrate] copy %s -> %s failed: %v", src, dst, cerr)
			return copyFailed(name, to, dst, cerr)
		}
		r.logf("[migrate] copied %s -> %s", src, dst)
	}
	return nil
}

// DeleteOld removes every legacy database in folder. Databases that carry
// the marker and non-database files are left alone.
//
// The first failed delete aborts with ErrDeleteFailed. Files deleted before
// the failure stay deleted.
func (r *Runner) DeleteOld(folder string) (err error) {
	dir, names, err := r.scan(folder)
	if err != nil {
		return err
	}

	runID := r.startRun(OpDeleteOld, folder, dir)
	defer func() { r.finishRun(runID, err) }()

	for _, name := range names {
		path := filepath.Join(dir, name)
		derr := os.Remove(path)
		r.recordFile(runID, "delete", path, "", derr)
		if derr != nil {
			r.logf("[migrate] delete %s failed: %v", path, derr)
			return deleteFailed(name, path, derr)
		}
		r.logf("[migrate] deleted %s", path)
	}
	return nil
}

// Plan returns the actions operation would perform on folder without
// touching the filesystem. operation is OpAddSuffix or OpDeleteOld.
func (r *Runner) Plan(operation, folder string) ([]Action, error) {
	if operation != OpAddSuffix && operation != OpDeleteOld {
		return nil, fmt.Errorf("unknown operation %q", operation)
	}
	dir, names, err := r.scan(folder)
	if err != nil {
		return nil, err
	}

	actions := make([]Action, 0, len(names))
	for _, name := range names {
		a := Action{Source: filepath.Join(dir, name)}
		if operation == OpAddSuffix {
			a.Destination = filepath.Join(r.Roots.Databases, SuffixedName(name))
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// ListDatabases returns the sorted names of migrated databases in the
// databases root.
func (r *Runner) ListDatabases() ([]string, error) {
	dir := r.Roots.Databases
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, directoryNotFound(dir, err)
		}
		return nil, fmt.Errorf("read databases folder %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Marker) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// scan resolves folder and returns it with the names of its legacy
// databases, in directory order.
func (r *Runner) scan(folder string) (string, []string, error) {
	dir, err := r.Roots.Resolve(folder)
	if err != nil {
		return "", nil, err
	}

	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, directoryNotFound(dir, err)
		}
		return "", nil, fmt.Errorf("stat folder %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if NeedsMigration(e.Name()) && !r.excluded(filepath.Join(dir, e.Name())) {
			names = append(names, e.Name())
		}
	}
	return dir, names, nil
}

func (r *Runner) excluded(path string) bool {
	for _, p := range r.Exclude {
		if filepath.Clean(p) == path {
			return true
		}
	}
	return false
}

func (r *Runner) logf(format string, args ...any) {
	l := r.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}

// Journal failures are logged and never fail the migration itself.

func (r *Runner) startRun(operation, folder, dir string) string {
	if r.Journal == nil {
		return ""
	}
	id, err := r.Journal.StartRun(operation, folder, dir)
	if err != nil {
		r.logf("[migrate] journal: start %s run: %v", operation, err)
		return ""
	}
	return id
}

func (r *Runner) recordFile(runID, action, src, dst string, fileErr error) {
	if r.Journal == nil || runID == "" {
		return
	}
	if err := r.Journal.RecordFile(runID, action, src, dst, fileErr); err != nil {
		r.logf("[migrate] journal: record %s %s: %v", action, src, err)
	}
}

func (r *Runner) finishRun(runID string, runErr error) {
	if r.Journal == nil || runID == "" {
		return
	}
	if err := r.Journal.FinishRun(runID, runErr); err != nil {
		r.logf("[migrate] journal: finish run %s: %v", runID, err)
	}
}
