package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestStartAndFinishRun(t *testing.T) {
	d := openTestDB(t)

	id, err := d.StartRun("add_suffix", "files/legacy", "/data/files/legacy")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if id == "" {
		t.Fatal("expected a run ID")
	}

	r, err := d.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r == nil {
		t.Fatal("expected run, got nil")
	}
	if r.Status != StatusRunning || r.EndedAt != nil {
		t.Fatalf("expected running run without end time, got %+v", r)
	}
	if r.Folder != "files/legacy" || r.Directory != "/data/files/legacy" {
		t.Errorf("unexpected folder/directory: %q %q", r.Folder, r.Directory)
	}

	if err := d.FinishRun(id, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	r, _ = d.GetRun(id)
	if r.Status != StatusSucceeded {
		t.Errorf("expected succeeded, got %q", r.Status)
	}
	if r.EndedAt == nil {
		t.Error("expected ended_at to be set")
	}
	if r.Error != nil {
		t.Errorf("expected no error, got %q", *r.Error)
	}
}

func TestFinishRunFailed(t *testing.T) {
	d := openTestDB(t)

	id, err := d.StartRun("delete_old", "default", "/data/databases")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := d.FinishRun(id, errors.New("Failed in delete a.db")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	r, _ := d.GetRun(id)
	if r.Status != StatusFailed {
		t.Errorf("expected failed, got %q", r.Status)
	}
	if r.Error == nil || *r.Error != "Failed in delete a.db" {
		t.Errorf("unexpected error: %v", r.Error)
	}
}

func TestFinishRunUnknown(t *testing.T) {
	d := openTestDB(t)

	if err := d.FinishRun("does-not-exist", nil); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestGetRunNotFound(t *testing.T) {
	d := openTestDB(t)

	r, err := d.GetRun("nope")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil for non-existent run, got %+v", r)
	}
}

func TestRecordFiles(t *testing.T) {
	d := openTestDB(t)

	id, _ := d.StartRun("add_suffix", "default", "/data/databases")
	if err := d.RecordFile(id, "copy", "/data/databases/a.db", "/data/databases/aSQLite.db", nil); err != nil {
		t.Fatalf("RecordFile: %v", err)
	}
	if err := d.RecordFile(id, "copy", "/data/databases/b.db", "/data/databases/bSQLite.db", errors.New("permission denied")); err != nil {
		t.Fatalf("RecordFile: %v", err)
	}

	files, err := d.ListRunFiles(id)
	if err != nil {
		t.Fatalf("ListRunFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Status != StatusOK || files[0].Error != nil {
		t.Errorf("first file: %+v", files[0])
	}
	if files[0].Destination == nil || *files[0].Destination != "/data/databases/aSQLite.db" {
		t.Errorf("first destination: %v", files[0].Destination)
	}
	if files[1].Status != StatusFailed || files[1].Error == nil || *files[1].Error != "permission denied" {
		t.Errorf("second file: %+v", files[1])
	}

	r, _ := d.GetRun(id)
	if r.Files != 2 {
		t.Errorf("expected run file count 2, got %d", r.Files)
	}
}

func TestRecordDeleteHasNoDestination(t *testing.T) {
	d := openTestDB(t)

	id, _ := d.StartRun("delete_old", "default", "/data/databases")
	if err := d.RecordFile(id, "delete", "/data/databases/a.db", "", nil); err != nil {
		t.Fatalf("RecordFile: %v", err)
	}
	files, _ := d.ListRunFiles(id)
	if len(files) != 1 || files[0].Destination != nil {
		t.Fatalf("expected one file without destination, got %+v", files)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	d := openTestDB(t)

	first, _ := d.StartRun("add_suffix", "default", "/d")
	second, _ := d.StartRun("delete_old", "default", "/d")
	third, _ := d.StartRun("add_suffix", "files/x", "/f/x")

	runs, err := d.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	want := []string{third, second, first}
	for i, r := range runs {
		if r.ID != want[i] {
			t.Errorf("runs[%d] = %s, want %s", i, r.ID, want[i])
		}
	}

	limited, _ := d.ListRuns(2)
	if len(limited) != 2 {
		t.Errorf("expected limit 2 to return 2 runs, got %d", len(limited))
	}
}

func createSQLiteFile(t *testing.T, path string) {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close() //nolint:errcheck
	if _, err := conn.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO items (name) VALUES ('a'), ('b')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestVerifyValidDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aSQLite.db")
	createSQLiteFile(t, path)

	if err := Verify(path); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bSQLite.db")
	junk := strings.Repeat("this is not a sqlite database ", 64)
	if err := os.WriteFile(path, []byte(junk), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Verify(path); err == nil {
		t.Fatal("expected Verify to reject a non-database file")
	}
}

func TestVerifyPathWithURIMetacharacters(t *testing.T) {
	src := filepath.Join(t.TempDir(), "plain.db")
	createSQLiteFile(t, src)
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "what?#100%")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := filepath.Join(dir, "aSQLite.db")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Verify(path); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestOpenPathWithURIMetacharacters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs?#1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := filepath.Join(dir, "journal.db")

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close() //nolint:errcheck

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("journal not created at %s: %v", path, err)
	}
}
