package migrate

import (
	"errors"
	"path/filepath"
	"testing"
)

func testRoots() Roots {
	return Roots{
		Files:     filepath.FromSlash("/data/app/files"),
		Databases: filepath.FromSlash("/data/app/databases"),
	}
}

func TestResolve(t *testing.T) {
	r := testRoots()

	tests := []struct {
		folder string
		want   string
	}{
		{"default", r.Databases},
		{"files/x", filepath.Join(r.Files, "x")},
		{"databases/x", filepath.Join(r.Databases, "x")},
		{"files/nested/dir", filepath.Join(r.Files, "nested", "dir")},
		{"databases/legacy", filepath.Join(r.Databases, "legacy")},
		// No slash: the name is ignored and the files root is returned.
		{"files", r.Files},
		{"whatever", r.Files},
		{"", r.Files},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.folder)
		if err != nil {
			t.Errorf("Resolve(%q): unexpected error: %v", tt.folder, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.folder, got, tt.want)
		}
	}
}

func TestResolveInvalidNamespace(t *testing.T) {
	r := testRoots()

	for _, folder := range []string{"other/x", "cache/db", "Files/x", "/files/x"} {
		_, err := r.Resolve(folder)
		if !errors.Is(err, ErrInvalidFolder) {
			t.Errorf("Resolve(%q): expected ErrInvalidFolder, got %v", folder, err)
			continue
		}
		want := "Folder " + folder + " not allowed"
		if err.Error() != want {
			t.Errorf("Resolve(%q) message = %q, want %q", folder, err.Error(), want)
		}
	}
}

func TestResolveWithin(t *testing.T) {
	r := testRoots()

	for _, folder := range []string{"default", "files/x", "databases/a/b", "databases/../files/x", "files/x/..", "legacy"} {
		want, err := r.Resolve(folder)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", folder, err)
		}
		got, err := r.ResolveWithin(folder)
		if err != nil {
			t.Errorf("ResolveWithin(%q): %v", folder, err)
			continue
		}
		if got != want {
			t.Errorf("ResolveWithin(%q) = %q, want %q", folder, got, want)
		}
	}

	for _, folder := range []string{"files/..", "files/../../elsewhere", "databases/../other", "other/x"} {
		if _, err := r.ResolveWithin(folder); !errors.Is(err, ErrInvalidFolder) {
			t.Errorf("ResolveWithin(%q): expected ErrInvalidFolder, got %v", folder, err)
		}
	}
}

func TestNewRootsSiblingDatabases(t *testing.T) {
	base := t.TempDir()
	roots, err := NewRoots(filepath.Join(base, "files"), "")
	if err != nil {
		t.Fatalf("NewRoots: %v", err)
	}
	if roots.Files != filepath.Join(base, "files") {
		t.Errorf("Files = %q", roots.Files)
	}
	if roots.Databases != filepath.Join(base, "databases") {
		t.Errorf("Databases = %q, want sibling of files root", roots.Databases)
	}
}

func TestNewRootsOverride(t *testing.T) {
	base := t.TempDir()
	roots, err := NewRoots(filepath.Join(base, "files"), filepath.Join(base, "db"))
	if err != nil {
		t.Fatalf("NewRoots: %v", err)
	}
	if roots.Databases != filepath.Join(base, "db") {
		t.Errorf("Databases = %q", roots.Databases)
	}
}

func TestNewRootsRequiresFilesDir(t *testing.T) {
	if _, err := NewRoots("", ""); err == nil {
		t.Fatal("expected error for empty files directory")
	}
}
