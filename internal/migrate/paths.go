package migrate

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DefaultFolder resolves to the databases root.
	DefaultFolder = "default"

	namespaceFiles     = "files"
	namespaceDatabases = "databases"
)

// Roots are the two private-storage directories of the host application.
// Databases is conventionally the "databases" sibling of Files.
type Roots struct {
	Files     string
	Databases string
}

// NewRoots returns absolute roots for filesDir. When databasesDir is empty
// the sibling "databases" directory of filesDir is used.
func NewRoots(filesDir, databasesDir string) (Roots, error) {
	if filesDir == "" {
		return Roots{}, fmt.Errorf("files directory is required")
	}
	files, err := filepath.Abs(filesDir)
	if err != nil {
		return Roots{}, fmt.Errorf("resolve files directory: %w", err)
	}
	if databasesDir == "" {
		return Roots{Files: files, Databases: filepath.Join(filepath.Dir(files), namespaceDatabases)}, nil
	}
	databases, err := filepath.Abs(databasesDir)
	if err != nil {
		return Roots{}, fmt.Errorf("resolve databases directory: %w", err)
	}
	return Roots{Files: files, Databases: databases}, nil
}

// Resolve maps a logical folder ("default", "files/<sub>", "databases/<sub>")
// to an absolute directory. Any other namespace is an ErrInvalidFolder.
//
// A folder without a slash (other than "default") resolves to the files root
// and the name is ignored. This matches what existing callers already
// migrated against.
func (r Roots) Resolve(folder string) (string, error) {
	if folder == DefaultFolder {
		return r.Databases, nil
	}

	namespace, sub, ok := strings.Cut(folder, "/")
	if !ok {
		return r.Files, nil
	}
	switch namespace {
	case namespaceFiles:
		return filepath.Join(r.Files, sub), nil
	case namespaceDatabases:
		return filepath.Join(r.Databases, sub), nil
	default:
		return "", invalidFolder(folder)
	}
}

// ResolveWithin is Resolve, but rejects a folder whose directory escapes
// both roots (e.g. "files/../../etc") with ErrInvalidFolder.
func (r Roots) ResolveWithin(folder string) (string, error) {
	dir, err := r.Resolve(folder)
	if err != nil {
		return "", err
	}
	if within(r.Files, dir) || within(r.Databases, dir) {
		return dir, nil
	}
	return "", invalidFolder(folder)
}

func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
