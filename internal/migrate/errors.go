package migrate

// Kind classifies a migration failure.
type Kind int

const (
	KindInvalidFolder Kind = iota + 1
	KindDirectoryNotFound
	KindCopyFailed
	KindDeleteFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidFolder:
		return "invalid_folder"
	case KindDirectoryNotFound:
		return "directory_not_found"
	case KindCopyFailed:
		return "copy_failed"
	case KindDeleteFailed:
		return "delete_failed"
	default:
		return "unknown"
	}
}

// Error is returned by every operation in this package. Match it with
// errors.Is against the Err* sentinels, or errors.As to read the fields.
type Error struct {
	Kind    Kind
	Message string // human-readable, names the offending folder or file
	Path    string
	Cause   error // underlying filesystem error, if any
}

// Sentinels for errors.Is. Only Kind is compared.
var (
	ErrInvalidFolder     = &Error{Kind: KindInvalidFolder}
	ErrDirectoryNotFound = &Error{Kind: KindDirectoryNotFound}
	ErrCopyFailed        = &Error{Kind: KindCopyFailed}
	ErrDeleteFailed      = &Error{Kind: KindDeleteFailed}
)

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func invalidFolder(folder string) *Error {
	return &Error{
		Kind:    KindInvalidFolder,
		Message: "Folder " + folder + " not allowed",
		Path:    folder,
	}
}

func directoryNotFound(dir string, cause error) *Error {
	return &Error{
		Kind:    KindDirectoryNotFound,
		Message: "Folder " + dir + " does not exist",
		Path:    dir,
		Cause:   cause,
	}
}

func copyFailed(from, to, dst string, cause error) *Error {
	return &Error{
		Kind:    KindCopyFailed,
		Message: "Failed in copy " + from + " to " + to,
		Path:    dst,
		Cause:   cause,
	}
}

func deleteFailed(name, path string, cause error) *Error {
	return &Error{
		Kind:    KindDeleteFailed,
		Message: "Failed in delete " + name,
		Path:    path,
		Cause:   cause,
	}
}
