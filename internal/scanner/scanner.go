package scanner

import "context"

// EntryType represents the kind of a tree entry
type EntryType int

const (
	TypeUnknown EntryType = iota
	TypeFile
	TypeDir
)

// String returns the string representation of EntryType
func (et EntryType) String() string {
	switch et {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	default:
		return "unknown"
	}
}

// Entry is one path found while scanning a package tree
type Entry struct {
	// Path is slash-separated and relative to the scanned root
	Path string
	Type EntryType
	Text bool
}

// Scanner walks package trees
type Scanner interface {
	// Scan lists every entry below dir. Children are always listed before
	// their parent directory.
	Scan(ctx context.Context, dir string) ([]Entry, error)
}
