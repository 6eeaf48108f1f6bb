package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// FileSystemScanner implements Scanner interface for filesystem scanning
type FileSystemScanner struct{}

// NewFileSystemScanner creates a new filesystem scanner
func NewFileSystemScanner() *FileSystemScanner {
	return &FileSystemScanner{}
}

// Scan recursively scans a directory and returns its entries bottom-up:
// deeper paths first, lexical order among paths of equal depth
func (s *FileSystemScanner) Scan(ctx context.Context, dir string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		entry := Entry{Path: rel, Type: TypeFile}
		if d.IsDir() {
			entry.Type = TypeDir
		} else {
			entry.Text = IsTextFile(rel)
		}
		entries = append(entries, entry)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := Depth(entries[i].Path), Depth(entries[j].Path)
		if di != dj {
			return di > dj
		}
		return entries[i].Path < entries[j].Path
	})

	logrus.Debugf("Found %d entries in %s", len(entries), dir)
	return entries, nil
}

// Depth returns the number of path elements in a slash-separated path
func Depth(rel string) int {
	return strings.Count(strings.Trim(rel, "/"), "/") + 1
}
