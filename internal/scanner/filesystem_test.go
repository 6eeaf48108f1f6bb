package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystemScannerBottomUp(t *testing.T) {
	dir, err := os.MkdirTemp("", "scanner-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	files := []string{
		"a/b/c/deep.java",
		"a/b/mid.h",
		"a/top.txt",
		"z.html",
	}
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	entries, err := NewFileSystemScanner().Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	pos := make(map[string]int, len(entries))
	for i, e := range entries {
		pos[e.Path] = i
	}
	if len(entries) != 7 {
		t.Fatalf("Expected 7 entries, got %d: %+v", len(entries), entries)
	}

	// Children come before their parents
	pairs := [][2]string{
		{"a/b/c/deep.java", "a/b/c"},
		{"a/b/c", "a/b"},
		{"a/b/mid.h", "a/b"},
		{"a/b", "a"},
		{"a/top.txt", "a"},
	}
	for _, p := range pairs {
		if pos[p[0]] > pos[p[1]] {
			t.Errorf("Expected %s before %s", p[0], p[1])
		}
	}

	// Lexical order among equal depth
	if pos["a"] > pos["z.html"] {
		t.Error("Expected a before z.html")
	}

	for _, e := range entries {
		switch e.Path {
		case "a/b":
			if e.Type != TypeDir {
				t.Errorf("%s: type %s", e.Path, e.Type)
			}
		case "a/b/mid.h", "z.html", "a/b/c/deep.java":
			if !e.Text || e.Type != TypeFile {
				t.Errorf("%s: expected text file, got %+v", e.Path, e)
			}
		case "a/top.txt":
			if e.Text {
				t.Errorf("%s: did not expect text file", e.Path)
			}
		}
	}
}

func TestFileSystemScannerCancelled(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileSystemScanner().Scan(ctx, dir); err == nil {
		t.Fatal("Expected cancelled scan to fail")
	}
}

func TestIsTextFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"qtjambi_core.cpp", true},
		{"include/qtjambi_core.h", true},
		{"com/trolltech/qt/QObject.java", true},
		{"readme.html", true},
		{"designer/form.ui", true},
		{"LICENSE", true},
		{"LICENSE.GPL", true},
		{"dir\\LICENSE.EVAL", true},
		{"qtjambi.sh", false},
		{"libqtjambi.so", false},
		{"qtjambi.jar", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := IsTextFile(tt.name); got != tt.want {
			t.Errorf("IsTextFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDepth(t *testing.T) {
	if Depth("a") != 1 || Depth("a/b/c") != 3 || Depth("a/b/") != 2 {
		t.Error("Unexpected depth")
	}
}
