package archive

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

func TestCompressRoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"task.sh":                 "ant\n",
		".jobticket":              "ticket\n",
		"qtjambi/qtjambi_core.h":  "// core\n",
		"com/trolltech/qt/A.java": "class A {}\n",
	}
	writeFiles(t, src, files)
	if err := os.Chmod(filepath.Join(src, "task.sh"), 0755); err != nil {
		t.Fatalf("Failed to chmod: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(src, "empty", "dir"), 0755); err != nil {
		t.Fatalf("Failed to create empty dir: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "job"+Extension)
	if err := Compress(context.Background(), archivePath, src); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out")
	if err := Uncompress(context.Background(), archivePath, dest); err != nil {
		t.Fatalf("Uncompress failed: %v", err)
	}

	for rel, want := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Errorf("Missing %s: %v", rel, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}

	if info, err := os.Stat(filepath.Join(dest, "empty", "dir")); err != nil || !info.IsDir() {
		t.Errorf("Expected empty directory to survive: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "task.sh"))
		if err != nil {
			t.Fatalf("Failed to stat task.sh: %v", err)
		}
		if info.Mode().Perm() != 0755 {
			t.Errorf("task.sh mode = %v, want 0755", info.Mode().Perm())
		}
	}
}

func TestCompressDeterministic(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"b": "2", "a/c": "3", "a/b": "1"})
	out := t.TempDir()

	first := filepath.Join(out, "one"+Extension)
	second := filepath.Join(out, "two"+Extension)
	if err := Compress(context.Background(), first, src); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if err := Compress(context.Background(), second, src); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Error("Expected equal trees to give equal archives")
	}
}

func TestCompressSkipsItself(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"file": "x"})
	archivePath := filepath.Join(src, "self"+Extension)

	if err := Compress(context.Background(), archivePath, src); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if _, ok, err := ReadFile(archivePath, "self"+Extension); err != nil || ok {
		t.Errorf("Expected archive to not contain itself: ok=%v err=%v", ok, err)
	}
}

func TestCompressSkipsItselfRelativePath(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"file": "x"})

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(src); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	// Relative archive path, absolute source tree
	if err := Compress(context.Background(), "self"+Extension, src); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if _, ok, err := ReadFile("self"+Extension, "self"+Extension); err != nil || ok {
		t.Errorf("Expected archive to not contain itself: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := ReadFile("self"+Extension, "file"); !ok {
		t.Error("Expected the tree content in the archive")
	}
}

func TestReadFile(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{".jobticket": "abc\n", "dir/x": "y"})
	archivePath := filepath.Join(t.TempDir(), "job"+Extension)
	if err := Compress(context.Background(), archivePath, src); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	data, ok, err := ReadFile(archivePath, ".jobticket")
	if err != nil || !ok {
		t.Fatalf("ReadFile failed: ok=%v err=%v", ok, err)
	}
	if string(data) != "abc\n" {
		t.Errorf("ReadFile = %q", data)
	}

	if _, ok, err := ReadFile(archivePath, "missing"); err != nil || ok {
		t.Errorf("Expected missing entry: ok=%v err=%v", ok, err)
	}
}

func TestUncompressRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Extension)
	if err := os.WriteFile(path, []byte("not an archive"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := Uncompress(context.Background(), path, t.TempDir()); err == nil {
		t.Fatal("Expected garbage archive to fail")
	}
}

func TestStream(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"a": "payload"})
	archivePath := filepath.Join(t.TempDir(), "job"+Extension)
	if err := Compress(context.Background(), archivePath, src); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	want, _ := os.ReadFile(archivePath)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer ln.Close()

	received := filepath.Join(t.TempDir(), "received"+Extension)
	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		_, err = ReceiveStream(conn, received)
		done <- err
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	n, err := SendStream(conn, archivePath)
	conn.Close()
	if err != nil {
		t.Fatalf("SendStream failed: %v", err)
	}
	if n != int64(len(want)) {
		t.Errorf("Sent %d bytes, want %d", n, len(want))
	}

	if err := <-done; err != nil {
		t.Fatalf("ReceiveStream failed: %v", err)
	}
	got, _ := os.ReadFile(received)
	if !bytes.Equal(got, want) {
		t.Error("Received bytes differ from sent bytes")
	}
}
