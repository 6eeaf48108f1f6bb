package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
)

// Extension is the file extension of job payloads and build results
const Extension = ".tar.zst"

// Compress writes the tree below sourceDir to archivePath as a zstd
// compressed tar. Entries are written in lexical order with zeroed
// timestamps and ownership, so equal trees give equal archives.
func Compress(ctx context.Context, archivePath, sourceDir string) error {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to stat source tree: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", sourceDir)
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()
	self, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	zw, err := zstd.NewWriter(f, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	count := 0
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		// The archive may live inside the tree it packs, under any spelling
		if os.SameFile(fi, self) {
			return nil
		}
		if err := addEntry(tw, path, filepath.ToSlash(rel), fi); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to archive %s: %w", sourceDir, err)
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	logrus.Debugf("Compressed %d entries from %s into %s", count, sourceDir, archivePath)
	return f.Sync()
}

// addEntry writes one file, directory or symlink to the tar stream
func addEntry(tw *tar.Writer, path, name string, fi os.FileInfo) error {
	header := &tar.Header{
		Name:    name,
		Mode:    int64(fi.Mode().Perm()),
		ModTime: time.Unix(0, 0),
		Format:  tar.FormatPAX,
	}

	switch {
	case fi.IsDir():
		header.Typeflag = tar.TypeDir
		header.Name = name + "/"
	case fi.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		header.Typeflag = tar.TypeSymlink
		header.Linkname = target
	case fi.Mode().IsRegular():
		header.Typeflag = tar.TypeReg
		header.Size = fi.Size()
	default:
		logrus.Warnf("Skipping special file %s", path)
		return nil
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}

	if header.Typeflag != tar.TypeReg {
		return nil
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	if _, err := io.Copy(tw, in); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Uncompress unpacks archivePath into destDir, restoring relative paths,
// permissions and content
func Uncompress(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	// Directory modes are applied last so read-only directories can still
	// be filled
	dirModes := make(map[string]os.FileMode)

	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		target, err := entryPath(destDir, header.Name)
		if err != nil {
			return err
		}
		mode := os.FileMode(header.Mode).Perm()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			dirModes[target] = mode
		case tar.TypeReg:
			if err := writeEntry(target, tr, mode); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		default:
			logrus.Warnf("Skipping unsupported archive entry %s", header.Name)
		}
	}

	dirs := make([]string, 0, len(dirModes))
	for dir := range dirModes {
		dirs = append(dirs, dir)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		if err := os.Chmod(dir, dirModes[dir]); err != nil {
			return err
		}
	}

	return nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// Chmod is not subject to the umask
	return os.Chmod(target, mode)
}

// entryPath maps an archive entry name below destDir, rejecting names that
// would escape it
func entryPath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

// ReadFile returns the content of one regular file entry of the archive.
// The boolean is false when the archive has no such entry.
func ReadFile(archivePath, name string) ([]byte, bool, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, false, err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if header.Typeflag == tar.TypeReg && strings.TrimPrefix(header.Name, "./") == name {
			data, err := io.ReadAll(tr)
			return data, err == nil, err
		}
	}
}
