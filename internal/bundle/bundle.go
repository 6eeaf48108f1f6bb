package bundle

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ralt/pkgbuilder/internal/models"
)

// Writer produces the final end-user archive of a package directory
type Writer interface {
	// Write archives srcDir into destPath. Every entry is placed under a
	// top-level directory named prefix.
	Write(ctx context.Context, srcDir, prefix, destPath string) error

	// Extension returns the file extension including the leading dot
	Extension() string
}

// ForPackage returns the bundle writer for pkg's platform: zip for the
// Windows family, tar with root ownership everywhere else
func ForPackage(pkg *models.Package, compression string) (Writer, error) {
	switch pkg.Platform {
	case models.PlatformWindows:
		return NewZipWriter(), nil
	case models.PlatformMac, models.PlatformLinux:
		return NewTarWriter(compression)
	default:
		return nil, models.ConfigError(fmt.Errorf("no bundle format for platform %q", pkg.Platform))
	}
}

// walkFunc receives each entry with its slash-separated archive name
type walkFunc func(path, name string, fi os.FileInfo) error

// walkTree visits srcDir in lexical order, including srcDir itself as prefix/
func walkTree(ctx context.Context, srcDir, prefix string, fn walkFunc) error {
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := prefix
		if rel != "." {
			name = prefix + "/" + filepath.ToSlash(rel)
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		return fn(path, name, fi)
	})
}

// commit writes through a temporary file in the destination directory and
// renames it into place once complete
func commit(destPath string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, destPath)
}
