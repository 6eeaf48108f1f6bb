package bundle

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// TarWriter writes compressed tarballs owned by root
type TarWriter struct {
	compression string
}

// NewTarWriter creates a tar bundle writer using gzip or xz compression
func NewTarWriter(compression string) (*TarWriter, error) {
	switch compression {
	case "", "gzip":
		return &TarWriter{compression: "gzip"}, nil
	case "xz":
		return &TarWriter{compression: "xz"}, nil
	default:
		return nil, fmt.Errorf("unsupported tar compression %q", compression)
	}
}

// Extension returns .tar.gz or .tar.xz
func (w *TarWriter) Extension() string {
	if w.compression == "xz" {
		return ".tar.xz"
	}
	return ".tar.gz"
}

// Write creates the tarball at destPath
func (w *TarWriter) Write(ctx context.Context, srcDir, prefix, destPath string) error {
	return commit(destPath, func(f *os.File) error {
		cw, err := w.compressor(f)
		if err != nil {
			return err
		}
		tw := tar.NewWriter(cw)

		err = walkTree(ctx, srcDir, prefix, func(path, name string, fi os.FileInfo) error {
			return addTarEntry(tw, path, name, fi)
		})
		if err != nil {
			cw.Close()
			return fmt.Errorf("failed to bundle %s: %w", srcDir, err)
		}

		if err := tw.Close(); err != nil {
			cw.Close()
			return err
		}
		return cw.Close()
	})
}

func (w *TarWriter) compressor(out io.Writer) (io.WriteCloser, error) {
	if w.compression == "xz" {
		return xz.NewWriter(out)
	}
	return gzip.NewWriter(out), nil
}

// addTarEntry adds a file to a tar archive with root ownership
func addTarEntry(tw *tar.Writer, path, name string, fi os.FileInfo) error {
	link := ""
	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		link = target
	}

	header, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return err
	}
	header.Name = name
	if fi.IsDir() && !strings.HasSuffix(name, "/") {
		header.Name += "/"
	}
	header.Uid = 0
	header.Gid = 0
	header.Uname = "root"
	header.Gname = "root"

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return nil
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(tw, in)
	return err
}
