package bundle

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"
)

// ZipWriter writes deflated zip bundles
type ZipWriter struct{}

// NewZipWriter creates a zip bundle writer
func NewZipWriter() *ZipWriter {
	return &ZipWriter{}
}

// Extension returns .zip
func (w *ZipWriter) Extension() string {
	return ".zip"
}

// Write creates the zip archive at destPath
func (w *ZipWriter) Write(ctx context.Context, srcDir, prefix, destPath string) error {
	return commit(destPath, func(f *os.File) error {
		zw := zip.NewWriter(f)

		err := walkTree(ctx, srcDir, prefix, func(path, name string, fi os.FileInfo) error {
			return addZipEntry(zw, path, name, fi)
		})
		if err != nil {
			zw.Close()
			return fmt.Errorf("failed to bundle %s: %w", srcDir, err)
		}
		return zw.Close()
	})
}

func addZipEntry(zw *zip.Writer, path, name string, fi os.FileInfo) error {
	header, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	header.Name = name
	if fi.IsDir() {
		header.Name += "/"
		_, err := zw.CreateHeader(header)
		return err
	}
	if !fi.Mode().IsRegular() {
		return nil
	}
	header.Method = zip.Deflate

	out, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(out, in)
	return err
}
