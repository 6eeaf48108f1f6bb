package archive

import (
	"fmt"
	"io"
	"os"
)

// SendStream copies the archive at archivePath to w in full. There is no
// framing: the receiver relies on the sender closing the connection.
func SendStream(w io.Writer, archivePath string) (int64, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", archivePath, err)
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("failed to send %s: %w", archivePath, err)
	}
	return n, nil
}

// ReceiveStream reads r until the peer closes it and stores the bytes at
// archivePath
func ReceiveStream(r io.Reader, archivePath string) (int64, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("failed to receive into %s: %w", archivePath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}
