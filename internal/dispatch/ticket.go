package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ralt/pkgbuilder/internal/archive"
	"github.com/ralt/pkgbuilder/internal/models"
)

// NewTicket returns a fresh job ticket
func NewTicket() string {
	return uuid.NewString()
}

// WriteTicket stores ticket at the root of dir
func WriteTicket(dir, ticket string) error {
	path := filepath.Join(dir, models.TicketFile)
	if err := os.WriteFile(path, []byte(ticket+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write job ticket: %w", err)
	}
	return nil
}

// ReadTicket returns the ticket carried by a job or result archive. The
// boolean is false when the archive carries none.
func ReadTicket(archivePath string) (string, bool, error) {
	data, ok, err := archive.ReadFile(archivePath, models.TicketFile)
	if err != nil || !ok {
		return "", false, err
	}
	ticket := strings.TrimSpace(string(data))
	if _, err := uuid.Parse(ticket); err != nil {
		return "", false, fmt.Errorf("malformed job ticket %q: %w", ticket, err)
	}
	return ticket, true, nil
}
