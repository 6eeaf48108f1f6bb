package assembler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/ralt/pkgbuilder/internal/utils"
	"github.com/sirupsen/logrus"
)

// TranscriptPath returns root/.<name>.<kind>, e.g. kind "copylog"
func (a *Assembler) TranscriptPath(pkg *models.Package, kind string) string {
	return filepath.Join(a.packageRoot, fmt.Sprintf(".%s.%s", pkg.Name(), kind))
}

func (a *Assembler) writeTranscript(pkg *models.Package, kind string, lines []string) error {
	path := a.TranscriptPath(pkg, kind)
	logrus.Debugf("   - log into: %s", path)
	if err := utils.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return nil
}
