package assembler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/sirupsen/logrus"
)

// Macro tokens recognised in text files
const (
	TokenYear        = "$THISYEAR$"
	TokenLegalEntity = "$TROLLTECH$"
	TokenProduct     = "$PRODUCT$"
	TokenLicense     = "$LICENSE$"
	TokenCPPLicense  = "$CPP_LICENSE$"
	TokenJavaLicense = "$JAVA_LICENSE$"
)

// substitution is one token and its replacement
type substitution struct {
	token       []byte
	replacement []byte
}

// substitutions returns the replacements for pkg in application order
func (a *Assembler) substitutions(pkg *models.Package) []substitution {
	year := strconv.Itoa(a.now().Year())
	pairs := [][2]string{
		{TokenYear, year},
		{TokenLegalEntity, a.legalEntity},
		{TokenProduct, a.productName},
		{TokenLicense, pkg.LicenseHeader},
		{TokenCPPLicense, pkg.LicenseHeader},
		{TokenJavaLicense, pkg.LicenseHeader},
	}

	subs := make([]substitution, len(pairs))
	for i, p := range pairs {
		subs[i] = substitution{token: []byte(p[0]), replacement: []byte(p[1])}
	}
	return subs
}

// ExpandMacros rewrites every text file of the stage tree, replacing macro
// tokens with the year, product identity and the package's license header
func (a *Assembler) ExpandMacros(ctx context.Context, pkg *models.Package) error {
	entries, err := a.scanner.Scan(ctx, pkg.StageDir)
	if err != nil {
		return a.fail(pkg, err)
	}

	subs := a.substitutions(pkg)
	expanded := 0

	for _, entry := range entries {
		if !entry.Text {
			continue
		}
		path := filepath.Join(pkg.StageDir, filepath.FromSlash(entry.Path))

		content, err := os.ReadFile(path)
		if err != nil {
			return a.fail(pkg, fmt.Errorf("failed to read %s: %w", entry.Path, err))
		}

		out := content
		for _, sub := range subs {
			out = bytes.ReplaceAll(out, sub.token, sub.replacement)
		}
		if bytes.Equal(out, content) {
			continue
		}

		// WriteFile keeps the mode of an existing file
		if err := os.WriteFile(path, out, 0644); err != nil {
			return a.fail(pkg, fmt.Errorf("failed to write %s: %w", entry.Path, err))
		}
		expanded++
	}

	logrus.WithField("package", pkg.Name()).Debugf("Expanded macros in %d files", expanded)
	return nil
}
