package assembler

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ralt/pkgbuilder/internal/bundle"
	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/ralt/pkgbuilder/internal/utils"
	"github.com/sirupsen/logrus"
)

// BundlePath returns root/<name>.<ext> for pkg
func (a *Assembler) BundlePath(pkg *models.Package) (string, error) {
	w, err := bundle.ForPackage(pkg, a.compression)
	if err != nil {
		return "", err
	}
	return filepath.Join(a.packageRoot, pkg.Name()+w.Extension()), nil
}

// Bundle archives the package directory into its bundle file: zip for
// Windows, a root-owned tarball for the other platforms
func (a *Assembler) Bundle(ctx context.Context, pkg *models.Package) (string, error) {
	w, err := bundle.ForPackage(pkg, a.compression)
	if err != nil {
		return "", a.fail(pkg, err)
	}
	dest := filepath.Join(a.packageRoot, pkg.Name()+w.Extension())

	if !utils.DirExists(pkg.PackageDir) {
		return "", a.fail(pkg, fmt.Errorf("package directory %s is missing", pkg.PackageDir))
	}
	if err := w.Write(ctx, pkg.PackageDir, pkg.Name(), dest); err != nil {
		return "", a.fail(pkg, err)
	}

	checksums, err := utils.CalculateChecksums(dest)
	if err != nil {
		return "", a.fail(pkg, fmt.Errorf("failed to checksum bundle: %w", err))
	}
	logrus.WithField("package", pkg.Name()).Infof("Bundled %s (%d bytes, sha256 %s)", dest, checksums.Size, checksums.SHA256)

	if err := pkg.Transition(models.StateBundled); err != nil {
		return "", a.fail(pkg, err)
	}
	return dest, nil
}
