package assembler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/ralt/pkgbuilder/internal/scanner"
	"github.com/ralt/pkgbuilder/internal/signer"
	"github.com/ralt/pkgbuilder/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	// FailureMarker is left at the tree root by a build host whose compile failed
	FailureMarker = "FATAL.ERROR"

	// TaskLog is the build host's log of the build script
	TaskLog = ".task.log"

	metaInfDir = "META-INF"
	javadocDir = "doc/html"
)

// Assembler turns a checked-out tree into job payloads and final bundles
type Assembler struct {
	sourceDir   string
	packageRoot string
	javadocJar  string
	productName string
	legalEntity string
	compression string

	scanner scanner.Scanner
	signer  signer.Signer
	now     func() time.Time
}

// Option customises an Assembler
type Option func(*Assembler)

// WithSigner signs every bundle with s
func WithSigner(s signer.Signer) Option {
	return func(a *Assembler) {
		a.signer = s
	}
}

// WithClock replaces time.Now for $THISYEAR$ expansion
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// New creates an assembler for one run
func New(cfg *models.BuildConfig, opts ...Option) *Assembler {
	a := &Assembler{
		sourceDir:   cfg.SourceDir,
		packageRoot: cfg.PackageRoot,
		javadocJar:  cfg.JavadocJar,
		productName: cfg.ProductName,
		legalEntity: cfg.LegalEntity,
		compression: cfg.BundleCompression,
		scanner:     scanner.NewFileSystemScanner(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prepare creates a fresh copy of the canonical source tree in the
// package's stage directory
func (a *Assembler) Prepare(ctx context.Context, pkg *models.Package) error {
	log := logrus.WithField("package", pkg.Name())

	if !utils.DirExists(a.sourceDir) {
		return a.fail(pkg, fmt.Errorf("source tree %s is missing", a.sourceDir))
	}
	if err := ctx.Err(); err != nil {
		return a.fail(pkg, err)
	}

	if err := os.RemoveAll(pkg.StageDir); err != nil {
		return a.fail(pkg, fmt.Errorf("failed to clear stage directory: %w", err))
	}
	if err := utils.EnsureDir(filepath.Dir(pkg.StageDir)); err != nil {
		return a.fail(pkg, fmt.Errorf("failed to create stage location: %w", err))
	}

	log.Debugf("Copying %s to %s", a.sourceDir, pkg.StageDir)
	if err := utils.CopyTree(a.sourceDir, pkg.StageDir); err != nil {
		return a.fail(pkg, fmt.Errorf("failed to copy source tree: %w", err))
	}

	return pkg.Transition(models.StatePrepared)
}

// PostProcess turns a prepared or received tree into the final bundle. A
// failure marker in the tree aborts this package only.
func (a *Assembler) PostProcess(ctx context.Context, pkg *models.Package) (string, error) {
	log := logrus.WithField("package", pkg.Name())
	log.Info("Post-processing package")

	dir := pkg.StageDir
	if utils.FileExists(filepath.Join(dir, FailureMarker)) {
		err := models.RemoteBuildError(pkg.Name(), fmt.Errorf("build host %s reported a failed build", pkg.BuildServer))
		log.Error("Remote build failed, skipping package")
		if terr := pkg.Transition(models.StateFailed); terr != nil {
			log.Warn(terr)
		}
		return "", err
	}

	if taskLog := filepath.Join(dir, TaskLog); utils.FileExists(taskLog) {
		if err := utils.CopyFile(taskLog, a.TranscriptPath(pkg, "tasklog")); err != nil {
			log.Warnf("Failed to keep task log: %v", err)
		}
	}

	log.Debug("Creating directories...")
	for _, mkdir := range pkg.Mkdirs {
		if err := utils.EnsureDir(filepath.Join(dir, filepath.FromSlash(mkdir))); err != nil {
			return "", a.fail(pkg, fmt.Errorf("failed to create %s: %w", mkdir, err))
		}
	}

	if err := a.ApplyFileRules(ctx, pkg); err != nil {
		return "", err
	}

	if pkg.Binary {
		if err := a.installBinaryContent(pkg); err != nil {
			return "", a.fail(pkg, err)
		}
	}

	if err := a.ExpandMacros(ctx, pkg); err != nil {
		return "", err
	}
	if err := pkg.Transition(models.StatePostProcessed); err != nil {
		return "", a.fail(pkg, err)
	}

	if err := a.commit(pkg); err != nil {
		return "", a.fail(pkg, err)
	}

	bundlePath, err := a.Bundle(ctx, pkg)
	if err != nil {
		return "", err
	}

	if a.signer != nil {
		sigPath, err := a.signer.SignFile(bundlePath)
		if err != nil {
			return "", a.fail(pkg, err)
		}
		log.Infof("Bundle signed: %s", sigPath)
	}

	if err := pkg.Transition(models.StateDone); err != nil {
		return "", a.fail(pkg, err)
	}
	return bundlePath, nil
}

// installBinaryContent unpacks javadoc and the platform jar into the tree
func (a *Assembler) installBinaryContent(pkg *models.Package) error {
	dir := pkg.StageDir

	if a.javadocJar != "" {
		logrus.Debugf("Unpacking javadoc into %s", javadocDir)
		if err := unpackJar(a.javadocJar, filepath.Join(dir, filepath.FromSlash(javadocDir))); err != nil {
			return fmt.Errorf("failed to unpack javadoc: %w", err)
		}
	}

	jar := filepath.Join(dir, pkg.PlatformJar)
	logrus.Debugf("Unpacking platform jar %s", pkg.PlatformJar)
	if err := unpackJar(jar, dir); err != nil {
		return fmt.Errorf("failed to unpack platform jar: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(dir, metaInfDir)); err != nil {
		return fmt.Errorf("failed to strip %s: %w", metaInfDir, err)
	}

	if pkg.Platform != models.PlatformWindows {
		if err := setPermissions(dir, pkg.Launchers); err != nil {
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}
	return nil
}

// commit replaces the package directory with the finished stage directory
func (a *Assembler) commit(pkg *models.Package) error {
	if err := os.RemoveAll(pkg.PackageDir); err != nil {
		return fmt.Errorf("failed to remove old package directory: %w", err)
	}
	if err := os.Rename(pkg.StageDir, pkg.PackageDir); err != nil {
		return fmt.Errorf("failed to move stage into place: %w", err)
	}
	return nil
}

// fail marks pkg failed and wraps err as an assembly error
func (a *Assembler) fail(pkg *models.Package, err error) error {
	if terr := pkg.Transition(models.StateFailed); terr != nil {
		logrus.Debug(terr)
	}
	if models.IsErrorType(err, models.ErrAssembly) {
		return err
	}
	return models.AssemblyError(pkg.Name(), err)
}
