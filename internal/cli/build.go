package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ralt/pkgbuilder/internal/catalog"
	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/ralt/pkgbuilder/internal/release"
	"github.com/ralt/pkgbuilder/internal/signer"
	"github.com/ralt/pkgbuilder/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewBuildCmd creates the build command
func NewBuildCmd() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every enabled package",
		Long: `Sends each binary package to its build host, assembles source
packages locally, and waits for the build hosts to return their results.
Finished packages are bundled next to the package root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			logrus.Debugf("Configuration: %+v", *cfg)
			return runBuild(cmd, cfg)
		},
	}
	flags.register(cmd)
	return cmd
}

// publicKeyFile is written to the package root so bundles can be verified
const publicKeyFile = "signing-key.asc"

func exportPublicKey(s signer.Signer, path string) error {
	pub, err := s.GetPublicKey()
	if err != nil {
		return fmt.Errorf("failed to export public key: %w", err)
	}
	if err := utils.WriteFile(path, pub, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	logrus.Debugf("Public key written to %s", path)
	return nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("packages"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func runBuild(cmd *cobra.Command, cfg *models.BuildConfig) error {
	packages, err := catalog.Build(cfg)
	if err != nil {
		return err
	}
	if len(packages) == 0 {
		logrus.Warn("No packages enabled")
		return nil
	}
	logrus.Infof("Building %d packages", len(packages))

	var opts []release.Option
	if cfg.GPGKeyPath != "" {
		s, err := signer.NewGPGSigner(cfg.GPGKeyPath, cfg.GPGPassphrase)
		if err != nil {
			return err
		}
		logrus.Info("GPG signer initialized")
		if err := exportPublicKey(s, filepath.Join(cfg.PackageRoot, publicKeyFile)); err != nil {
			return err
		}
		opts = append(opts, release.WithSigner(s))
	}

	bar := newProgressBar(os.Stderr, len(packages))
	opts = append(opts, release.WithObserver(func(pkg *models.Package) {
		bar.Describe(fmt.Sprintf("%s %s", pkg.Name(), pkg.State()))
		bar.Add(1)
	}))

	report, runErr := release.Run(cmd.Context(), cfg, packages, opts...)
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if report != nil {
		for _, res := range report.Results {
			if res.State == models.StateDone {
				logrus.Infof("%-45s %s", res.Package.Name(), res.Bundle)
			} else {
				logrus.Errorf("%-45s %s: %v", res.Package.Name(), res.State, res.Err)
			}
		}
		logrus.Infof("%d of %d packages built", report.Done(), len(report.Results))
	}
	return runErr
}
