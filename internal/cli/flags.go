package cli

import (
	"time"

	"github.com/ralt/pkgbuilder/internal/config"
	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/spf13/cobra"
)

// configFlags are the settings overridable on the command line. A flag only
// overrides the config file when it was given explicitly.
type configFlags struct {
	path            string
	packageRoot     string
	productVersion  string
	qtVersion       string
	gpgKey          string
	gpgPassphrase   string
	responseTimeout time.Duration
	listen          string

	noMac, noWin, noLinux          bool
	noEval, noGPL, noCommercial    bool
	no32, no64, noSource, noBinary bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.path, "config", "c", "", "Path to YAML configuration file")
	fs.StringVarP(&f.packageRoot, "package-root", "r", "", "Directory holding the source tree and receiving packages")
	fs.StringVar(&f.productVersion, "product-version", "", "Product version, e.g. 4.4.0_01")
	fs.StringVar(&f.qtVersion, "qt-version", "", "Qt version passed to the build hosts")

	fs.BoolVar(&f.noMac, "no-mac", false, "Skip Mac OS X packages")
	fs.BoolVar(&f.noWin, "no-win", false, "Skip Windows packages")
	fs.BoolVar(&f.noLinux, "no-linux", false, "Skip Linux packages")
	fs.BoolVar(&f.noEval, "no-eval", false, "Skip evaluation packages")
	fs.BoolVar(&f.noGPL, "no-gpl", false, "Skip GPL packages")
	fs.BoolVar(&f.noCommercial, "no-commercial", false, "Skip commercial packages")
	fs.BoolVar(&f.no32, "no-32bit", false, "Skip 32-bit packages")
	fs.BoolVar(&f.no64, "no-64bit", false, "Skip 64-bit packages")
	fs.BoolVar(&f.noSource, "no-source", false, "Skip source packages")
	fs.BoolVar(&f.noBinary, "no-binary", false, "Skip binary packages")

	fs.StringVarP(&f.gpgKey, "gpg-key", "k", "", "Path to GPG private key for signing bundles")
	fs.StringVarP(&f.gpgPassphrase, "gpg-passphrase", "p", "", "GPG key passphrase")
	fs.DurationVar(&f.responseTimeout, "response-timeout", 0, "How long to wait for each build host (0 waits forever)")
	fs.StringVar(&f.listen, "listen", "", "Address to receive build results on")
}

// load builds the effective, validated configuration
func (f *configFlags) load(cmd *cobra.Command) (*models.BuildConfig, error) {
	cfg := config.Default()
	if f.path != "" {
		var err error
		if cfg, err = config.Load(f.path); err != nil {
			return nil, err
		}
	}

	fs := cmd.Flags()
	setString := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	setString("package-root", &cfg.PackageRoot, f.packageRoot)
	setString("product-version", &cfg.ProductVersion, f.productVersion)
	setString("qt-version", &cfg.QtVersion, f.qtVersion)
	setString("gpg-key", &cfg.GPGKeyPath, f.gpgKey)
	setString("gpg-passphrase", &cfg.GPGPassphrase, f.gpgPassphrase)
	setString("listen", &cfg.ListenAddress, f.listen)
	if fs.Changed("response-timeout") {
		cfg.ResponseTimeout = f.responseTimeout
	}

	disable := []struct {
		off bool
		dst *bool
	}{
		{f.noMac, &cfg.BuildMac},
		{f.noWin, &cfg.BuildWindows},
		{f.noLinux, &cfg.BuildLinux},
		{f.noEval, &cfg.BuildEval},
		{f.noGPL, &cfg.BuildGPL},
		{f.noCommercial, &cfg.BuildCommercial},
		{f.no32, &cfg.Build32},
		{f.no64, &cfg.Build64},
		{f.noSource, &cfg.BuildSource},
		{f.noBinary, &cfg.BuildBinary},
	}
	for _, d := range disable {
		if d.off {
			*d.dst = false
		}
	}

	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}
	if err := config.LoadLicenseHeaders(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
