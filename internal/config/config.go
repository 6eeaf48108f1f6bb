package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ralt/pkgbuilder/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServerPort    = 8184
	DefaultListenAddress = ":8185"
)

// Default returns a BuildConfig with every toggle enabled and the
// built-in product identity
func Default() models.BuildConfig {
	return models.BuildConfig{
		ProductVersion:    "4.4.0_01",
		PackagePrefix:     "qtjambi",
		ProductName:       "Qt Jambi",
		LegalEntity:       "Trolltech ASA",
		BuildMac:          true,
		BuildWindows:      true,
		BuildLinux:        true,
		Build32:           true,
		Build64:           true,
		BuildGPL:          true,
		BuildEval:         true,
		BuildCommercial:   true,
		BuildBinary:       true,
		BuildSource:       true,
		BuildServers:      map[string]string{},
		ServerPort:        DefaultServerPort,
		ListenAddress:     DefaultListenAddress,
		DialTimeout:       30 * time.Second,
		BundleCompression: "gzip",
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (models.BuildConfig, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, models.ConfigError(fmt.Errorf("failed to open config: %w", err))
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode decodes YAML from r into cfg, keeping values absent from the
// document untouched
func Decode(r io.Reader, cfg *models.BuildConfig) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return models.ConfigError(fmt.Errorf("failed to parse config: %w", err))
	}
	return nil
}

// Validate fills derived settings and rejects missing required values
func Validate(cfg *models.BuildConfig) error {
	if cfg.ProductVersion == "" {
		return models.ConfigError(fmt.Errorf("product-version is required"))
	}
	if cfg.PackageRoot == "" {
		return models.ConfigError(fmt.Errorf("package-root is required"))
	}

	root, err := filepath.Abs(cfg.PackageRoot)
	if err != nil {
		return models.ConfigError(fmt.Errorf("failed to resolve package-root: %w", err))
	}
	cfg.PackageRoot = root

	if cfg.PackagePrefix == "" {
		return models.ConfigError(fmt.Errorf("package-prefix is required"))
	}
	if cfg.SourceDir == "" {
		cfg.SourceDir = filepath.Join(root, cfg.PackagePrefix)
	}

	switch strings.ToLower(cfg.BundleCompression) {
	case "", "gzip":
		cfg.BundleCompression = "gzip"
	case "xz":
		cfg.BundleCompression = "xz"
	default:
		return models.ConfigError(fmt.Errorf("unknown bundle compression %q", cfg.BundleCompression))
	}

	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return models.ConfigError(fmt.Errorf("invalid server port %d", cfg.ServerPort))
	}
	if cfg.DialRetries < 0 {
		return models.ConfigError(fmt.Errorf("dial-retries must not be negative"))
	}

	for key := range cfg.BuildServers {
		if _, _, err := ParseServerKey(key); err != nil {
			return err
		}
	}

	return nil
}

// ParseServerKey splits a build_servers key such as "win64" or "mac" into
// platform and arch
func ParseServerKey(key string) (models.Platform, models.Arch, error) {
	for _, p := range models.Platforms {
		name := p.String()
		if !strings.HasPrefix(key, name) {
			continue
		}
		arch, err := models.ParseArch(strings.TrimPrefix(key, name))
		if err != nil {
			return 0, 0, models.ConfigError(fmt.Errorf("bad build server key %q: %w", key, err))
		}
		return p, arch, nil
	}
	return 0, 0, models.ConfigError(fmt.Errorf("bad build server key %q", key))
}

// EnabledLicenses returns the licenses switched on in cfg
func EnabledLicenses(cfg *models.BuildConfig) []models.License {
	var out []models.License
	for _, l := range models.Licenses {
		if LicenseEnabled(cfg, l) {
			out = append(out, l)
		}
	}
	return out
}

// LicenseEnabled reports whether the toggle for l is on
func LicenseEnabled(cfg *models.BuildConfig, l models.License) bool {
	switch l {
	case models.LicenseGPL:
		return cfg.BuildGPL
	case models.LicenseEval:
		return cfg.BuildEval
	case models.LicenseCommercial:
		return cfg.BuildCommercial
	}
	return false
}
