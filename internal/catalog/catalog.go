package catalog

import (
	"fmt"
	"path/filepath"

	"github.com/ralt/pkgbuilder/internal/config"
	"github.com/ralt/pkgbuilder/internal/models"
)

// StageDirName is the directory under the package root holding the
// in-progress working trees
const StageDirName = ".stage"

// variant is one row of the platform matrix
type variant struct {
	platform models.Platform
	arches   []models.Arch
	source   bool
}

var matrix = []variant{
	{platform: models.PlatformWindows, arches: []models.Arch{models.Arch64, models.Arch32}, source: true},
	{platform: models.PlatformMac, arches: []models.Arch{models.ArchUniversal}},
	{platform: models.PlatformLinux, arches: []models.Arch{models.Arch64, models.Arch32}, source: true},
}

// Build expands the configuration matrix into the ordered list of packages
// for one run. Binary packages come first, then source packages. Build does
// no I/O; license headers must already be loaded into cfg.
func Build(cfg *models.BuildConfig) ([]*models.Package, error) {
	if cfg.ProductVersion == "" {
		return nil, models.ConfigError(fmt.Errorf("product version is required"))
	}
	if cfg.PackageRoot == "" {
		return nil, models.ConfigError(fmt.Errorf("package root is required"))
	}

	var packages []*models.Package

	if cfg.BuildBinary {
		for _, v := range matrix {
			if !platformEnabled(cfg, v.platform) {
				continue
			}
			for _, arch := range v.arches {
				if !archEnabled(cfg, arch) {
					continue
				}
				for _, l := range config.EnabledLicenses(cfg) {
					pkg, err := newPackage(cfg, v.platform, arch, l, true)
					if err != nil {
						return nil, err
					}
					packages = append(packages, pkg)
				}
			}
		}
	}

	if cfg.BuildSource {
		for _, v := range matrix {
			if !v.source || !platformEnabled(cfg, v.platform) {
				continue
			}
			for _, l := range config.EnabledLicenses(cfg) {
				// Evaluation licenses only ship as binaries
				if l == models.LicenseEval {
					continue
				}
				pkg, err := newPackage(cfg, v.platform, models.ArchNone, l, false)
				if err != nil {
					return nil, err
				}
				packages = append(packages, pkg)
			}
		}
	}

	// Paths are assigned once, after every package is configured
	seen := make(map[string]bool, len(packages))
	for _, pkg := range packages {
		name := pkg.Name()
		if seen[name] {
			return nil, models.ConfigError(fmt.Errorf("duplicate package name %s", name))
		}
		seen[name] = true
		pkg.PackageDir = filepath.Join(cfg.PackageRoot, name)
		pkg.StageDir = filepath.Join(cfg.PackageRoot, StageDirName, name)
	}

	return packages, nil
}

func newPackage(cfg *models.BuildConfig, platform models.Platform, arch models.Arch, license models.License, binary bool) (*models.Package, error) {
	header, ok := cfg.LicenseHeaders[license]
	if !ok {
		return nil, models.ConfigError(fmt.Errorf("no license header loaded for %s", license))
	}

	pkg := &models.Package{
		Platform:      platform,
		Arch:          arch,
		License:       license,
		Binary:        binary,
		Prefix:        cfg.PackagePrefix,
		Version:       cfg.ProductVersion,
		LicenseHeader: header,
	}
	applyCommonRules(pkg)

	if binary {
		server, err := buildServer(cfg, platform, arch)
		if err != nil {
			return nil, err
		}
		pkg.BuildServer = server
		if err := applyBinaryRules(pkg); err != nil {
			return nil, err
		}
	}

	return pkg, nil
}

// buildServer resolves the host for a platform/arch pair
func buildServer(cfg *models.BuildConfig, platform models.Platform, arch models.Arch) (string, error) {
	if host := cfg.BuildServers[platform.String()+arch.String()]; host != "" {
		return host, nil
	}
	if host := cfg.BuildServers[platform.String()]; host != "" {
		return host, nil
	}
	return "", models.ConfigError(fmt.Errorf("no build server configured for %s%s", platform, arch))
}

func platformEnabled(cfg *models.BuildConfig, p models.Platform) bool {
	switch p {
	case models.PlatformMac:
		return cfg.BuildMac
	case models.PlatformWindows:
		return cfg.BuildWindows
	case models.PlatformLinux:
		return cfg.BuildLinux
	}
	return false
}

func archEnabled(cfg *models.BuildConfig, a models.Arch) bool {
	switch a {
	case models.Arch32:
		return cfg.Build32
	case models.Arch64:
		return cfg.Build64
	case models.ArchUniversal:
		return true
	}
	return false
}
