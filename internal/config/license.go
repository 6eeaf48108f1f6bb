package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/sirupsen/logrus"
)

// HeaderFile returns the template file name holding the header for l
func HeaderFile(l models.License) string {
	return l.String() + "_header.txt"
}

// LoadLicenseHeaders reads the license header template of every enabled
// license from cfg.LicenseDir into cfg.LicenseHeaders
func LoadLicenseHeaders(cfg *models.BuildConfig) error {
	licenses := EnabledLicenses(cfg)
	if len(licenses) == 0 {
		return nil
	}
	if cfg.LicenseDir == "" {
		return models.ConfigError(fmt.Errorf("license-dir is required"))
	}

	headers := make(map[models.License]string, len(licenses))
	for _, l := range licenses {
		path := filepath.Join(cfg.LicenseDir, HeaderFile(l))
		data, err := os.ReadFile(path)
		if err != nil {
			return models.ConfigError(fmt.Errorf("failed to read %s license header: %w", l, err))
		}
		logrus.Debugf("Loaded %s license header from %s", l, path)
		headers[l] = string(data)
	}
	cfg.LicenseHeaders = headers
	return nil
}
