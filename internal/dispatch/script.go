package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/pkgbuilder/internal/models"
)

// Script is the build invocation a build host runs from the tree root
type Script struct {
	Name     string
	Commands []string
}

// BuildScript returns the ordered build commands for pkg: toolchain
// setup, the ant build (generator run and compile), then a clean
func BuildScript(pkg *models.Package, qtVersion string) (Script, error) {
	setup := fmt.Sprintf("qt_pkg_setup %s %s %s", pkg.Compiler, qtVersion, pkg.License)
	clean := pkg.Make + " clean"

	switch pkg.Platform {
	case models.PlatformWindows:
		return Script{
			Name:     "task.bat",
			Commands: []string{"call " + setup, "call ant", clean},
		}, nil
	case models.PlatformMac, models.PlatformLinux:
		return Script{
			Name:     "task.sh",
			Commands: []string{setup, "ant", clean},
		}, nil
	default:
		return Script{}, models.ConfigError(fmt.Errorf("no build script for platform %q", pkg.Platform))
	}
}

// Write stores the script at the root of dir
func (s Script) Write(dir string) (string, error) {
	path := filepath.Join(dir, s.Name)
	content := strings.Join(s.Commands, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", s.Name, err)
	}
	return path, nil
}
