package catalog

import (
	"path/filepath"
	"testing"

	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/ralt/pkgbuilder/internal/testutil"
)

func names(packages []*models.Package) []string {
	out := make([]string, len(packages))
	for i, pkg := range packages {
		out[i] = pkg.Name()
	}
	return out
}

func TestBuildFullMatrix(t *testing.T) {
	cfg := testutil.Config(t, nil)

	packages, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// 5 binary arch variants x 3 licenses, 2 source platforms x 2 licenses
	if len(packages) != 19 {
		t.Fatalf("Expected 19 packages, got %d: %v", len(packages), names(packages))
	}

	seenSource := false
	seen := make(map[string]bool)
	for _, pkg := range packages {
		name := pkg.Name()
		if seen[name] {
			t.Errorf("Duplicate package %s", name)
		}
		seen[name] = true

		if pkg.PackageDir != filepath.Join(cfg.PackageRoot, name) {
			t.Errorf("%s: PackageDir = %s", name, pkg.PackageDir)
		}
		if pkg.StageDir != filepath.Join(cfg.PackageRoot, StageDirName, name) {
			t.Errorf("%s: StageDir = %s", name, pkg.StageDir)
		}
		if pkg.State() != models.StateConfigured {
			t.Errorf("%s: state = %s", name, pkg.State())
		}

		if pkg.Binary {
			if seenSource {
				t.Errorf("Binary package %s listed after a source package", name)
			}
			if pkg.BuildServer == "" || pkg.PlatformJar == "" || pkg.Compiler == "" {
				t.Errorf("%s: incomplete toolchain %+v", name, pkg)
			}
		} else {
			seenSource = true
			if pkg.License == models.LicenseEval {
				t.Errorf("Unexpected eval source package %s", name)
			}
			if pkg.BuildServer != "" {
				t.Errorf("Source package %s has a build server", name)
			}
		}
	}

	for _, want := range []string{
		"qtjambi-win64-commercial-4.4.0_01",
		"qtjambi-mac-gpl-4.4.0_01",
		"qtjambi-linux32-eval-4.4.0_01",
		"qtjambi-src-win-gpl-4.4.0_01",
		"qtjambi-src-linux-commercial-4.4.0_01",
	} {
		if !seen[want] {
			t.Errorf("Missing package %s", want)
		}
	}
}

func TestBuildToggles(t *testing.T) {
	cfg := testutil.Config(t, func(cfg *models.BuildConfig) {
		cfg.BuildWindows = false
		cfg.BuildMac = false
		cfg.Build32 = false
		cfg.BuildEval = false
		cfg.BuildCommercial = false
	})

	packages, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := names(packages)
	want := []string{"qtjambi-linux64-gpl-4.4.0_01", "qtjambi-src-linux-gpl-4.4.0_01"}
	if len(got) != len(want) {
		t.Fatalf("Got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("packages[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBuildServerLookup(t *testing.T) {
	cfg := testutil.Config(t, func(cfg *models.BuildConfig) {
		cfg.BuildServers = map[string]string{
			"win64": "winbuild64",
			"win":   "winbuild",
			"mac":   "macbuild",
			"linux": "linuxbuild",
		}
		cfg.BuildSource = false
	})

	packages, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, pkg := range packages {
		var want string
		switch {
		case pkg.Platform == models.PlatformWindows && pkg.Arch == models.Arch64:
			want = "winbuild64"
		case pkg.Platform == models.PlatformWindows:
			want = "winbuild"
		case pkg.Platform == models.PlatformMac:
			want = "macbuild"
		default:
			want = "linuxbuild"
		}
		if pkg.BuildServer != want {
			t.Errorf("%s: build server %s, want %s", pkg.Name(), pkg.BuildServer, want)
		}
	}
}

func TestBuildMissingServer(t *testing.T) {
	cfg := testutil.Config(t, func(cfg *models.BuildConfig) {
		delete(cfg.BuildServers, "mac")
	})
	if _, err := Build(cfg); !models.IsErrorType(err, models.ErrConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
}

func TestBuildMissingHeader(t *testing.T) {
	cfg := testutil.Config(t, nil)
	delete(cfg.LicenseHeaders, models.LicenseGPL)
	if _, err := Build(cfg); !models.IsErrorType(err, models.ErrConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
}

func TestWindowsRules(t *testing.T) {
	cfg := testutil.Config(t, func(cfg *models.BuildConfig) {
		cfg.BuildMac = false
		cfg.BuildLinux = false
		cfg.BuildSource = false
		cfg.BuildEval = false
	})
	packages, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, pkg := range packages {
		if pkg.License == models.LicenseGPL && pkg.Compiler != "mingw" {
			t.Errorf("%s: compiler %s, want mingw", pkg.Name(), pkg.Compiler)
		}
		if pkg.License == models.LicenseCommercial && pkg.Make != "nmake" {
			t.Errorf("%s: make %s, want nmake", pkg.Name(), pkg.Make)
		}
		if !testutil.Contains(pkg.RemoveDirs, "lib") {
			t.Errorf("%s: expected lib to be removed", pkg.Name())
		}

		foundExe := false
		for _, rule := range pkg.CopyFiles {
			if r, ok := rule.(models.CopyTo); ok && r.Dest == "qtjambi.exe" {
				foundExe = true
			}
		}
		if pkg.Arch == models.Arch64 && !foundExe {
			t.Errorf("%s: expected qtjambi64.exe to be renamed", pkg.Name())
		}
	}
}

func TestRemovePatterns(t *testing.T) {
	pkg := &models.Package{}
	applyCommonRules(pkg)

	remove := []string{
		"Makefile",
		"qtjambi/Makefile.Release",
		"lib/qtjambi.lib",
		"obj/core.o",
		"task.sh",
		"task.bat",
		".jobticket",
		"qtjambi/debug",
		"generator/release",
		"lib/com_trolltech_qt_core.lib",
		"qtjambi_debuglib.so",
	}
	for _, rel := range remove {
		if !pkg.MatchesRemovePattern(rel) {
			t.Errorf("Expected %s to match a removal pattern", rel)
		}
	}

	keep := []string{
		"lib/libqtjambi.so",
		"qtjambi.sh",
		"include/qtjambi_core.h",
		"releases.html",
		"taskbar.java",
	}
	for _, rel := range keep {
		if pkg.MatchesRemovePattern(rel) {
			t.Errorf("Did not expect %s to match a removal pattern", rel)
		}
	}
}
