// Package testutil builds package roots and simulated build hosts for tests
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/ralt/pkgbuilder/internal/config"
	"github.com/ralt/pkgbuilder/internal/models"
)

// Version is the product version used by fixture trees
const Version = "4.4.0_01"

// License header templates written by Config
const (
	GPLHeader        = "GPL HEADER"
	EvalHeader       = "EVAL HEADER"
	CommercialHeader = "COMMERCIAL HEADER"
)

// SourceFiles is the content of the fixture source tree, relative to the
// source directory
func SourceFiles(version string) map[string]string {
	return map[string]string{
		"qtjambi/qtjambi_core.h":          "// $CPP_LICENSE$\n#define QTJAMBI_CORE\n",
		"qtjambi/qtjambi_cache.h":         "// cache\n",
		"qtjambi/qtjambi_global.h":        "// global\n",
		"qtjambi/qtjambilink.h":           "// link\n",
		"qtjambi/qtjambifunctiontable.h":  "// function table\n",
		"qtjambi/qtjambi_core.cpp":        "/* $CPP_LICENSE$ */\nint core;\n",
		"com/trolltech/qt/QObject.java":   "/* $JAVA_LICENSE$\n * Copyright $THISYEAR$ $TROLLTECH$\n */\npublic class QObject {}\n",
		"com/trolltech/tests/TestIt.java": "class TestIt {}\n",
		"dist/readme.html":                "<p>$PRODUCT$ $THISYEAR$</p>\n",
		"dist/install.html":               "<p>install $PRODUCT$</p>\n",
		"dist/changes-" + version:         "changes\n",
		"dist/LICENSE":                    "commercial terms of $TROLLTECH$\n",
		"dist/LICENSE.GPL":                "GNU GPL\n",
		"dist/LICENSE.EVAL":               "evaluation terms\n",
		"dist/mac/qtjambi.sh":             "#!/bin/sh\n",
		"dist/mac/designer.sh":            "#!/bin/sh\n",
		"dist/win/designer.bat":           "@echo off\n",
		"dist/win/qtjambi.exe":            "MZ32",
		"dist/win/qtjambi64.exe":          "MZ64",
		"dist/linux/qtjambi.sh":           "#!/bin/sh\n",
		"dist/linux/designer.sh":          "#!/bin/sh\n",
		"generator/release/generator.exe": "MZgen",
		"ant/build.xml":                   "<project/>\n",
		"cpp/generated.cpp":               "// generated\n",
		"scripts/release.sh":              "#!/bin/sh\n",
		"Makefile":                        "all:\n",
		"qtjambi/Makefile.Debug":          "all:\n",
	}
}

// WriteTree writes files, keyed by slash path, under dir
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

// ListTree returns every regular file under dir as a sorted slash path
func ListTree(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, _ := filepath.Rel(dir, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to list %s: %v", dir, err)
	}
	sort.Strings(out)
	return out
}

// WriteJar writes a zip archive holding files
func WriteJar(t *testing.T, path string, files map[string]string) {
	t.Helper()
	if err := writeJar(path, files); err != nil {
		t.Fatalf("Failed to write jar %s: %v", path, err)
	}
}

func writeJar(path string, files map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Config returns a validated configuration rooted in a fresh temporary
// directory that holds the fixture source tree and license headers. mutate
// runs before validation.
func Config(t *testing.T, mutate func(cfg *models.BuildConfig)) *models.BuildConfig {
	t.Helper()
	root := t.TempDir()

	licenseDir := filepath.Join(root, "licenses")
	WriteTree(t, licenseDir, map[string]string{
		config.HeaderFile(models.LicenseGPL):        GPLHeader,
		config.HeaderFile(models.LicenseEval):       EvalHeader,
		config.HeaderFile(models.LicenseCommercial): CommercialHeader,
	})

	cfg := config.Default()
	cfg.PackageRoot = root
	cfg.LicenseDir = licenseDir
	cfg.QtVersion = "4.4.0"
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.BuildServers = map[string]string{
		"win":   "127.0.0.1",
		"mac":   "127.0.0.1",
		"linux": "127.0.0.1",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	if err := config.Validate(&cfg); err != nil {
		t.Fatalf("Invalid fixture config: %v", err)
	}
	if err := config.LoadLicenseHeaders(&cfg); err != nil {
		t.Fatalf("Failed to load license headers: %v", err)
	}
	WriteTree(t, cfg.SourceDir, SourceFiles(cfg.ProductVersion))
	return &cfg
}

// OnlyLinux64 limits a fixture config to linux64 binaries
func OnlyLinux64(cfg *models.BuildConfig) {
	cfg.BuildMac = false
	cfg.BuildWindows = false
	cfg.Build32 = false
	cfg.BuildSource = false
}

// Contains reports whether list holds s
func Contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// HasPrefix reports whether any entry of list starts with prefix
func HasPrefix(list []string, prefix string) bool {
	for _, v := range list {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}
