package catalog

import (
	"fmt"
	"regexp"

	"github.com/ralt/pkgbuilder/internal/models"
)

var defaultRemoveDirs = []string{
	"ant",
	"autotestlib",
	"com/trolltech/autotests",
	"com/trolltech/benchmarks",
	"com/trolltech/extensions",
	"com/trolltech/manualtests",
	"com/trolltech/tests",
	"cpp",
	"dist",
	"doc/config",
	"doc/src",
	"launcher_launcher",
	"libbenchmark",
	"scripts",
	"tools",
	"whitepaper",
}

// Patterns are matched against slash-separated paths relative to the
// package root
var defaultRemovePatterns = []string{
	`CRT`,
	`Makefile$`,
	`Makefile\.Debug$`,
	`Makefile\.Release$`,
	`\.a$`,
	`\.class$`,
	`\.debug$`,
	`\.exp$`,
	`\.ilk$`,
	`\.lib$`,
	`\.log$`,
	`\.manifest$`,
	`\.o$`,
	`\.obj$`,
	`\.pch$`,
	`\.pdb$`,
	`(^|/)debug$`,
	`(^|/)release$`,
	`_debuglib\.`,
	`com_trolltech.*\.lib$`,
	`(^|/)task(\.bat|\.sh)?$`,
	`(^|/)` + regexp.QuoteMeta(models.TicketFile) + `$`,
}

var compiledRemovePatterns = compilePatterns(defaultRemovePatterns)

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// applyCommonRules sets the rules every package shares, then the license
// file for its license
func applyCommonRules(pkg *models.Package) {
	pkg.RemoveDirs = append([]string(nil), defaultRemoveDirs...)
	pkg.RemovePatterns = append([]*regexp.Regexp(nil), compiledRemovePatterns...)
	pkg.Mkdirs = []string{"include"}
	pkg.CopyFiles = []models.FileRule{
		models.CopyTo{Path: "qtjambi/qtjambi_core.h", Dest: "include"},
		models.CopyTo{Path: "qtjambi/qtjambi_cache.h", Dest: "include"},
		models.CopyTo{Path: "qtjambi/qtjambi_global.h", Dest: "include"},
		models.CopyTo{Path: "qtjambi/qtjambilink.h", Dest: "include"},
		models.CopyTo{Path: "qtjambi/qtjambifunctiontable.h", Dest: "include"},

		models.CopyToRoot{Path: "dist/readme.html"},
		models.CopyToRoot{Path: "dist/install.html"},
		models.CopyToRoot{Path: "dist/changes-" + pkg.Version},
	}

	switch pkg.License {
	case models.LicenseCommercial:
		pkg.CopyFiles = append(pkg.CopyFiles, models.CopyToRoot{Path: "dist/LICENSE"})
	case models.LicenseGPL:
		pkg.CopyFiles = append(pkg.CopyFiles, models.CopyToRoot{Path: "dist/LICENSE.GPL"})
	case models.LicenseEval:
		pkg.CopyFiles = append(pkg.CopyFiles, models.CopyToRoot{Path: "dist/LICENSE.EVAL"})
	}
}

// applyBinaryRules sets toolchain, launchers and platform jar for a binary
// package
func applyBinaryRules(pkg *models.Package) error {
	v := pkg.Version

	switch pkg.Platform {
	case models.PlatformMac:
		pkg.CopyFiles = append(pkg.CopyFiles,
			models.CopyToRoot{Path: "dist/mac/qtjambi.sh"},
			models.CopyToRoot{Path: "dist/mac/designer.sh"},
		)
		pkg.Launchers = []string{"designer.sh", "qtjambi.sh"}
		pkg.Compiler = "gcc"
		pkg.Make = "make"
		pkg.PlatformJar = "qtjambi-macosx-gcc-" + v + ".jar"

	case models.PlatformWindows:
		pkg.CopyFiles = append(pkg.CopyFiles, models.CopyToRoot{Path: "dist/win/designer.bat"})
		switch pkg.Arch {
		case models.Arch64:
			pkg.CopyFiles = append(pkg.CopyFiles, models.CopyTo{Path: "dist/win/qtjambi64.exe", Dest: "qtjambi.exe"})
			pkg.PlatformJar = "qtjambi-win64-msvc2005x64-" + v + ".jar"
		case models.Arch32:
			pkg.CopyFiles = append(pkg.CopyFiles, models.CopyToRoot{Path: "dist/win/qtjambi.exe"})
			pkg.PlatformJar = "qtjambi-win32-msvc2005-" + v + ".jar"
		default:
			return models.ConfigError(fmt.Errorf("unsupported windows arch %q", pkg.Arch))
		}
		if pkg.License == models.LicenseGPL {
			pkg.Compiler = "mingw"
			pkg.Make = "mingw32-make"
		} else {
			pkg.Compiler = "msvc2005"
			pkg.Make = "nmake"
		}
		pkg.RemoveDirs = append(pkg.RemoveDirs, "lib")
		pkg.Mkdirs = append(pkg.Mkdirs, "bin")
		pkg.CopyFiles = append(pkg.CopyFiles, models.CopyTo{Path: "generator/release/generator.exe", Dest: "bin"})

	case models.PlatformLinux:
		pkg.CopyFiles = append(pkg.CopyFiles,
			models.CopyToRoot{Path: "dist/linux/designer.sh"},
			models.CopyToRoot{Path: "dist/linux/qtjambi.sh"},
		)
		pkg.Launchers = []string{"designer.sh", "qtjambi.sh"}
		pkg.Compiler = "gcc"
		pkg.Make = "make"
		switch pkg.Arch {
		case models.Arch64:
			pkg.PlatformJar = "qtjambi-linux64-gcc-" + v + ".jar"
		case models.Arch32:
			pkg.PlatformJar = "qtjambi-linux32-gcc-" + v + ".jar"
		default:
			return models.ConfigError(fmt.Errorf("unsupported linux arch %q", pkg.Arch))
		}

	default:
		return models.ConfigError(fmt.Errorf("unsupported platform %q", pkg.Platform))
	}

	pkg.Binary = true
	return nil
}
