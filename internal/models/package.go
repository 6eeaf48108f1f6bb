package models

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// TicketFile holds the job ticket at the root of a job payload. Build hosts
// echo it back in their result; it never ships in a bundle.
const TicketFile = ".jobticket"

// Platform identifies the operating system family a package targets
type Platform int

const (
	PlatformMac Platform = iota
	PlatformWindows
	PlatformLinux
)

// Platforms lists every known platform in catalog order
var Platforms = []Platform{PlatformWindows, PlatformMac, PlatformLinux}

// String returns the short platform name used in package names
func (p Platform) String() string {
	switch p {
	case PlatformMac:
		return "mac"
	case PlatformWindows:
		return "win"
	case PlatformLinux:
		return "linux"
	default:
		return "unknown"
	}
}

// ParsePlatform converts a platform name into a Platform
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(s) {
	case "mac", "macosx":
		return PlatformMac, nil
	case "win", "windows":
		return PlatformWindows, nil
	case "linux":
		return PlatformLinux, nil
	}
	return 0, ConfigError(fmt.Errorf("unknown platform %q", s))
}

// Arch identifies the word size of a binary package
type Arch int

const (
	ArchNone Arch = iota
	Arch32
	Arch64
	ArchUniversal
)

// String returns the arch suffix used in package names
func (a Arch) String() string {
	switch a {
	case ArchNone:
		return ""
	case Arch32:
		return "32"
	case Arch64:
		return "64"
	case ArchUniversal:
		return "universal"
	default:
		return "unknown"
	}
}

// ParseArch converts an arch name into an Arch
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ArchNone, nil
	case "32":
		return Arch32, nil
	case "64":
		return Arch64, nil
	case "universal":
		return ArchUniversal, nil
	}
	return 0, ConfigError(fmt.Errorf("unknown arch %q", s))
}

// License identifies the license a package is released under
type License int

const (
	LicenseGPL License = iota
	LicenseEval
	LicenseCommercial
)

// Licenses lists every known license in catalog order
var Licenses = []License{LicenseCommercial, LicenseGPL, LicenseEval}

// String returns the license name used in package names
func (l License) String() string {
	switch l {
	case LicenseGPL:
		return "gpl"
	case LicenseEval:
		return "eval"
	case LicenseCommercial:
		return "commercial"
	default:
		return "unknown"
	}
}

// ParseLicense converts a license name into a License
func ParseLicense(s string) (License, error) {
	switch strings.ToLower(s) {
	case "gpl":
		return LicenseGPL, nil
	case "eval":
		return LicenseEval, nil
	case "commercial":
		return LicenseCommercial, nil
	}
	return 0, ConfigError(fmt.Errorf("unknown license %q", s))
}

// FileRule describes one file copied into the package tree. It is either
// CopyToRoot or CopyTo.
type FileRule interface {
	Source() string
	isFileRule()
}

// CopyToRoot copies Path into the package root, keeping its base name
type CopyToRoot struct {
	Path string
}

// CopyTo copies Path to Dest, relative to the package root. If Dest is an
// existing directory the file keeps its base name.
type CopyTo struct {
	Path string
	Dest string
}

func (r CopyToRoot) Source() string { return r.Path }
func (r CopyTo) Source() string     { return r.Path }

func (CopyToRoot) isFileRule() {}
func (CopyTo) isFileRule()     {}

// Package is one platform/arch/license/binary-or-source variant of the release
type Package struct {
	Platform Platform
	Arch     Arch
	License  License
	Binary   bool

	// Prefix and Version feed Name()
	Prefix  string
	Version string

	// Toolchain, set only for binary packages
	Compiler    string
	Make        string
	BuildServer string
	PlatformJar string

	// Paths, assigned once by the catalog
	PackageDir string
	StageDir   string

	// File rules
	CopyFiles      []FileRule
	Mkdirs         []string
	Launchers      []string
	RemoveDirs     []string
	RemoveFiles    []string
	RemovePatterns []*regexp.Regexp

	LicenseHeader string

	state State
}

// Name returns the package's unique name within one catalog
func (p *Package) Name() string {
	if !p.Binary {
		return fmt.Sprintf("%s-src-%s-%s-%s", p.Prefix, p.Platform, p.License, p.Version)
	}
	arch := p.Arch.String()
	if p.Arch == ArchUniversal {
		arch = ""
	}
	return fmt.Sprintf("%s-%s%s-%s-%s", p.Prefix, p.Platform, arch, p.License, p.Version)
}

// Kind returns "binary" or "source"
func (p *Package) Kind() string {
	if p.Binary {
		return "binary"
	}
	return "source"
}

// AddRemoveFile appends a path, relative to the package root, to the file
// removal list. Paths already present are ignored.
func (p *Package) AddRemoveFile(rel string) {
	rel = path.Clean(rel)
	for _, f := range p.RemoveFiles {
		if f == rel {
			return
		}
	}
	p.RemoveFiles = append(p.RemoveFiles, rel)
}

// AddRemoveDir appends a directory, relative to the package root, to the
// directory removal list. Paths already present are ignored.
func (p *Package) AddRemoveDir(rel string) {
	rel = path.Clean(rel)
	for _, d := range p.RemoveDirs {
		if d == rel {
			return
		}
	}
	p.RemoveDirs = append(p.RemoveDirs, rel)
}

// MatchesRemovePattern reports whether rel matches any removal pattern
func (p *Package) MatchesRemovePattern(rel string) bool {
	for _, re := range p.RemovePatterns {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}
