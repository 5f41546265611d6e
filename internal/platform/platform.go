// Package platform maps an (os, arch) pair to a manifest platform tag and
// picks the matching recipe out of a package. Apart from Detect,
// everything here is pure; callers supply the host.
package platform

import (
	"runtime"
	"strings"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/template"
)

const (
	OSLinux   = "linux"
	OSMacOS   = "macos"
	OSWindows = "windows"

	ArchX86_64  = "x86_64"
	ArchAarch64 = "aarch64"
)

type Host struct {
	OS   string
	Arch string
}

func Current() Host {
	return Normalize(Host{OS: runtime.GOOS, Arch: runtime.GOARCH})
}

// Normalize accepts Go runtime names (darwin, amd64, arm64) as aliases.
func Normalize(h Host) Host {
	os := strings.ToLower(h.OS)
	arch := strings.ToLower(h.Arch)

	switch os {
	case "darwin":
		os = OSMacOS
	}

	switch arch {
	case "amd64", "x64":
		arch = ArchX86_64
	case "arm64":
		arch = ArchAarch64
	}

	return Host{OS: os, Arch: arch}
}

func ForHost(h Host) (domain.Platform, error) {
	n := Normalize(h)

	switch n.OS {
	case OSLinux:
		switch n.Arch {
		case ArchX86_64:
			return domain.PlatformLinuxAmd64, nil
		case ArchAarch64:
			return domain.PlatformLinuxArm64, nil
		}
	case OSMacOS:
		return domain.PlatformMacOS, nil
	case OSWindows:
		return domain.PlatformWindows, nil
	}

	return "", &domain.UnsupportedPlatformError{OS: h.OS, Arch: h.Arch}
}

func Resolve(pkg *domain.Package, h Host) (*domain.PackageManagement, domain.Platform, error) {
	tag, err := ForHost(h)
	if err != nil {
		return nil, "", &domain.UnsupportedPlatformError{OS: h.OS, Arch: h.Arch, Package: pkg.Name}
	}

	m, ok := pkg.Target(tag)
	if !ok {
		return nil, "", &domain.UnsupportedPlatformError{OS: h.OS, Arch: h.Arch, Package: pkg.Name}
	}

	return m, tag, nil
}

// Values builds the template values for h. {os} and {arch} use Go's
// naming, which is what most release asset names follow.
func Values(h Host, version string) template.Values {
	n := Normalize(h)

	os := n.OS
	if os == OSMacOS {
		os = "darwin"
	}

	arch := n.Arch
	switch arch {
	case ArchX86_64:
		arch = "amd64"
	case ArchAarch64:
		arch = "arm64"
	}

	return template.Values{Version: version, OS: os, Arch: arch}
}
