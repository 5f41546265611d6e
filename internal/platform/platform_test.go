package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/teamcutter/huber/internal/domain"
)

func recipe(url string) domain.PackageManagement {
	return domain.PackageManagement{ArtifactTemplates: []string{url}}
}

func fullPackage() *domain.Package {
	return &domain.Package{
		Name:   "tool",
		Source: domain.GithubSource{Owner: "acme", Repo: "tool"},
		Targets: []domain.Target{
			{Platform: domain.PlatformLinuxAmd64, Management: recipe("linux-amd64")},
			{Platform: domain.PlatformLinuxArm64, Management: recipe("linux-arm64")},
			{Platform: domain.PlatformMacOS, Management: recipe("macos")},
			{Platform: domain.PlatformWindows, Management: recipe("windows")},
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		host    Host
		want    domain.Platform
		wantErr bool
	}{
		{name: "linux x86_64", host: Host{OS: "linux", Arch: "x86_64"}, want: domain.PlatformLinuxAmd64},
		{name: "linux aarch64", host: Host{OS: "linux", Arch: "aarch64"}, want: domain.PlatformLinuxArm64},
		{name: "macos x86_64", host: Host{OS: "macos", Arch: "x86_64"}, want: domain.PlatformMacOS},
		{name: "macos aarch64", host: Host{OS: "macos", Arch: "aarch64"}, want: domain.PlatformMacOS},
		{name: "windows x86_64", host: Host{OS: "windows", Arch: "x86_64"}, want: domain.PlatformWindows},
		{name: "windows x86", host: Host{OS: "windows", Arch: "x86"}, want: domain.PlatformWindows},
		{name: "go runtime names", host: Host{OS: "darwin", Arch: "arm64"}, want: domain.PlatformMacOS},
		{name: "go runtime linux", host: Host{OS: "linux", Arch: "amd64"}, want: domain.PlatformLinuxAmd64},
		{name: "freebsd x86_64", host: Host{OS: "freebsd", Arch: "x86_64"}, wantErr: true},
		{name: "linux riscv64", host: Host{OS: "linux", Arch: "riscv64"}, wantErr: true},
		{name: "linux x86", host: Host{OS: "linux", Arch: "x86"}, wantErr: true},
	}

	pkg := fullPackage()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, tag, err := Resolve(pkg, tt.host)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnsupportedPlatform) {
					t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
				}
				var upe *domain.UnsupportedPlatformError
				if !errors.As(err, &upe) || upe.OS != tt.host.OS || upe.Arch != tt.host.Arch {
					t.Errorf("error should carry the platform pair, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if tag != tt.want {
				t.Errorf("tag = %s, want %s", tag, tt.want)
			}
			if m.ArtifactTemplates[0] != string(tt.want) {
				t.Errorf("got recipe for %s, want %s", m.ArtifactTemplates[0], tt.want)
			}
		})
	}
}

func TestResolveMissingTarget(t *testing.T) {
	pkg := &domain.Package{
		Name:    "gh",
		Source:  domain.GithubSource{Owner: "cli", Repo: "cli"},
		Targets: []domain.Target{{Platform: domain.PlatformLinuxAmd64, Management: recipe("x")}},
	}

	_, _, err := Resolve(pkg, Host{OS: "windows", Arch: "x86_64"})
	if !errors.Is(err, domain.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestEveryPlatformTagIsReachable(t *testing.T) {
	hosts := []Host{
		{OS: OSLinux, Arch: ArchX86_64},
		{OS: OSLinux, Arch: ArchAarch64},
		{OS: OSMacOS, Arch: ArchX86_64},
		{OS: OSWindows, Arch: ArchX86_64},
	}

	reached := make(map[domain.Platform]bool)
	for _, h := range hosts {
		tag, err := ForHost(h)
		if err != nil {
			t.Fatalf("ForHost(%v) failed: %v", h, err)
		}
		reached[tag] = true
	}

	for _, p := range domain.Platforms() {
		if !reached[p] {
			t.Errorf("platform %s has no host mapping", p)
		}
	}
}

func TestValues(t *testing.T) {
	tests := []struct {
		host     Host
		wantOS   string
		wantArch string
	}{
		{Host{OS: "linux", Arch: "x86_64"}, "linux", "amd64"},
		{Host{OS: "linux", Arch: "aarch64"}, "linux", "arm64"},
		{Host{OS: "macos", Arch: "aarch64"}, "darwin", "arm64"},
		{Host{OS: "windows", Arch: "x86"}, "windows", "x86"},
	}

	for _, tt := range tests {
		v := Values(tt.host, "1.0.0")
		if v.OS != tt.wantOS || v.Arch != tt.wantArch || v.Version != "1.0.0" {
			t.Errorf("Values(%v) = %+v, want os=%s arch=%s", tt.host, v, tt.wantOS, tt.wantArch)
		}
	}
}

func TestDetect(t *testing.T) {
	h := Detect(context.Background())

	if h.OS != Current().OS {
		t.Errorf("Detect OS = %q, want %q", h.OS, Current().OS)
	}
	if h.Arch == "" {
		t.Error("Detect returned an empty architecture")
	}
	if Normalize(h) != h {
		t.Errorf("Detect should return a normalized host, got %+v", h)
	}
}
