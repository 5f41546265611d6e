package domain

import (
	"time"
)

type Platform string

const (
	PlatformLinuxAmd64 Platform = "linux-amd64"
	PlatformLinuxArm64 Platform = "linux-arm64"
	PlatformMacOS      Platform = "macos"
	PlatformWindows    Platform = "windows"
)

// Platforms lists every platform tag a manifest may carry, in canonical order.
func Platforms() []Platform {
	return []Platform{PlatformLinuxAmd64, PlatformLinuxArm64, PlatformMacOS, PlatformWindows}
}

func (p Platform) Valid() bool {
	switch p {
	case PlatformLinuxAmd64, PlatformLinuxArm64, PlatformMacOS, PlatformWindows:
		return true
	}
	return false
}

// Package is one manifest instance. Version is empty for unpinned
// manifests whose templates are expanded against a requested version.
type Package struct {
	Name        string
	Version     string
	Description string
	Source      Source
	Targets     []Target
	Detail      *Detail
}

func (p *Package) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}

// Target returns the recipe for the given platform tag.
func (p *Package) Target(platform Platform) (*PackageManagement, bool) {
	for i := range p.Targets {
		if p.Targets[i].Platform == platform {
			return &p.Targets[i].Management, true
		}
	}
	return nil, false
}

func (p *Package) Summary() PackageSummary {
	s := PackageSummary{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
	}
	if p.Source != nil {
		s.Owner = p.Source.OwnerName()
		s.Source = p.Source.URL()
	}
	return s
}

func (p *Package) Index() PackageIndex {
	idx := PackageIndex{Name: p.Name}
	if p.Source != nil {
		idx.Owner = p.Source.OwnerName()
		idx.Source = string(p.Source.Kind())
	}
	return idx
}

type Target struct {
	Platform   Platform
	Management PackageManagement
}

// PackageManagement is the install recipe for one platform tag. Nil
// command slices mean the built-in logic applies.
type PackageManagement struct {
	ArtifactTemplates []string `yaml:"artifact_templates" json:"artifact_templates"`
	Checksum          string   `yaml:"checksum,omitempty" json:"checksum,omitempty"`
	Signature         string   `yaml:"signature,omitempty" json:"signature,omitempty"`
	InstallCommands   []string `yaml:"install_commands,omitempty" json:"install_commands,omitempty"`
	UninstallCommands []string `yaml:"uninstall_commands,omitempty" json:"uninstall_commands,omitempty"`
	UpgradeCommands   []string `yaml:"upgrade_commands,omitempty" json:"upgrade_commands,omitempty"`
}

type Detail struct {
	Github *GithubRelease `yaml:"github,omitempty" json:"github,omitempty"`
}

type GithubRelease struct {
	TagName     string        `yaml:"tag_name" json:"tag_name"`
	Name        string        `yaml:"name,omitempty" json:"name,omitempty"`
	HTMLURL     string        `yaml:"html_url,omitempty" json:"html_url,omitempty"`
	Prerelease  bool          `yaml:"prerelease,omitempty" json:"prerelease,omitempty"`
	PublishedAt string        `yaml:"published_at,omitempty" json:"published_at,omitempty"`
	Assets      []GithubAsset `yaml:"assets,omitempty" json:"assets,omitempty"`
}

type GithubAsset struct {
	Name               string `yaml:"name" json:"name"`
	BrowserDownloadURL string `yaml:"browser_download_url" json:"browser_download_url"`
	Size               int64  `yaml:"size,omitempty" json:"size,omitempty"`
}

type PackageIndex struct {
	Name   string `yaml:"name" json:"name"`
	Owner  string `yaml:"owner" json:"owner"`
	Source string `yaml:"source" json:"source"`
}

// Summary projects the index entry. Version and description live in the
// manifest, so they stay empty.
func (idx PackageIndex) Summary() PackageSummary {
	return PackageSummary{Name: idx.Name, Owner: idx.Owner, Source: idx.Source}
}

type PackageSummary struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Owner       string `yaml:"owner,omitempty" json:"owner,omitempty"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`
}

type InstalledPackage struct {
	Name        string    `json:"name" yaml:"name"`
	Version     string    `json:"version" yaml:"version"`
	Platform    Platform  `json:"platform" yaml:"platform"`
	Root        string    `json:"root" yaml:"root"`
	Executables []string  `json:"executables" yaml:"executables"`
	Artifact    string    `json:"artifact" yaml:"artifact"`
	Digest      string    `json:"digest,omitempty" yaml:"digest,omitempty"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	InstalledAt time.Time `json:"installed_at" yaml:"installed_at"`
}

// Inventory is the on-disk shape of the install-state file.
type Inventory struct {
	Packages map[string]*InstalledPackage `json:"packages"`
}

func NewInventory() *Inventory {
	return &Inventory{Packages: make(map[string]*InstalledPackage)}
}
