package domain

import (
	"context"
)

type Fetcher interface {
	Fetch(ctx context.Context, url, dst string) error
}

type Cache interface {
	Has(name, version, file string) bool
	GetPath(name, version, file string) string
	Store(name, version, src string) (string, error)
	Evict(name, version, file string) error
	Size() (int64, error)
	Clear() error
}

type Extractor interface {
	Extract(src, dst string) error
	// Supports reports whether the file name is an archive Extract can
	// unpack. Other artifacts are installed as raw executables.
	Supports(name string) bool
}

type Verifier interface {
	// VerifyChecksum checks path against expected, which is either a
	// digest or a checksum file URL. It returns the sha256 digest of path.
	VerifyChecksum(ctx context.Context, path, expected string) (string, error)
	VerifySignature(ctx context.Context, pkg, path, signatureURL string) error
	Digest(path string) (string, error)
}

type Runner interface {
	Run(ctx context.Context, command, dir string, env []string) error
}

// State is the durable record of installed packages. Get returns nil
// without error for a package that is not installed.
type State interface {
	Get(name string) (*InstalledPackage, error)
	Put(pkg *InstalledPackage) error
	Delete(name string) error
	List() ([]*InstalledPackage, error)
}

type Catalog interface {
	Select(ctx context.Context, name, version string) (*Package, error)
}

type Locker interface {
	Acquire() (Releaser, error)
}

type Releaser interface {
	Release() error
}
