package domain

import (
	"slices"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// CompareVersions orders versions semantically. Unparseable versions sort
// below parseable ones and compare lexically among themselves.
func CompareVersions(a, b string) int {
	va, errA := goversion.NewVersion(a)
	vb, errB := goversion.NewVersion(b)

	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

func SameVersion(a, b string) bool {
	if a == b {
		return true
	}
	return a != "" && b != "" && CompareVersions(a, b) == 0
}

// SortNewestFirst orders manifest instances newest first. Instances
// without a version go last.
func SortNewestFirst(pkgs []Package) {
	slices.SortStableFunc(pkgs, func(a, b Package) int {
		if (a.Version == "") != (b.Version == "") {
			if a.Version == "" {
				return 1
			}
			return -1
		}
		return CompareVersions(b.Version, a.Version)
	})
}
