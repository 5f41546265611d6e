package version

import (
	"fmt"
	"runtime"
)

// Version and Commit are set via ldflags at build time:
// go build -ldflags "-X github.com/teamcutter/huber/internal/version.Version=v0.1.0"
var (
	Version = "dev"
	Commit  = ""
)

// String is the version line shown by `huber version` and --version.
func String() string {
	s := fmt.Sprintf("%s %s/%s", Version, runtime.GOOS, runtime.GOARCH)
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	return s
}

// UserAgent identifies huber in repository and download requests.
func UserAgent() string {
	return "huber/" + Version
}
