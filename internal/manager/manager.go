// Package manager performs the mutating operations: install, uninstall
// and upgrade. Each one runs under the exclusive lock and moves through
// a fixed sequence of phases; on failure every completed side effect is
// undone in reverse order before the lock is released.
package manager

import (
	"github.com/charmbracelet/log"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/platform"
)

type Manager struct {
	catalog     domain.Catalog
	locker      domain.Locker
	fetcher     domain.Fetcher
	cache       domain.Cache
	extractor   domain.Extractor
	verifier    domain.Verifier
	runner      domain.Runner
	state       domain.State
	packagesDir string
	binDir      string
	logger      *log.Logger
}

func New(
	catalog domain.Catalog,
	locker domain.Locker,
	fetcher domain.Fetcher,
	cache domain.Cache,
	extractor domain.Extractor,
	verifier domain.Verifier,
	runner domain.Runner,
	state domain.State,
	packagesDir, binDir string,
	logger *log.Logger,
) *Manager {
	if logger == nil {
		logger = log.Default()
	}

	return &Manager{
		catalog:     catalog,
		locker:      locker,
		fetcher:     fetcher,
		cache:       cache,
		extractor:   extractor,
		verifier:    verifier,
		runner:      runner,
		state:       state,
		packagesDir: packagesDir,
		binDir:      binDir,
		logger:      logger,
	}
}

// Request names a package and the host to install it for. An empty
// Version means the newest available one.
type Request struct {
	Name    string
	Version string
	Host    platform.Host
}

type Outcome string

const (
	OutcomeInstalled Outcome = "installed"
	OutcomeUpgraded  Outcome = "upgraded"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRemoved   Outcome = "removed"
)

type Result struct {
	Package  *domain.InstalledPackage
	Previous string
	Outcome  Outcome
}
