package manager

import (
	"context"
	"fmt"
	"slices"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/platform"
)

// Upgrade moves an installed package to the newest available version.
// An installed version that is not older is left alone.
func (m *Manager) Upgrade(ctx context.Context, name string, host platform.Host) (res *Result, err error) {
	op, err := m.begin("upgrade", name)
	if err != nil {
		return nil, err
	}
	defer op.finish(&err)

	current, err := m.state.Get(name)
	if err != nil {
		return nil, fmt.Errorf("reading install state: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrNotInstalled)
	}

	pkg, err := m.catalog.Select(ctx, name, "")
	if err != nil {
		return nil, err
	}

	if domain.CompareVersions(current.Version, pkg.Version) >= 0 {
		op.logger.Debug("already up to date", "installed", current.Version, "available", pkg.Version)
		return &Result{Package: current, Previous: current.Version, Outcome: OutcomeUnchanged}, nil
	}

	recipe, tag, err := platform.Resolve(pkg, host)
	if err != nil {
		return nil, err
	}
	op.advance(PhaseResolved)

	return m.replace(ctx, op, current, pkg, recipe, tag, host)
}

// replace installs pkg next to the current version, then moves the links
// over and records the new version. The old root is only removed once the
// new state is written, so a failure at any point leaves the previous
// install working.
func (m *Manager) replace(ctx context.Context, op *operation, current *domain.InstalledPackage, pkg *domain.Package, recipe *domain.PackageManagement, tag domain.Platform, host platform.Host) (*Result, error) {
	values := platform.Values(host, pkg.Version)

	a, err := m.fetchArtifact(ctx, op, pkg, recipe, values)
	if err != nil {
		return nil, err
	}
	op.advance(PhaseDownloaded)

	if err := m.verify(ctx, pkg, recipe, values, a); err != nil {
		return nil, err
	}
	op.advance(PhaseVerified)

	root := m.packageRoot(pkg.Name, pkg.Version)
	if err := m.stage(op, root); err != nil {
		return nil, err
	}

	env := m.commandEnv(pkg, a, root, current.Version)
	switch {
	case len(recipe.UpgradeCommands) > 0:
		err = m.runCommands(ctx, op, recipe.UpgradeCommands, root, values, env)
	case len(recipe.InstallCommands) > 0:
		err = m.runCommands(ctx, op, recipe.InstallCommands, root, values, env)
	default:
		err = m.unpack(pkg, a, root)
	}
	if err != nil {
		return nil, err
	}

	executables, err := findExecutables(root)
	if err != nil {
		return nil, err
	}
	if len(executables) == 0 && len(recipe.UpgradeCommands) == 0 && len(recipe.InstallCommands) == 0 {
		return nil, fmt.Errorf("no executable found in %s", a.file)
	}

	names, err := m.linkAll(op, executables)
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, n := range current.Executables {
		if !slices.Contains(names, n) {
			stale = append(stale, n)
		}
	}
	if err := m.unlinkOwned(op, stale, current.Root); err != nil {
		return nil, err
	}
	op.advance(PhaseApplied)

	upgraded := record(pkg, tag, root, names, a)
	if err := m.state.Put(upgraded); err != nil {
		return nil, fmt.Errorf("writing install state: %w", err)
	}
	op.advance(PhaseStateUpdated)

	if current.Root != root {
		oldRoot := current.Root
		op.onCommit(func() error { return removeRoot(oldRoot) })
	}

	return &Result{Package: upgraded, Previous: current.Version, Outcome: OutcomeUpgraded}, nil
}
