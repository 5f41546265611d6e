package manager

import (
	"context"
	"fmt"
	"os"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/platform"
)

// Uninstall removes an installed package. The recipe's uninstall
// commands replace the built-in removal when the installed version's
// manifest still resolves and carries them.
func (m *Manager) Uninstall(ctx context.Context, name string, host platform.Host) (res *Result, err error) {
	op, err := m.begin("uninstall", name)
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

	pkg, recipe := m.installedRecipe(ctx, op, current, host)
	op.advance(PhaseResolved)

	if recipe != nil && len(recipe.UninstallCommands) > 0 {
		dir := current.Root
		if _, err := os.Stat(dir); err != nil {
			dir = m.packagesDir
		}
		values := platform.Values(host, current.Version)
		a := &artifact{url: current.Artifact}
		env := m.commandEnv(pkg, a, current.Root, "")
		if err := m.runCommands(ctx, op, recipe.UninstallCommands, dir, values, env); err != nil {
			return nil, err
		}
	} else {
		if err := m.unlinkOwned(op, current.Executables, current.Root); err != nil {
			return nil, err
		}
		// the root goes only once the state no longer points at it
		op.onCommit(func() error { return removeRoot(current.Root) })
	}
	op.advance(PhaseApplied)

	if err := m.state.Delete(name); err != nil {
		return nil, fmt.Errorf("writing install state: %w", err)
	}
	op.advance(PhaseStateUpdated)

	return &Result{Package: current, Outcome: OutcomeRemoved}, nil
}

// installedRecipe looks up the manifest the installed version came from.
// When it no longer resolves the built-in logic applies, so the recipe
// is nil.
func (m *Manager) installedRecipe(ctx context.Context, op *operation, current *domain.InstalledPackage, host platform.Host) (*domain.Package, *domain.PackageManagement) {
	fallback := &domain.Package{Name: current.Name, Version: current.Version}

	pkg, err := m.catalog.Select(ctx, current.Name, current.Version)
	if err != nil {
		op.logger.Debug("installed manifest unavailable, using built-in removal", "err", err)
		return fallback, nil
	}

	recipe, _, err := platform.Resolve(pkg, host)
	if err != nil {
		op.logger.Debug("installed recipe unavailable, using built-in removal", "err", err)
		return fallback, nil
	}
	return pkg, recipe
}
