package manager

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/fetcher"
	"github.com/teamcutter/huber/internal/platform"
)

// Install installs req.Name for req.Host. Installing the version already
// installed changes nothing; installing another version replaces the
// current one the way Upgrade does.
func (m *Manager) Install(ctx context.Context, req Request) (res *Result, err error) {
	op, err := m.begin("install", req.Name)
	if err != nil {
		return nil, err
	}
	defer op.finish(&err)

	pkg, err := m.catalog.Select(ctx, req.Name, req.Version)
	if err != nil {
		return nil, err
	}

	recipe, tag, err := platform.Resolve(pkg, req.Host)
	if err != nil {
		return nil, err
	}
	op.advance(PhaseResolved)

	current, err := m.state.Get(pkg.Name)
	if err != nil {
		return nil, fmt.Errorf("reading install state: %w", err)
	}

	if current != nil {
		if domain.SameVersion(current.Version, pkg.Version) {
			if err := m.reverify(current); err != nil {
				return nil, err
			}
			op.logger.Debug("already installed", "version", current.Version)
			return &Result{Package: current, Outcome: OutcomeUnchanged}, nil
		}
		return m.replace(ctx, op, current, pkg, recipe, tag, req.Host)
	}

	values := platform.Values(req.Host, pkg.Version)

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

	if len(recipe.InstallCommands) > 0 {
		env := m.commandEnv(pkg, a, root, "")
		if err := m.runCommands(ctx, op, recipe.InstallCommands, root, values, env); err != nil {
			return nil, err
		}
	} else if err := m.unpack(pkg, a, root); err != nil {
		return nil, err
	}

	executables, err := findExecutables(root)
	if err != nil {
		return nil, err
	}
	if len(executables) == 0 && len(recipe.InstallCommands) == 0 {
		return nil, fmt.Errorf("no executable found in %s", a.file)
	}

	names, err := m.linkAll(op, executables)
	if err != nil {
		return nil, err
	}
	op.advance(PhaseApplied)

	installed := record(pkg, tag, root, names, a)
	if err := m.state.Put(installed); err != nil {
		return nil, fmt.Errorf("writing install state: %w", err)
	}
	op.advance(PhaseStateUpdated)

	return &Result{Package: installed, Outcome: OutcomeInstalled}, nil
}

// reverify re-hashes the cached artifact of an installed package, when it
// is still cached, against the digest recorded at install time.
func (m *Manager) reverify(current *domain.InstalledPackage) error {
	if current.Digest == "" || current.Artifact == "" {
		return nil
	}

	file := fetcher.FileName(current.Artifact)
	if !m.cache.Has(current.Name, current.Version, file) {
		return nil
	}

	path := m.cache.GetPath(current.Name, current.Version, file)
	digest, err := m.verifier.Digest(path)
	if err != nil {
		return err
	}

	if digest != current.Digest {
		return &domain.ChecksumMismatchError{Artifact: file, Expected: current.Digest, Actual: digest}
	}
	return nil
}

func record(pkg *domain.Package, tag domain.Platform, root string, executables []string, a *artifact) *domain.InstalledPackage {
	installed := &domain.InstalledPackage{
		Name:        pkg.Name,
		Version:     pkg.Version,
		Platform:    tag,
		Root:        root,
		Executables: executables,
		Artifact:    a.url,
		Digest:      a.digest,
		InstalledAt: time.Now().UTC(),
	}
	if installed.Executables == nil {
		installed.Executables = []string{}
	}
	if pkg.Source != nil {
		installed.Source = pkg.Source.URL()
	}
	return installed
}

func removeRoot(root string) error {
	if root == "" {
		return nil
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("removing %s: %w", root, err)
	}
	return nil
}
