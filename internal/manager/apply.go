package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/fetcher"
	"github.com/teamcutter/huber/internal/template"
)

// artifact is a downloaded and cached release file.
type artifact struct {
	url    string
	file   string
	path   string
	digest string
}

// fetchArtifact expands the artifact templates and returns the first one
// that is cached or downloads successfully, in template order.
func (m *Manager) fetchArtifact(ctx context.Context, op *operation, pkg *domain.Package, recipe *domain.PackageManagement, values template.Values) (*artifact, error) {
	urls := template.ExpandAll(recipe.ArtifactTemplates, values)

	for _, u := range urls {
		file := fetcher.FileName(u)
		if m.cache.Has(pkg.Name, pkg.Version, file) {
			op.logger.Debug("using cached artifact", "url", u)
			return &artifact{url: u, file: file, path: m.cache.GetPath(pkg.Name, pkg.Version, file)}, nil
		}
	}

	staging, err := os.MkdirTemp("", "huber-download-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	var errs []error
	for _, u := range urls {
		file := fetcher.FileName(u)
		dst := filepath.Join(staging, file)

		op.logger.Debug("downloading artifact", "url", u)
		if err := m.fetcher.Fetch(ctx, u, dst); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			op.logger.Debug("artifact unavailable", "url", u, "err", err)
			errs = append(errs, err)
			continue
		}

		path, err := m.cache.Store(pkg.Name, pkg.Version, dst)
		if err != nil {
			return nil, fmt.Errorf("caching %s: %w", file, err)
		}
		return &artifact{url: u, file: file, path: path}, nil
	}

	return nil, &domain.ArtifactUnavailableError{
		Package:  pkg.String(),
		Attempts: urls,
		Err:      errors.Join(errs...),
	}
}

// verify checks the artifact checksum and signature. A rejected artifact
// is dropped from the cache so the next attempt downloads it again.
func (m *Manager) verify(ctx context.Context, pkg *domain.Package, recipe *domain.PackageManagement, values template.Values, a *artifact) error {
	digest, err := m.verifier.VerifyChecksum(ctx, a.path, template.Expand(recipe.Checksum, values))
	if err != nil {
		if errors.Is(err, domain.ErrChecksumMismatch) {
			m.evict(pkg, a)
		}
		return err
	}
	a.digest = digest

	if recipe.Signature != "" {
		sigURL := template.Expand(recipe.Signature, values)
		if err := m.verifier.VerifySignature(ctx, pkg.Name, a.path, sigURL); err != nil {
			m.evict(pkg, a)
			return err
		}
	}

	return nil
}

func (m *Manager) evict(pkg *domain.Package, a *artifact) {
	if err := m.cache.Evict(pkg.Name, pkg.Version, a.file); err != nil {
		m.logger.Warn("failed to discard artifact", "path", a.path, "err", err)
	}
}

func (m *Manager) packageRoot(name, version string) string {
	return filepath.Join(m.packagesDir, name, version)
}

// stage creates a fresh package root that is removed again on rollback.
func (m *Manager) stage(op *operation, root string) error {
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("clearing %s: %w", root, err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", root, err)
	}
	op.onUndo(func() error { return os.RemoveAll(root) })
	return nil
}

// unpack applies the built-in install logic: extract an archive, or copy
// a raw executable under the package name.
func (m *Manager) unpack(pkg *domain.Package, a *artifact, root string) error {
	if m.extractor.Supports(a.file) {
		if err := m.extractor.Extract(a.path, root); err != nil {
			return fmt.Errorf("extracting %s: %w", a.file, err)
		}
		return nil
	}

	name := pkg.Name
	if strings.EqualFold(filepath.Ext(a.file), ".exe") {
		name += ".exe"
	}
	return copyExecutable(a.path, filepath.Join(root, name))
}

func (m *Manager) runCommands(ctx context.Context, op *operation, commands []string, dir string, values template.Values, env []string) error {
	for _, c := range template.ExpandAll(commands, values) {
		op.logger.Debug("running command", "command", c)
		if err := m.runner.Run(ctx, c, dir, env); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) commandEnv(pkg *domain.Package, a *artifact, root, previous string) []string {
	env := []string{
		"HUBER_PACKAGE=" + pkg.Name,
		"HUBER_VERSION=" + pkg.Version,
		"HUBER_ARTIFACT=" + a.path,
		"HUBER_PKG_ROOT=" + root,
		"HUBER_BIN_DIR=" + m.binDir,
	}
	if previous != "" {
		env = append(env, "HUBER_PREVIOUS_VERSION="+previous)
	}
	return env
}

// linkAll symlinks every executable into the bin directory and returns
// the link names. Replaced links are restored on rollback.
func (m *Manager) linkAll(op *operation, executables []string) ([]string, error) {
	if len(executables) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(m.binDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bin directory: %w", err)
	}

	names := make([]string, 0, len(executables))
	for _, path := range executables {
		name := filepath.Base(path)
		if err := m.createSystemLink(op, path, name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (m *Manager) createSystemLink(op *operation, target, name string) error {
	linkPath := filepath.Join(m.binDir, name)

	previous, readErr := os.Readlink(linkPath)
	if _, err := os.Lstat(linkPath); err == nil {
		if readErr != nil {
			return fmt.Errorf("refusing to replace %s: not a symlink", linkPath)
		}
		if err := os.Remove(linkPath); err != nil {
			return err
		}
	}

	if err := os.Symlink(target, linkPath); err != nil {
		if readErr == nil {
			if rerr := os.Symlink(previous, linkPath); rerr != nil {
				op.logger.Warn("failed to restore link", "link", linkPath, "target", previous, "err", rerr)
			}
		}
		return fmt.Errorf("linking %s: %w", name, err)
	}

	op.onUndo(func() error {
		if err := os.Remove(linkPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if readErr == nil {
			return os.Symlink(previous, linkPath)
		}
		return nil
	})
	return nil
}

// unlinkOwned removes the named links that still point into root. Links
// that were since repointed elsewhere are left alone.
func (m *Manager) unlinkOwned(op *operation, names []string, root string) error {
	for _, name := range names {
		linkPath := filepath.Join(m.binDir, name)
		target, err := os.Readlink(linkPath)
		if err != nil || !within(target, root) {
			continue
		}
		if err := os.Remove(linkPath); err != nil {
			return fmt.Errorf("removing %s: %w", linkPath, err)
		}
		op.onUndo(func() error { return os.Symlink(target, linkPath) })
	}
	return nil
}

// findExecutables lists the executables under root. Files inside a bin
// directory win; otherwise every executable in the tree counts. Names
// are unique, the shallowest path wins.
func findExecutables(root string) ([]string, error) {
	var all, inBin []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !isExecutable(d.Name(), info.Mode()) {
			return nil
		}

		all = append(all, path)
		if filepath.Base(filepath.Dir(path)) == "bin" {
			inBin = append(inBin, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	found := all
	if len(inBin) > 0 {
		found = inBin
	}

	slices.SortStableFunc(found, func(a, b string) int {
		return strings.Count(a, string(filepath.Separator)) - strings.Count(b, string(filepath.Separator))
	})

	seen := make(map[string]bool)
	var out []string
	for _, p := range found {
		name := filepath.Base(p)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, p)
	}
	return out, nil
}

func isExecutable(name string, mode os.FileMode) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(filepath.Ext(name), ".exe")
	}
	return mode&0111 != 0
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
