// Package resolver narrows manifest store results down to what a search
// or an install asked for.
package resolver

import (
	"context"
	"fmt"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/registry"
)

type Store interface {
	Find(ctx context.Context, name string) ([]domain.Package, error)
	Search(ctx context.Context, q registry.Query) ([]domain.PackageSummary, error)
}

type Resolver struct {
	store Store
}

// Request mirrors the search command's flags. All with a Name lists
// every version of that package instead of searching.
type Request struct {
	Name    string
	Owner   string
	Pattern string
	All     bool
}

func New(store Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Versions(ctx context.Context, name string) ([]domain.PackageSummary, error) {
	pkgs, err := r.store.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	return summaries(pkgs), nil
}

func (r *Resolver) Search(ctx context.Context, req Request) ([]domain.PackageSummary, error) {
	if _, err := registry.CompilePattern(req.Pattern); err != nil {
		return nil, err
	}

	if req.All && req.Name != "" {
		return r.Versions(ctx, req.Name)
	}

	return r.store.Search(ctx, registry.Query{
		Name:    req.Name,
		Owner:   req.Owner,
		Pattern: req.Pattern,
	})
}

// Select picks the manifest instance to install. With a version it
// prefers an instance pinned to that version and falls back to an
// unversioned one, which is then pinned. Without a version it returns
// the newest versioned instance.
func (r *Resolver) Select(ctx context.Context, name, version string) (*domain.Package, error) {
	pkgs, err := r.store.Find(ctx, name)
	if err != nil {
		return nil, err
	}

	if version != "" {
		for i := range pkgs {
			if pkgs[i].Version != "" && domain.SameVersion(pkgs[i].Version, version) {
				return &pkgs[i], nil
			}
		}
		for i := range pkgs {
			if pkgs[i].Version == "" {
				p := pkgs[i]
				p.Version = version
				return &p, nil
			}
		}
		return nil, fmt.Errorf("%s@%s: %w", name, version, domain.ErrNotFound)
	}

	// Find sorts unversioned instances last.
	if pkgs[0].Version == "" {
		return nil, fmt.Errorf("%s has no released version, pass one explicitly: %w", name, domain.ErrNotFound)
	}
	return &pkgs[0], nil
}

func (r *Resolver) Latest(ctx context.Context, name string) (string, error) {
	pkg, err := r.Select(ctx, name, "")
	if err != nil {
		return "", err
	}
	return pkg.Version, nil
}

func summaries(pkgs []domain.Package) []domain.PackageSummary {
	out := make([]domain.PackageSummary, len(pkgs))
	for i := range pkgs {
		out[i] = pkgs[i].Summary()
	}
	return out
}

// Packages returns every manifest instance of name, newest first.
func (r *Resolver) Packages(ctx context.Context, name string) ([]domain.Package, error) {
	return r.store.Find(ctx, name)
}
