// Package registry reads a manifest repository: an index.yaml listing
// every package, plus one packages/<name>.yaml per package holding one
// YAML document per manifest instance.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/teamcutter/huber/internal/domain"
)

const DefaultMaxParallel = 8

// Query filters compose with AND. Empty fields do not filter.
type Query struct {
	Name    string
	Owner   string
	Pattern string
}

type Store struct {
	loader      Loader
	logger      *log.Logger
	maxParallel int

	index    []domain.PackageIndex
	indexMu  sync.Once
	indexErr error
}

func New(loader Loader, logger *log.Logger, maxParallel int) *Store {
	if logger == nil {
		logger = log.Default()
	}
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &Store{
		loader:      loader,
		logger:      logger,
		maxParallel: maxParallel,
	}
}

// CompilePattern compiles a search pattern, reporting a malformed one as
// domain.ErrInvalidPattern. An empty pattern yields nil.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", domain.ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

func (s *Store) loadIndex(ctx context.Context) error {
	s.indexMu.Do(func() {
		data, err := s.loader.Load(ctx, IndexFile)
		if err != nil {
			s.indexErr = fmt.Errorf("loading index: %w", err)
			return
		}

		index, err := domain.DecodeIndex(data)
		if err != nil {
			s.indexErr = fmt.Errorf("decoding index: %w", err)
			return
		}

		s.logger.Debug("loaded package index", "entries", len(index))
		s.index = index
	})
	return s.indexErr
}

func (s *Store) List(ctx context.Context) ([]domain.PackageIndex, error) {
	if err := s.loadIndex(ctx); err != nil {
		return nil, err
	}
	return append([]domain.PackageIndex(nil), s.index...), nil
}

// Find returns every manifest instance named name, newest first.
func (s *Store) Find(ctx context.Context, name string) ([]domain.Package, error) {
	data, err := s.loader.Load(ctx, ManifestPath(name))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	all, err := domain.DecodeManifests(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}

	var pkgs []domain.Package
	for _, p := range all {
		if p.Name == name {
			pkgs = append(pkgs, p)
		}
	}

	if len(pkgs) == 0 {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrNotFound)
	}

	domain.SortNewestFirst(pkgs)
	return pkgs, nil
}

// Search returns a summary of every index entry that matches q, in index
// order. Without a name or pattern the index alone answers. Otherwise
// each candidate's newest manifest fills in version and description, and
// the pattern is tested against the name and the description. A
// candidate whose manifest cannot be loaded keeps its index summary.
func (s *Store) Search(ctx context.Context, q Query) ([]domain.PackageSummary, error) {
	re, err := CompilePattern(q.Pattern)
	if err != nil {
		return nil, err
	}

	if err := s.loadIndex(ctx); err != nil {
		return nil, err
	}

	var candidates []domain.PackageIndex
	for _, idx := range s.index {
		if q.Name != "" && idx.Name != q.Name {
			continue
		}
		if q.Owner != "" && idx.Owner != q.Owner {
			continue
		}
		candidates = append(candidates, idx)
	}

	summaries := make([]domain.PackageSummary, len(candidates))
	for i, idx := range candidates {
		summaries[i] = idx.Summary()
	}
	if q.Name == "" && re == nil {
		return summaries, nil
	}

	var g errgroup.Group
	g.SetLimit(s.maxParallel)

	for i, idx := range candidates {
		g.Go(func() error {
			pkgs, err := s.Find(ctx, idx.Name)
			if err != nil {
				s.logger.Warn("using index entry, manifest unavailable", "package", idx.Name, "err", err)
				return nil
			}
			summaries[i] = pkgs[0].Summary()
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []domain.PackageSummary
	for _, sum := range summaries {
		if re != nil && !re.MatchString(sum.Name) && !re.MatchString(sum.Description) {
			continue
		}
		results = append(results, sum)
	}

	return results, nil
}
