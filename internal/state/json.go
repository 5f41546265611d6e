package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/fsutil"
)

// JSONState keeps the inventory in one JSON file. The file is read on
// every call and rewritten whole on every change.
type JSONState struct {
	mu   sync.Mutex
	path string
}

func NewJSON(path string) *JSONState {
	return &JSONState{path: path}
}

func (s *JSONState) Path() string {
	return s.path
}

func (s *JSONState) load() (*domain.Inventory, error) {
	return readInventory(s.path)
}

func readInventory(path string) (*domain.Inventory, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewInventory(), nil
	}
	if err != nil {
		return nil, err
	}

	var inv domain.Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if inv.Packages == nil {
		inv.Packages = make(map[string]*domain.InstalledPackage)
	}
	return &inv, nil
}

func (s *JSONState) flush(inv *domain.Inventory) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, data, 0644)
}

func (s *JSONState) Get(name string) (*domain.InstalledPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.load()
	if err != nil {
		return nil, err
	}
	return inv.Packages[name], nil
}

func (s *JSONState) Put(pkg *domain.InstalledPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.load()
	if err != nil {
		return err
	}
	inv.Packages[pkg.Name] = pkg
	return s.flush(inv)
}

func (s *JSONState) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := inv.Packages[name]; !ok {
		return nil
	}
	delete(inv.Packages, name)
	return s.flush(inv)
}

func (s *JSONState) List() ([]*domain.InstalledPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.load()
	if err != nil {
		return nil, err
	}
	return sorted(inv), nil
}

func sorted(inv *domain.Inventory) []*domain.InstalledPackage {
	pkgs := make([]*domain.InstalledPackage, 0, len(inv.Packages))
	for _, p := range inv.Packages {
		pkgs = append(pkgs, p)
	}
	slices.SortFunc(pkgs, func(a, b *domain.InstalledPackage) int {
		return strings.Compare(a.Name, b.Name)
	})
	return pkgs
}
