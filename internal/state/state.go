// Package state records which packages are installed. Two backends
// implement domain.State: a JSON file (the default) and SQLite.
package state

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/teamcutter/huber/internal/domain"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store is a domain.State that may hold resources to release.
type Store interface {
	domain.State
	Close() error
}

// Open returns the backend named by backend. The JSON file at jsonPath is
// also the import source when the SQLite backend is first opened.
func Open(backend, jsonPath, dbPath string, logger *log.Logger) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSON(jsonPath), nil
	case BackendSQLite:
		s, err := NewSQLite(dbPath, jsonPath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

func (s *JSONState) Close() error {
	return nil
}
