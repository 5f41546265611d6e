package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/teamcutter/huber/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
    name         TEXT PRIMARY KEY,
    version      TEXT NOT NULL,
    platform     TEXT NOT NULL DEFAULT '',
    root         TEXT NOT NULL,
    executables  TEXT NOT NULL DEFAULT '[]',
    artifact     TEXT NOT NULL DEFAULT '',
    digest       TEXT NOT NULL DEFAULT '',
    source       TEXT NOT NULL DEFAULT '',
    installed_at TEXT NOT NULL
);
`

const selectColumns = `name, version, platform, root, executables, artifact, digest, source, installed_at`

type SQLiteState struct {
	mu       sync.RWMutex
	db       *sql.DB
	dbPath   string
	jsonPath string
	logger   *log.Logger
}

// NewSQLite opens the database at dbPath. On the first open of an empty
// database an existing JSON state file at jsonPath is imported and moved
// aside to jsonPath.bak.
func NewSQLite(dbPath, jsonPath string, logger *log.Logger) (*SQLiteState, error) {
	if logger == nil {
		logger = log.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteState{
		db:       db,
		dbPath:   dbPath,
		jsonPath: jsonPath,
		logger:   logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteState) migrate() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM packages").Scan(&count); err != nil {
		return err
	}
	if count > 0 || s.jsonPath == "" {
		return nil
	}

	if _, err := os.Stat(s.jsonPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	inv, err := readInventory(s.jsonPath)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, pkg := range inv.Packages {
		if err := insertPkg(tx, pkg); err != nil {
			return fmt.Errorf("failed to insert %s: %w", pkg.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	backupPath := s.jsonPath + ".bak"
	if err := os.Rename(s.jsonPath, backupPath); err != nil {
		s.logger.Warn("failed to back up state file", "path", s.jsonPath, "err", err)
	} else {
		s.logger.Info("migrated state to sqlite", "packages", len(inv.Packages), "backup", backupPath)
	}

	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertPkg(db execer, pkg *domain.InstalledPackage) error {
	executables, err := json.Marshal(pkg.Executables)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO packages
		(name, version, platform, root, executables, artifact, digest, source, installed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.Name, pkg.Version, string(pkg.Platform), pkg.Root, string(executables),
		pkg.Artifact, pkg.Digest, pkg.Source, pkg.InstalledAt.UTC().Format(time.RFC3339Nano))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPkg(row scanner) (*domain.InstalledPackage, error) {
	var pkg domain.InstalledPackage
	var platform, executables, installedAt string

	if err := row.Scan(&pkg.Name, &pkg.Version, &platform, &pkg.Root, &executables,
		&pkg.Artifact, &pkg.Digest, &pkg.Source, &installedAt); err != nil {
		return nil, err
	}

	pkg.Platform = domain.Platform(platform)
	if err := json.Unmarshal([]byte(executables), &pkg.Executables); err != nil {
		return nil, fmt.Errorf("decode executables of %s: %w", pkg.Name, err)
	}
	pkg.InstalledAt, _ = time.Parse(time.RFC3339Nano, installedAt)

	return &pkg, nil
}

func (s *SQLiteState) Get(name string) (*domain.InstalledPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM packages WHERE name = ?`, name)
	pkg, err := scanPkg(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *SQLiteState) Put(pkg *domain.InstalledPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertPkg(s.db, pkg)
}

func (s *SQLiteState) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM packages WHERE name = ?", name)
	return err
}

func (s *SQLiteState) List() ([]*domain.InstalledPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT ` + selectColumns + ` FROM packages ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pkgs []*domain.InstalledPackage
	for rows.Next() {
		pkg, err := scanPkg(rows)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}

	return pkgs, rows.Err()
}

func (s *SQLiteState) Close() error {
	return s.db.Close()
}
