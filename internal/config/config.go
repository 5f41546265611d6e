package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/teamcutter/huber/internal/fsutil"
	"github.com/teamcutter/huber/internal/registry"
	"github.com/teamcutter/huber/internal/state"
)

const (
	FileName          = "config.toml"
	DefaultRepository = "https://raw.githubusercontent.com/teamcutter/huber/main/registry"
	DefaultTokenEnv   = "GITHUB_TOKEN"

	EnvHome       = "HUBER_HOME"
	EnvRepository = "HUBER_REPOSITORY"
)

type Config struct {
	HuberDir       string   `toml:"huber_dir"`
	BinDir         string   `toml:"bin_dir"`
	PackagesDir    string   `toml:"packages_dir"`
	CacheDir       string   `toml:"cache_dir"`
	StateFile      string   `toml:"state_file"`
	StateBackend   string   `toml:"state_backend"`
	LockFile       string   `toml:"lock_file"`
	KeyringDir     string   `toml:"keyring_dir"`
	Repository     string   `toml:"repository"`
	IndexTTL       Duration `toml:"index_ttl"`
	GithubTokenEnv string   `toml:"github_token_env"`
	MaxParallel    int      `toml:"max_parallel"`
	LogLevel       string   `toml:"log_level"`
}

// Duration reads and writes TOML strings like "10m".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Dir is the huber home: $HUBER_HOME, or ~/.huber.
func Dir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	return filepath.Join(home, ".huber"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

func DefaultConfig() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	cfg := &Config{HuberDir: dir}
	cfg.fill()
	return cfg, nil
}

// fill derives every unset setting from HuberDir.
func (c *Config) fill() {
	base := c.HuberDir

	if c.BinDir == "" {
		c.BinDir = filepath.Join(base, "bin")
	}
	if c.PackagesDir == "" {
		c.PackagesDir = filepath.Join(base, "packages")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(base, "cache")
	}
	if c.StateBackend == "" {
		c.StateBackend = state.BackendJSON
	}
	if c.StateFile == "" {
		name := "installed.json"
		if c.StateBackend == state.BackendSQLite {
			name = "installed.db"
		}
		c.StateFile = filepath.Join(base, name)
	}
	if c.LockFile == "" {
		c.LockFile = filepath.Join(base, "huber.lock")
	}
	if c.KeyringDir == "" {
		c.KeyringDir = filepath.Join(base, "keyrings")
	}
	if c.Repository == "" {
		c.Repository = DefaultRepository
	}
	if c.IndexTTL.Duration == 0 {
		c.IndexTTL.Duration = registry.DefaultTTL
	}
	if c.GithubTokenEnv == "" {
		c.GithubTokenEnv = DefaultTokenEnv
	}
	if c.MaxParallel == 0 {
		c.MaxParallel = registry.DefaultMaxParallel
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads config.toml from the huber home. A missing file yields the
// defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile applies the file over empty settings, then environment
// overrides, then derives what is still unset.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if dir := os.Getenv(EnvHome); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", EnvHome, err)
		}
		cfg.HuberDir = abs
	}
	if cfg.HuberDir == "" {
		cfg.HuberDir = filepath.Dir(path)
	}
	if repo := os.Getenv(EnvRepository); repo != "" {
		cfg.Repository = repo
	}

	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StateBackend {
	case state.BackendJSON, state.BackendSQLite:
	default:
		return fmt.Errorf("state_backend must be %q or %q, got %q", state.BackendJSON, state.BackendSQLite, c.StateBackend)
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel)
	}
	if c.IndexTTL.Duration < 0 {
		return fmt.Errorf("index_ttl must not be negative")
	}
	return nil
}

func (c *Config) GithubToken() string {
	return os.Getenv(c.GithubTokenEnv)
}

// Save writes the config as TOML, replacing path atomically.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0644)
}
