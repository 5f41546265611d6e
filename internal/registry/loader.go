package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/fetcher"
	"github.com/teamcutter/huber/internal/version"
)

const (
	IndexFile   = "index.yaml"
	PackagesDir = "packages"

	DefaultTTL = 10 * time.Minute
)

// Loader reads one document of a manifest repository by its slash
// separated path. A missing document is reported as domain.ErrNotFound.
type Loader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

func ManifestPath(name string) string {
	return PackagesDir + "/" + name + ".yaml"
}

// NewLoader picks an HTTP loader for http(s) locations and a local one
// for everything else.
func NewLoader(location, cacheDir string, ttl time.Duration, token string) Loader {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPLoader(location, cacheDir, ttl, token)
	}
	return NewLocalLoader(location)
}

type LocalLoader struct {
	dir string
}

func NewLocalLoader(dir string) *LocalLoader {
	return &LocalLoader{dir: dir}
}

func (l *LocalLoader) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(l.dir, filepath.FromSlash(path)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, nil
}

type HTTPLoader struct {
	sync.RWMutex
	client   *http.Client
	baseURL  string
	cacheDir string
	ttl      time.Duration
	token    string
}

func NewHTTPLoader(baseURL, cacheDir string, ttl time.Duration, token string) *HTTPLoader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &HTTPLoader{
		client:   &http.Client{},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		cacheDir: cacheDir,
		ttl:      ttl,
		token:    token,
	}
}

func (h *HTTPLoader) Load(ctx context.Context, path string) ([]byte, error) {
	if cached, ok := h.getFromCache(path); ok {
		return cached, nil
	}

	u := h.baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if h.token != "" && fetcher.IsGithubHost(req.URL) {
		req.Header.Set("Authorization", "token "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status: %d", path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	_ = h.storeToCache(path, data)
	return data, nil
}

func (h *HTTPLoader) cachePath(path string) string {
	return filepath.Join(h.cacheDir, filepath.FromSlash(path))
}

func (h *HTTPLoader) getFromCache(path string) ([]byte, bool) {
	if h.cacheDir == "" {
		return nil, false
	}

	h.RLock()
	defer h.RUnlock()

	p := h.cachePath(path)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}

	if time.Since(info.ModTime()) > h.ttl {
		return nil, false
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}

	return data, true
}

func (h *HTTPLoader) storeToCache(path string, data []byte) error {
	if h.cacheDir == "" {
		return nil
	}

	h.Lock()
	defer h.Unlock()

	p := h.cachePath(path)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}
