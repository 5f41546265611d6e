package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// DiskCache keeps downloaded artifacts under <dir>/<name>/<version>/<file>,
// keeping the artifact's own file name so its type stays recognisable.
type DiskCache struct {
	sync.RWMutex
	dir string
}

func New(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) Dir() string {
	return c.dir
}

func (c *DiskCache) GetPath(name, version, file string) string {
	return filepath.Join(c.dir, name, version, file)
}

func (c *DiskCache) Has(name, version, file string) bool {
	c.RLock()
	defer c.RUnlock()
	info, err := os.Stat(c.GetPath(name, version, file))
	return err == nil && info.Mode().IsRegular()
}

// Store moves src into the cache and returns its new path. The file name
// of src is kept.
func (c *DiskCache) Store(name, version, src string) (string, error) {
	c.Lock()
	defer c.Unlock()

	destDir := filepath.Join(c.dir, name, version)
	destPath := filepath.Join(destDir, filepath.Base(src))

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	if err := os.Rename(src, destPath); err != nil {
		// src may live on another filesystem
		if err := copyFile(src, destPath); err != nil {
			return "", fmt.Errorf("storing %s: %w", src, err)
		}
		os.Remove(src)
	}

	return destPath, nil
}

func (c *DiskCache) Evict(name, version, file string) error {
	c.Lock()
	defer c.Unlock()

	err := os.Remove(c.GetPath(name, version, file))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	// Drop emptied version and name directories; Remove fails on non-empty ones.
	os.Remove(filepath.Join(c.dir, name, version))
	os.Remove(filepath.Join(c.dir, name))
	return nil
}

func (c *DiskCache) Size() (int64, error) {
	c.RLock()
	defer c.RUnlock()

	var size int64

	err := filepath.Walk(c.dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	return size, err
}

func (c *DiskCache) Clear() error {
	c.Lock()
	defer c.Unlock()

	return os.RemoveAll(c.dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
