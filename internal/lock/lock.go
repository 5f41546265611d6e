// Package lock guards mutating operations with an OS advisory lock on a
// well known file. Acquisition never waits: a held lock fails at once.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teamcutter/huber/internal/domain"
)

type FileLock struct {
	path string
}

func New(path string) *FileLock {
	return &FileLock{path: path}
}

func (l *FileLock) Path() string {
	return l.path
}

// Held is an acquired lock. The OS drops it if the process dies before
// Release is called.
type Held struct {
	file *os.File
	id   string
	once sync.Once
	err  error
}

// ID is a per-acquisition operation id, also written into the lock file.
func (h *Held) ID() string {
	return h.id
}

func (l *FileLock) Acquire() (domain.Releaser, error) {
	h, err := l.TryAcquire()
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (l *FileLock) TryAcquire() (*Held, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFile(file); err != nil {
		file.Close()
		if isContended(err) {
			return nil, &domain.AlreadyRunningError{Path: l.path, Err: err}
		}
		return nil, fmt.Errorf("lock %s: %w", l.path, err)
	}

	h := &Held{file: file, id: uuid.NewString()}

	// Diagnostics only; ownership is the OS lock, not the content.
	if err := file.Truncate(0); err == nil {
		fmt.Fprintf(file, "pid=%d\nop=%s\ntimestamp=%s\n", os.Getpid(), h.id, time.Now().UTC().Format(time.RFC3339))
	}

	return h, nil
}

// Release unlocks and closes the file. The file itself stays so the path
// remains stable across runs. Calling Release more than once is safe.
func (h *Held) Release() error {
	h.once.Do(func() {
		unlockErr := unlockFile(h.file)
		closeErr := h.file.Close()
		if unlockErr != nil {
			h.err = fmt.Errorf("unlock: %w", unlockErr)
		} else if closeErr != nil {
			h.err = fmt.Errorf("close lock file: %w", closeErr)
		}
	})
	return h.err
}
