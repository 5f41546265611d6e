package manager

import (
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/teamcutter/huber/internal/domain"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseLockAcquired Phase = "lock-acquired"
	PhaseResolved     Phase = "resolved"
	PhaseDownloaded   Phase = "downloaded"
	PhaseVerified     Phase = "verified"
	PhaseApplied      Phase = "applied"
	PhaseStateUpdated Phase = "state-updated"
	PhaseFailed       Phase = "failed"
)

// operation tracks one mutating call: its phase, the compensating steps
// for side effects made so far, and cleanups that only run on success.
type operation struct {
	id      string
	kind    string
	name    string
	phase   Phase
	undo    []func() error
	commit  []func() error
	release domain.Releaser
	logger  *log.Logger
}

func (m *Manager) begin(kind, name string) (*operation, error) {
	rel, err := m.locker.Acquire()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if h, ok := rel.(interface{ ID() string }); ok {
		id = h.ID()
	}

	op := &operation{
		id:      id,
		kind:    kind,
		name:    name,
		phase:   PhaseIdle,
		release: rel,
		logger:  m.logger.With("op", id, "operation", kind, "package", name),
	}
	op.advance(PhaseLockAcquired)
	return op, nil
}

func (op *operation) advance(p Phase) {
	op.logger.Debug("phase", "from", op.phase, "to", p)
	op.phase = p
}

func (op *operation) onUndo(f func() error) {
	op.undo = append(op.undo, f)
}

func (op *operation) onCommit(f func() error) {
	op.commit = append(op.commit, f)
}

// finish is deferred by every operation. It rolls back or commits
// depending on *errp and always releases the lock.
func (op *operation) finish(errp *error) {
	if *errp != nil {
		failedAt := op.phase
		op.advance(PhaseFailed)
		op.logger.Debug("rolling back", "at", failedAt, "steps", len(op.undo), "err", *errp)
		for i := len(op.undo) - 1; i >= 0; i-- {
			if err := op.undo[i](); err != nil {
				op.logger.Warn("rollback step failed", "err", err)
			}
		}
	} else {
		for _, f := range op.commit {
			if err := f(); err != nil {
				op.logger.Warn("cleanup failed", "err", err)
			}
		}
		op.advance(PhaseIdle)
	}

	if err := op.release.Release(); err != nil {
		op.logger.Warn("failed to release lock", "err", err)
	}
}
