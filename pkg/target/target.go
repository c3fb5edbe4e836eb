// Package target owns the Target Handle described in spec §3: a pid plus
// the implicit ptrace-attachment state, encapsulated as a session handle
// rather than the process-wide global the design notes (§9) warn against.
// It also enforces the "no overlapping remote calls against one target"
// ordering guarantee (spec §5) as code, via a one-slot semaphore.
package target

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"ptrinject/pkg/injerr"
	"ptrinject/pkg/log"
)

// Session is the exclusive debugger-attachment handle for one target pid.
// The zero value is not usable; construct with Attach.
type Session struct {
	pid      int
	id       uuid.UUID
	lock     *semaphore.Weighted
	attached bool
}

// Attach ptrace-attaches to pid and blocks until the target reports its
// attach-stop, matching spec §3's invariant that all remote-call operations
// require the target be attached and stopped. The returned Session owns
// that attachment until Detach.
func Attach(pid int) (*Session, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("attach: invalid pid %d: %w", pid, injerr.InvalidArgument)
	}
	if err := unix.PtraceAttach(pid); err != nil {
		return nil, fmt.Errorf("attach(pid=%d): %v: %w", pid, err, injerr.DebuggerError)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, fmt.Errorf("attach(pid=%d): wait for stop: %v: %w", pid, err, injerr.DebuggerError)
	}
	if !ws.Stopped() {
		return nil, fmt.Errorf("attach(pid=%d): target did not stop on attach: %w", pid, injerr.DebuggerError)
	}

	sess := &Session{
		pid:      pid,
		id:       uuid.New(),
		lock:     semaphore.NewWeighted(1),
		attached: true,
	}
	log.Logf(1, "session %v attached to pid %d", sess.id, pid)
	return sess, nil
}

// PID returns the target's process id.
func (s *Session) PID() int {
	return s.pid
}

// ID returns the session's correlation id, used by pkg/trace to tag which
// session a recorded remote call belongs to.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Exclusive runs fn while holding the session's single-slot lock, so that
// no two remote calls against this target ever overlap (spec §5). It
// returns an error wrapping ctx.Err() without running fn if ctx is already
// done or is cancelled while waiting for the lock.
func (s *Session) Exclusive(ctx context.Context, fn func() error) error {
	if !s.attached {
		return fmt.Errorf("session %v: not attached: %w", s.id, injerr.DebuggerError)
	}
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("session %v: acquire: %w", s.id, err)
	}
	defer s.lock.Release(1)
	return fn()
}

// Detach releases the ptrace attachment. Per spec §4.5's final step, the
// remote-call engine never calls this itself; it is always the driver's
// responsibility, issued once after the last remote call completes.
func (s *Session) Detach() error {
	if !s.attached {
		return nil
	}
	if err := unix.PtraceDetach(s.pid); err != nil {
		return fmt.Errorf("detach(pid=%d): %v: %w", s.pid, err, injerr.DebuggerError)
	}
	s.attached = false
	log.Logf(1, "session %v detached from pid %d", s.id, s.pid)
	return nil
}
