package target

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/semaphore"

	"ptrinject/pkg/injerr"
)

func TestAttachRejectsInvalidPID(t *testing.T) {
	_, err := Attach(0)
	assert.ErrorIs(t, err, injerr.InvalidArgument)

	_, err = Attach(-1)
	assert.ErrorIs(t, err, injerr.InvalidArgument)
}

func TestAttachDeniesSelf(t *testing.T) {
	// A process cannot ptrace-attach itself; the kernel returns EPERM,
	// which this package surfaces as DebuggerError (spec §8 scenario 3
	// is the cross-user analogue of this same failure mode).
	_, err := Attach(os.Getpid())
	if err == nil {
		t.Skip("attach to self unexpectedly succeeded in this environment")
	}
	assert.ErrorIs(t, err, injerr.DebuggerError)
}

var testSessionID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func newTestSession() *Session {
	return &Session{pid: -1, id: testSessionID, lock: semaphore.NewWeighted(1), attached: true}
}

func TestExclusiveSerializesAccess(t *testing.T) {
	sess := newTestSession()

	var active int32
	var maxObserved int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Exclusive(context.Background(), func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&maxObserved)
					if n <= old || atomic.CompareAndSwapInt32(&maxObserved, old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxObserved, "no two Exclusive calls should ever overlap")
}

func TestExclusiveRejectsUnattachedSession(t *testing.T) {
	sess := newTestSession()
	sess.attached = false
	err := sess.Exclusive(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, injerr.DebuggerError)
}

func TestExclusiveRespectsContextCancellation(t *testing.T) {
	sess := newTestSession()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Hold the lock so Exclusive must wait on the cancelled context.
	assert.NoError(t, sess.lock.Acquire(context.Background(), 1))
	defer sess.lock.Release(1)

	err := sess.Exclusive(ctx, func() error { return nil })
	assert.Error(t, err)
}

func TestSessionAccessors(t *testing.T) {
	sess := newTestSession()
	assert.Equal(t, -1, sess.PID())
	assert.Equal(t, testSessionID, sess.ID())
}

func TestDetachIsIdempotentWhenNotAttached(t *testing.T) {
	sess := newTestSession()
	sess.attached = false
	assert.NoError(t, sess.Detach())
}
