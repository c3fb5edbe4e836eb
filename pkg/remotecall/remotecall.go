// Package remotecall is the Remote-Call Engine: the centerpiece of this
// module. It hijacks a stopped target's CPU state to invoke an arbitrary
// function in one of the target's loaded modules, with up to six
// arguments, recovers the return value, and restores the original
// register file byte for byte.
package remotecall

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"ptrinject/pkg/abi"
	"ptrinject/pkg/injerr"
	"ptrinject/pkg/log"
	"ptrinject/pkg/metrics"
	"ptrinject/pkg/rmem"
	"ptrinject/pkg/symres"
	"ptrinject/pkg/target"
	"ptrinject/pkg/trace"
)

// Sentinel is the planted return address. It is not a valid executable
// address in any target (page zero is never mapped executable), so the
// callee's ret instruction raises a synchronous SIGSEGV we wait for. Spec
// §9 asks for an explicit constant here rather than the address of a
// caller-side stack variable, so behavior does not depend on this
// process's own layout.
const Sentinel = 0

// pollInterval governs how often the wait loop checks for a stop while
// also observing ctx cancellation; it does not rate-limit the target.
const pollInterval = 500 * time.Microsecond

// Engine performs remote calls against one attached Session.
type Engine struct {
	sess *target.Session
	met  *metrics.Stats
	tr   *trace.Writer
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches a metrics.Stats sink; nil is safe and simply
// disables instrumentation.
func WithMetrics(m *metrics.Stats) Option {
	return func(e *Engine) { e.met = m }
}

// WithTrace attaches a trace.Writer audit log; nil disables tracing.
func WithTrace(w *trace.Writer) Option {
	return func(e *Engine) { e.tr = w }
}

// New builds an Engine bound to sess.
func New(sess *target.Session, opts ...Option) *Engine {
	e := &Engine{sess: sess}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Call invokes fnLocal (a function pointer valid in this process) inside
// the target with up to six arguments. Excess arguments return
// InvalidArgument rather than being silently dropped (spec §9, "Varargs").
func (e *Engine) Call(ctx context.Context, fnLocal uintptr, args ...uintptr) (uintptr, error) {
	if len(args) > abi.MaxArgs {
		return 0, fmt.Errorf("remote_call: %d arguments exceeds max %d: %w", len(args), abi.MaxArgs, injerr.InvalidArgument)
	}
	var a [abi.MaxArgs]uintptr
	copy(a[:], args)
	return e.Call6(ctx, fnLocal, a)
}

// Call6 is Call with a fixed-size argument array, for callers that already
// have one (e.g. a replayed trace.Frame).
func (e *Engine) Call6(ctx context.Context, fnLocal uintptr, args [abi.MaxArgs]uintptr) (uintptr, error) {
	var (
		result  uintptr
		callErr error
	)
	start := time.Now()
	err := e.sess.Exclusive(ctx, func() error {
		result, callErr = e.call(ctx, fnLocal, args)
		return callErr
	})
	duration := time.Since(start)
	if e.met != nil {
		e.met.ObserveCall(duration, err == nil)
	}
	if e.tr != nil {
		if terr := e.tr.Append(trace.Frame{
			SessionID: e.sess.ID(),
			FuncAddr:  fnLocal,
			Args:      args,
			Result:    result,
			Duration:  duration,
			Ok:        err == nil,
		}); terr != nil {
			log.Logf(0, "remote_call: %v", terr)
		}
	}
	if err != nil {
		return 0, err
	}
	return result, nil
}

// call runs the protocol described in spec §4.5 steps 1-10.
func (e *Engine) call(ctx context.Context, fnLocal uintptr, args [abi.MaxArgs]uintptr) (uintptr, error) {
	pid := e.sess.PID()

	// 1. Translate.
	remoteAddr, err := symres.RemoteAddrOf(pid, fnLocal)
	if err != nil {
		return 0, fmt.Errorf("remote_call: translate %#x: %w", fnLocal, err)
	}

	// 2. Snapshot.
	var original, work unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &original); err != nil {
		return 0, fmt.Errorf("remote_call: getregs: %v: %w", err, injerr.DebuggerError)
	}
	work = original

	// 3. Argument marshalling.
	abi.MarshalArgs(&work, args)

	// 4. Stack alignment.
	work.Rsp = abi.AlignForCall(work.Rsp)

	// 5. Plant sentinel return address.
	if err := rmem.WriteWord(pid, uintptr(work.Rsp), Sentinel); err != nil {
		return 0, fmt.Errorf("remote_call: plant sentinel: %w", err)
	}

	// 6. Set instruction pointer and syscall guard.
	abi.SetEntry(&work, remoteAddr)
	abi.ClearSyscallRestart(&work)

	// 7. Install registers and continue.
	if err := unix.PtraceSetRegs(pid, &work); err != nil {
		return 0, fmt.Errorf("remote_call: setregs: %v: %w", err, injerr.DebuggerError)
	}
	if err := unix.PtraceCont(pid, 0); err != nil {
		return 0, e.restoreAfter(pid, &original, fmt.Errorf("remote_call: cont: %v: %w", err, injerr.DebuggerError))
	}

	// 8. Wait loop.
	if err := e.waitForFault(ctx, pid); err != nil {
		return 0, e.restoreAfter(pid, &original, err)
	}

	// 9. Harvest result.
	var after unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &after); err != nil {
		return 0, e.restoreAfter(pid, &original, fmt.Errorf("remote_call: post-fault getregs: %v: %w", err, injerr.DebuggerError))
	}
	result := abi.ReturnValue(&after)

	// 10. Restore.
	if err := unix.PtraceSetRegs(pid, &original); err != nil {
		return 0, fmt.Errorf("remote_call: restore registers: %v: %w (fatal for session)", err, injerr.DebuggerError)
	}
	return result, nil
}

// waitForFault blocks until the target stops on the sentinel-induced
// SIGSEGV/SIGILL, absorbing any other intervening stop signal by resuming
// the target without delivering it (spec §4.5 step 8).
func (e *Engine) waitForFault(ctx context.Context, pid int) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("remote_call: %w", ctx.Err())
		default:
		}

		var ws unix.WaitStatus
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		if err != nil {
			return fmt.Errorf("remote_call: wait4: %v: %w", err, injerr.DebuggerError)
		}
		if wpid == 0 {
			time.Sleep(pollInterval)
			continue
		}

		switch {
		case ws.Exited():
			return fmt.Errorf("remote_call: target exited with status %d: %w", ws.ExitStatus(), injerr.TargetGone)
		case ws.Signaled():
			return fmt.Errorf("remote_call: target killed by signal %v: %w", ws.Signal(), injerr.TargetGone)
		case ws.Stopped():
			sig := ws.StopSignal()
			if sig == unix.SIGSEGV || sig == unix.SIGILL {
				return nil
			}
			log.Logf(2, "remote_call: absorbing intervening signal %v", sig)
			if err := unix.PtraceCont(pid, 0); err != nil {
				return fmt.Errorf("remote_call: resume after absorbed signal: %v: %w", err, injerr.DebuggerError)
			}
		}
	}
}

// restoreAfter attempts to restore original registers after a failure that
// occurred post-mutation, per spec §4.5's recovery obligation. The restore
// error, if any, is appended to callErr rather than discarded.
func (e *Engine) restoreAfter(pid int, original *unix.PtraceRegs, callErr error) error {
	if err := unix.PtraceSetRegs(pid, original); err != nil {
		return fmt.Errorf("%w (restore also failed: %v, fatal for session)", callErr, err)
	}
	return callErr
}
