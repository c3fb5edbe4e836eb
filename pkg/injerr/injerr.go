// Package injerr defines the closed error taxonomy shared by every package
// in this module. Callers use errors.Is against these sentinels; nothing
// here builds custom Is/Unwrap machinery beyond the stdlib %w verb.
package injerr

import "errors"

var (
	// InvalidArgument covers empty needles, cmdline literals and library
	// paths, non-positive pids, and out-of-range argument counts caught
	// before any syscall is attempted.
	InvalidArgument = errors.New("invalid argument")

	// NotFound covers a process, module, or containing mapping that could
	// not be located.
	NotFound = errors.New("not found")

	// IOError covers pseudo-file open/read failures under /proc.
	IOError = errors.New("i/o error")

	// DebuggerError covers a failed ptrace attach, detach, getregs,
	// setregs, or cont.
	DebuggerError = errors.New("debugger error")

	// ShortTransfer covers a cross-process memory operation that moved
	// fewer bytes than requested.
	ShortTransfer = errors.New("short transfer")

	// TargetGone covers a target that exited or was killed mid-call.
	TargetGone = errors.New("target gone")

	// UnexpectedStop is reserved for diagnostics; intervening non-fatal
	// signals during a remote call are absorbed, never surfaced as this.
	UnexpectedStop = errors.New("unexpected stop")
)
