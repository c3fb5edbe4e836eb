// Package loader is the Driver's core sequence (spec §1, "excluded from
// core" — a thin caller over the remote-call engine): allocate a remote
// buffer, write the library path into it, call dlopen, free the buffer.
// It is the one place this module needs real local pointers to libc
// functions; see libc_linux.go for how it gets them.
package loader

import (
	"context"
	"fmt"

	"ptrinject/pkg/diag"
	"ptrinject/pkg/injerr"
	"ptrinject/pkg/log"
	"ptrinject/pkg/remotecall"
	"ptrinject/pkg/rmem"
	"ptrinject/pkg/target"
)

const (
	rtldNow    = 0x00002
	rtldGlobal = 0x00100

	maxDlerrorLen = 512
)

// Loader runs the allocate/write/dlopen/free sequence against one attached
// session.
type Loader struct {
	sess *target.Session
	eng  *remotecall.Engine
}

// New binds a Loader to sess and the engine that will drive its remote
// calls.
func New(sess *target.Session, eng *remotecall.Engine) *Loader {
	return &Loader{sess: sess, eng: eng}
}

// Inject allocates a remote buffer sized for libraryPath, writes the path
// into it, asks the target's dynamic loader to dlopen it, and frees the
// buffer regardless of outcome. Detaching the session remains the caller's
// job, matching the engine's own "never detach" contract.
func (l *Loader) Inject(ctx context.Context, libraryPath string) error {
	if libraryPath == "" {
		return fmt.Errorf("loader: empty library path: %w", injerr.InvalidArgument)
	}
	pid := l.sess.PID()
	pathBytes := append([]byte(libraryPath), 0)

	remoteBuf, err := l.eng.Call(ctx, localMalloc(), uintptr(len(pathBytes)))
	if err != nil {
		return fmt.Errorf("loader: allocate remote buffer: %w", err)
	}
	if remoteBuf == 0 {
		return fmt.Errorf("loader: remote malloc returned NULL: %w", injerr.DebuggerError)
	}
	log.Logf(0, "allocated remote buffer at %#x", remoteBuf)

	defer l.free(ctx, remoteBuf)

	if err := rmem.WriteRemote(pid, remoteBuf, pathBytes); err != nil {
		return fmt.Errorf("loader: write library path: %w", err)
	}
	log.Logf(0, "wrote library path %q to remote buffer", libraryPath)

	return l.dlopen(ctx, remoteBuf)
}

// dlopen calls the target's dynamic loader on the path already written at
// remoteBuf. A zero return is success; any other return triggers the
// secondary dlerror() remote call described in spec §8 scenario 4.
func (l *Loader) dlopen(ctx context.Context, remoteBuf uintptr) error {
	ret, err := l.eng.Call(ctx, localDlopen(), remoteBuf, rtldNow|rtldGlobal)
	if err != nil {
		return fmt.Errorf("loader: call dlopen: %w", err)
	}
	if ret == 0 {
		log.Logf(0, "library successfully loaded")
		return nil
	}

	errAddr, derr := l.eng.Call(ctx, localDlerror())
	if derr != nil {
		return fmt.Errorf("loader: dlopen failed, and dlerror call also failed: %w", derr)
	}
	if errAddr == 0 {
		return fmt.Errorf("loader: dlopen failed with no dlerror message: %w", injerr.DebuggerError)
	}
	msg, rerr := rmem.ReadCString(l.sess.PID(), errAddr, maxDlerrorLen)
	if rerr != nil {
		return fmt.Errorf("loader: dlopen failed, reading dlerror message: %w", rerr)
	}
	return fmt.Errorf("loader: dlopen failed: %v", diag.DemangleDlerror(msg))
}

// free releases the remote scratch buffer; a failure here is logged, not
// returned, since it happens during cleanup of an already-decided outcome.
func (l *Loader) free(ctx context.Context, remoteBuf uintptr) {
	if _, err := l.eng.Call(ctx, localFree(), remoteBuf); err != nil {
		log.Errorf("loader: free remote buffer %#x: %v", remoteBuf, err)
		return
	}
	log.Logf(0, "freed remote buffer %#x", remoteBuf)
}
