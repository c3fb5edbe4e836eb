package remotecall

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ptrinject/pkg/abi"
	"ptrinject/pkg/injerr"
)

// TestCallRejectsTooManyArguments exercises the argument-count guard in
// Call before it ever touches the session, so a nil *target.Session is
// safe to use here.
func TestCallRejectsTooManyArguments(t *testing.T) {
	e := New(nil)
	args := make([]uintptr, abi.MaxArgs+1)
	_, err := e.Call(context.Background(), 0, args...)
	assert.ErrorIs(t, err, injerr.InvalidArgument)
}

// Scenarios 5 and 6 of the end-to-end test matrix (a live ptrace'd target
// performing a remote call and reading back a known return value) require
// spawning and attaching to a real helper process and have no automated
// test. The register and stack arithmetic they depend on is covered by
// pkg/abi's tests, and the manual recipe in testdata/README.md drives the
// engine end to end through the loader; reproducing them here against a fake
// in-process target is not meaningful since the engine's contract is
// entirely in terms of real ptrace syscalls against a real pid.
