package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestMarshalArgsPlacesArgsInSystemVOrder(t *testing.T) {
	var regs unix.PtraceRegs
	MarshalArgs(&regs, [MaxArgs]uintptr{1, 2, 3, 4, 5, 6})

	assert.EqualValues(t, 1, regs.Rdi)
	assert.EqualValues(t, 2, regs.Rsi)
	assert.EqualValues(t, 3, regs.Rdx)
	assert.EqualValues(t, 4, regs.Rcx)
	assert.EqualValues(t, 5, regs.R8)
	assert.EqualValues(t, 6, regs.R9)
}

func TestMarshalArgsLeavesRegsOtherwiseUntouched(t *testing.T) {
	regs := unix.PtraceRegs{Rax: 0xdead, Rip: 0xbeef}
	MarshalArgs(&regs, [MaxArgs]uintptr{9, 9, 9, 9, 9, 9})

	assert.EqualValues(t, 0xdead, regs.Rax)
	assert.EqualValues(t, 0xbeef, regs.Rip)
}

func TestAlignForCallProducesCalleeEntryAlignment(t *testing.T) {
	for _, rsp := range []uint64{0x7ffc00001230, 0x7ffc00001238, 0x7ffc00001000, 0x7ffc00001fff} {
		aligned := AlignForCall(rsp)
		assert.EqualValuesf(t, 8, aligned%16, "rsp=%#x aligned=%#x", rsp, aligned)
		assert.LessOrEqual(t, aligned, rsp)
	}
}

func TestReturnValueReadsRax(t *testing.T) {
	regs := unix.PtraceRegs{Rax: 21}
	assert.EqualValues(t, 21, ReturnValue(&regs))
}

func TestClearSyscallRestartZeroesOrigRax(t *testing.T) {
	regs := unix.PtraceRegs{Orig_rax: 57}
	ClearSyscallRestart(&regs)
	assert.EqualValues(t, 0, regs.Orig_rax)
}

func TestSetEntryWritesRip(t *testing.T) {
	var regs unix.PtraceRegs
	SetEntry(&regs, 0x400000)
	assert.EqualValues(t, 0x400000, regs.Rip)
}
