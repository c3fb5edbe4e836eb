// Package abi isolates the x86-64 System V calling-convention details the
// remote-call engine depends on, so a future architecture only has to
// supply a new file in this package rather than touch the engine itself
// (see spec §9, "Architecture").
package abi

import "golang.org/x/sys/unix"

// MaxArgs is the number of integer-width argument registers the System V
// convention provides.
const MaxArgs = 6

// MarshalArgs places up to six integer arguments into the registers the
// callee reads them from: rdi, rsi, rdx, rcx, r8, r9, in that order.
// All six registers are always written; callers pass zero for unused slots.
func MarshalArgs(regs *unix.PtraceRegs, args [MaxArgs]uintptr) {
	regs.Rdi = uint64(args[0])
	regs.Rsi = uint64(args[1])
	regs.Rdx = uint64(args[2])
	regs.Rcx = uint64(args[3])
	regs.R8 = uint64(args[4])
	regs.R9 = uint64(args[5])
}

// ReturnValue extracts the callee's return value from rax.
func ReturnValue(regs *unix.PtraceRegs) uintptr {
	return uintptr(regs.Rax)
}

// AlignForCall computes the stack pointer the callee should see at its
// first instruction, given an arbitrary current rsp.
//
// The ABI requires rsp%16==0 at the "call" instruction; "call" then pushes
// an 8-byte return address, so at the callee's entry point rsp%16==8. We
// are not executing a real "call" (the engine sets rip directly and plants
// the return address itself), so we derive the same callee-entry state
// directly: round rsp down to a 16-byte boundary, then reserve the 8-byte
// slot that will hold the sentinel return address.
func AlignForCall(rsp uint64) uint64 {
	return (rsp &^ 0xF) - 8
}

// ClearSyscallRestart prevents the kernel from treating the upcoming resume
// as the restart of whatever syscall the target was stopped in.
func ClearSyscallRestart(regs *unix.PtraceRegs) {
	regs.Orig_rax = 0
}

// SetEntry points the callee's instruction pointer at addr.
func SetEntry(regs *unix.PtraceRegs, addr uintptr) {
	regs.Rip = uint64(addr)
}
