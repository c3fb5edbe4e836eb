// Package rmem implements cross-process memory I/O using the vectored
// process_vm_readv/process_vm_writev syscalls, which move bytes between two
// address spaces in one call without requiring the target to be stopped at
// an instruction boundary. The remote-call engine uses it for its one-word
// sentinel write; the driver uses it for library-path strings of tens to
// hundreds of bytes.
package rmem

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"ptrinject/pkg/injerr"
)

// ReadRemote reads len(buf) bytes from addr in pid's address space into buf.
// A transfer moving fewer bytes than len(buf) is reported as ShortTransfer,
// never silently accepted as partial success.
func ReadRemote(pid int, addr uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := transfer(pid, addr, buf, unix.ProcessVMReadv)
	if err != nil {
		return fmt.Errorf("read_remote(pid=%d, addr=%#x, len=%d): %w", pid, addr, len(buf), injerr.IOError)
	}
	if n != len(buf) {
		return fmt.Errorf("read_remote(pid=%d, addr=%#x): got %d of %d bytes: %w",
			pid, addr, n, len(buf), injerr.ShortTransfer)
	}
	return nil
}

// WriteRemote writes buf into pid's address space at addr.
func WriteRemote(pid int, addr uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := transfer(pid, addr, buf, unix.ProcessVMWritev)
	if err != nil {
		return fmt.Errorf("write_remote(pid=%d, addr=%#x, len=%d): %w", pid, addr, len(buf), injerr.IOError)
	}
	if n != len(buf) {
		return fmt.Errorf("write_remote(pid=%d, addr=%#x): wrote %d of %d bytes: %w",
			pid, addr, n, len(buf), injerr.ShortTransfer)
	}
	return nil
}

type vmOp func(pid int, local, remote []unix.Iovec, flags uint) (int, error)

func transfer(pid int, addr uintptr, buf []byte, op vmOp) (int, error) {
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.Iovec{{Base: (*byte)(unsafe.Pointer(addr))}}
	remote[0].SetLen(len(buf))
	return op(pid, local, remote, 0)
}

// WriteWord writes a single machine word to addr in pid's address space,
// little-endian. This is the primitive the remote-call engine uses to
// plant the sentinel return address.
func WriteWord(pid int, addr uintptr, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	return WriteRemote(pid, addr, buf[:])
}

// ReadCString reads a NUL-terminated string from addr, up to max bytes. It
// is used to fetch dlerror() output, whose length is unknown up front.
func ReadCString(pid int, addr uintptr, max int) (string, error) {
	const chunk = 64
	var out []byte
	for len(out) < max {
		n := chunk
		if len(out)+n > max {
			n = max - len(out)
		}
		buf := make([]byte, n)
		if err := ReadRemote(pid, addr+uintptr(len(out)), buf); err != nil {
			return "", err
		}
		if idx := indexByte(buf, 0); idx >= 0 {
			out = append(out, buf[:idx]...)
			return string(out), nil
		}
		out = append(out, buf...)
	}
	return string(out), nil
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}
