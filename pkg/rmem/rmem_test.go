package rmem

import (
	"encoding/binary"
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// selfBuf gives us a real, page-backed address we can hand to
// process_vm_readv/writev against our own pid, exercising the exact
// primitive spec §4.3 describes without needing a second process.
func selfBuf(n int) []byte {
	b := make([]byte, n)
	return b
}

func TestReadWriteRemoteRoundTripOnSelf(t *testing.T) {
	buf := selfBuf(32)
	for i := range buf {
		buf[i] = byte(i)
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))

	payload := []byte("the quick brown fox\x00")
	if err := WriteRemote(os.Getpid(), addr, payload); err != nil {
		t.Skipf("process_vm_writev on self unavailable in this environment: %v", err)
	}
	require.Equal(t, payload, buf[:len(payload)])

	got := make([]byte, len(payload))
	require.NoError(t, ReadRemote(os.Getpid(), addr, got))
	require.Equal(t, payload, got)
}

func TestWriteWordRoundTrip(t *testing.T) {
	buf := selfBuf(8)
	addr := uintptr(unsafe.Pointer(&buf[0]))

	if err := WriteWord(os.Getpid(), addr, 0xdeadbeefcafef00d); err != nil {
		t.Skipf("process_vm_writev on self unavailable in this environment: %v", err)
	}
	require.Equal(t, uint64(0xdeadbeefcafef00d), binary.LittleEndian.Uint64(buf))
}

func TestReadRemoteEmptyBufferIsNoop(t *testing.T) {
	require.NoError(t, ReadRemote(os.Getpid(), 0, nil))
}

func TestReadCStringStopsAtNUL(t *testing.T) {
	buf := selfBuf(128)
	copy(buf, "hello, target\x00garbage-that-should-not-be-read")
	addr := uintptr(unsafe.Pointer(&buf[0]))

	got, err := ReadCString(os.Getpid(), addr, len(buf))
	if err != nil {
		t.Skipf("process_vm_readv on self unavailable in this environment: %v", err)
	}
	require.Equal(t, "hello, target", got)
}

func TestReadRemoteUnmappedAddressFails(t *testing.T) {
	// A deliberately unmapped high address should fail the transfer
	// outright rather than silently succeed with garbage.
	err := ReadRemote(os.Getpid(), ^uintptr(0)-4096, make([]byte, 8))
	require.Error(t, err)
}
