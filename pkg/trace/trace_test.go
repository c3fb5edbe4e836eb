package trace

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptrinject/pkg/abi"
)

func TestWriterAppendAndReadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.fb")

	w, err := Create(path)
	require.NoError(t, err)

	want := []Frame{
		{
			SessionID: uuid.New(),
			FuncAddr:  0x7f0000001000,
			Args:      [abi.MaxArgs]uintptr{1, 2, 3, 4, 5, 6},
			Result:    21,
			Duration:  3 * time.Millisecond,
			Ok:        true,
		},
		{
			SessionID: uuid.New(),
			FuncAddr:  0x7f0000002000,
			Args:      [abi.MaxArgs]uintptr{0, 0, 0, 0, 0, 0},
			Result:    1,
			Duration:  150 * time.Microsecond,
			Ok:        false,
		},
	}
	for _, fr := range want {
		require.NoError(t, w.Append(fr))
	}
	require.NoError(t, w.Close())

	got, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].SessionID, got[i].SessionID)
		assert.Equal(t, want[i].FuncAddr, got[i].FuncAddr)
		assert.Equal(t, want[i].Args, got[i].Args)
		assert.Equal(t, want[i].Result, got[i].Result)
		assert.Equal(t, want[i].Ok, got[i].Ok)
	}
}
