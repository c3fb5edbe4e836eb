package procfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"ptrinject/pkg/injerr"
)

func TestLocateRejectsEmptyCmdline(t *testing.T) {
	_, err := Locate("")
	assert.ErrorIs(t, err, injerr.InvalidArgument)
}

func TestLocateUnknownProcessIsNotFound(t *testing.T) {
	_, err := Locate("no-such-process-literal-\x00")
	assert.ErrorIs(t, err, injerr.NotFound)
}

func TestLocateFindsSelf(t *testing.T) {
	self, err := os.ReadFile("/proc/self/cmdline")
	if err != nil {
		t.Skipf("no /proc/self/cmdline on this system: %v", err)
	}
	pid, err := Locate(string(self))
	assert.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
