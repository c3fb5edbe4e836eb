// Package procfs implements the Process Locator and Module Map Reader
// components: translating a literal command-line string into a pid, and
// parsing /proc/<pid>/maps for module base addresses.
package procfs

import (
	"fmt"
	"os"
	"strconv"

	"ptrinject/pkg/injerr"
)

// cmdlineReadLimit matches the original implementation's fixed-size read of
// the target's /proc/<pid>/cmdline.
const cmdlineReadLimit = 128

// Locate scans /proc for a process whose /proc/<pid>/cmdline contents match
// cmdline exactly, byte for byte, including any embedded NULs the caller
// supplied. Only the first cmdlineReadLimit bytes of each process's cmdline
// are compared, so a longer literal never matches. Entries that disappear
// mid-scan are skipped silently.
func Locate(cmdline string) (int, error) {
	if len(cmdline) == 0 {
		return 0, fmt.Errorf("locate: empty cmdline literal: %w", injerr.InvalidArgument)
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("locate: read /proc: %w", injerr.IOError)
	}

	want := []byte(cmdline)
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		got, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
		if err != nil {
			// Process exited between readdir and open; not fatal.
			continue
		}
		if len(got) > cmdlineReadLimit {
			got = got[:cmdlineReadLimit]
		}
		if string(got) == string(want) {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("locate %q: %w", cmdline, injerr.NotFound)
}
