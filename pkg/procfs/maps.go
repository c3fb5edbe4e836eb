package procfs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ptrinject/pkg/injerr"
)

// SelfPID is the sentinel pid meaning "read /proc/self/maps" rather than
// /proc/<pid>/maps, used when the caller side and the target side both need
// a base lookup and the caller is simply "this process".
const SelfPID = 0

func mapsPath(pid int) string {
	if pid == SelfPID {
		return "/proc/self/maps"
	}
	return fmt.Sprintf("/proc/%d/maps", pid)
}

// mapsLine is one parsed row of a /proc/<pid>/maps file:
// "start-end perms offset dev inode path".
type mapsLine struct {
	start, end uintptr
	path       string
}

func parseMapsLine(line string) (mapsLine, bool) {
	fields := strings.Fields(line)
	if len(fields) < 1 {
		return mapsLine{}, false
	}
	bounds := strings.SplitN(fields[0], "-", 2)
	if len(bounds) != 2 {
		return mapsLine{}, false
	}
	start, err := strconv.ParseUint(bounds[0], 16, 64)
	if err != nil {
		return mapsLine{}, false
	}
	end, err := strconv.ParseUint(bounds[1], 16, 64)
	if err != nil {
		return mapsLine{}, false
	}
	path := ""
	if idx := strings.IndexByte(line, '/'); idx >= 0 {
		path = strings.TrimRight(line[idx:], "\n")
	}
	return mapsLine{start: uintptr(start), end: uintptr(end), path: path}, true
}

func readMaps(pid int) (io.ReadCloser, error) {
	f, err := os.Open(mapsPath(pid))
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", mapsPath(pid), injerr.IOError)
	}
	return f, nil
}

// BaseOf returns the load address of the first mapping in pid's address
// space whose path contains needle as a substring.
func BaseOf(pid int, needle string) (uintptr, error) {
	if needle == "" {
		return 0, fmt.Errorf("base_of: empty needle: %w", injerr.InvalidArgument)
	}
	f, err := readMaps(pid)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return baseOfReader(f, needle)
}

func baseOfReader(r io.Reader, needle string) (uintptr, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ml, ok := parseMapsLine(sc.Text())
		if !ok {
			continue
		}
		if strings.Contains(ml.path, needle) {
			return ml.start, nil
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("base_of: scan maps: %w", injerr.IOError)
	}
	return 0, fmt.Errorf("base_of %q: %w", needle, injerr.NotFound)
}

// ContainingModule returns the canonical path of the mapping in this
// process' own address space that contains addr.
func ContainingModule(addr uintptr) (string, error) {
	f, err := readMaps(SelfPID)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return containingModuleReader(f, addr)
}

func containingModuleReader(r io.Reader, addr uintptr) (string, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ml, ok := parseMapsLine(sc.Text())
		if !ok || ml.path == "" {
			continue
		}
		if addr >= ml.start && addr <= ml.end {
			return ml.path, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("containing_module: scan maps: %w", injerr.IOError)
	}
	return "", fmt.Errorf("containing_module %#x: %w", addr, injerr.NotFound)
}
