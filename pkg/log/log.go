// Package log provides the leveled logging primitive the rest of this
// module uses in place of the bare "log" package: a verbosity-gated
// Logf plus an always-on Errorf for the one-line-per-failure contract.
package log

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

var verbosity int32

// SetVerbosity sets the global -v level. Logf calls with a level above it
// are dropped.
func SetVerbosity(v int) {
	atomic.StoreInt32(&verbosity, int32(v))
}

// Logf prints an informational line to stderr if level does not exceed the
// current verbosity. Level 0 lines are always shown; higher levels gate
// progressively noisier detail behind -v.
func Logf(level int, msg string, args ...any) {
	if int32(level) > atomic.LoadInt32(&verbosity) {
		return
	}
	fmt.Fprintf(os.Stderr, "%v %v\n", timestamp(), fmt.Sprintf(msg, args...))
}

// Errorf prints a single diagnostic line per the one-line-per-failure
// requirement; unlike Logf it always prints regardless of verbosity.
func Errorf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "%v ERROR: %v\n", timestamp(), fmt.Sprintf(msg, args...))
}

func timestamp() string {
	return time.Now().Format("15:04:05.000")
}
