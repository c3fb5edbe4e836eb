// Package diag prettifies the one diagnostic string this module ever reads
// back out of a target: the dlerror() text fetched after a failed dlopen
// (spec §8 scenario 4). That text frequently embeds a mangled C++ symbol
// name (an undefined-symbol or version-mismatch message against a C++
// target), so it is run through demangle before being logged. Nothing else
// in this module needs name demangling — the Symbol Translator works
// purely by module base-delta, never by symbol name (spec §4.4).
package diag

import (
	"regexp"

	"github.com/ianlancetaylor/demangle"
)

// mangledName matches the Itanium C++ ABI mangling prefix so we only
// attempt to demangle tokens that look like mangled symbols, rather than
// running demangle.Filter's own heuristics over the whole dlerror string
// and risking a misleading rewrite of plain English text.
var mangledName = regexp.MustCompile(`_Z[A-Za-z0-9_]+`)

// DemangleDlerror rewrites any Itanium-mangled symbol names embedded in a
// dlerror() string into their human-readable form, leaving the rest of the
// message untouched.
func DemangleDlerror(msg string) string {
	return mangledName.ReplaceAllStringFunc(msg, func(sym string) string {
		out, err := demangle.ToString(sym)
		if err != nil {
			return sym
		}
		return out
	})
}
