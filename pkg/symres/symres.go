// Package symres is the Symbol Translator: it maps a function pointer valid
// in the caller's own address space to the equivalent virtual address in a
// target process, using only /proc/<pid>/maps base addresses — no
// symbol-table parsing, since ASLR randomizes module bases independently
// but never a module's own internal layout.
package symres

import (
	"fmt"

	"ptrinject/pkg/procfs"
)

// RemoteAddrOf computes the address of the caller-local function fnLocal as
// it will appear inside pid, provided pid has the same shared object
// mapped under the same canonical path.
func RemoteAddrOf(pid int, fnLocal uintptr) (uintptr, error) {
	modPath, err := procfs.ContainingModule(fnLocal)
	if err != nil {
		return 0, fmt.Errorf("symres: locate local module for %#x: %w", fnLocal, err)
	}
	localBase, err := procfs.BaseOf(procfs.SelfPID, modPath)
	if err != nil {
		return 0, fmt.Errorf("symres: local base of %v: %w", modPath, err)
	}
	remoteBase, err := procfs.BaseOf(pid, modPath)
	if err != nil {
		return 0, fmt.Errorf("symres: remote base of %v in pid %d: %w", modPath, pid, err)
	}
	return fnLocal - localBase + remoteBase, nil
}
