package loader

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
#include <dlfcn.h>

static void *ptrinject_malloc_addr(void)  { return (void *)malloc; }
static void *ptrinject_free_addr(void)    { return (void *)free; }
static void *ptrinject_dlopen_addr(void)  { return (void *)dlopen; }
static void *ptrinject_dlerror_addr(void) { return (void *)dlerror; }
*/
import "C"

// The Symbol Translator's precondition (spec §4.4) is a function pointer
// valid in the caller's own address space, backed by a shared object the
// caller has mapped. Go binaries don't implicitly link libc the way a C
// toolchain's output does, so this thin cgo shim is what gives this
// process its own libdl/libc mapping and real local pointers to the four
// functions the driver needs to call remotely — one line each, mirroring
// how Main.c references `(void*)malloc`, `(void*)dlopen`, etc. directly.
// This is the only cgo in the module; the core (remotecall/symres/procfs)
// stays pure Go and doesn't care how the driver obtained fnLocal.

func localMalloc() uintptr  { return uintptr(C.ptrinject_malloc_addr()) }
func localFree() uintptr    { return uintptr(C.ptrinject_free_addr()) }
func localDlopen() uintptr  { return uintptr(C.ptrinject_dlopen_addr()) }
func localDlerror() uintptr { return uintptr(C.ptrinject_dlerror_addr()) }
