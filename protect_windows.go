//go:build windows

package detour

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

var errNotMapped = errors.New("detour: address is not mapped")

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procFlushInstructionCache = modkernel32.NewProc("FlushInstructionCache")
)

// flushInstructionCache implements §5's execution-cache coherence
// invariant, grounded directly on original_source/minhook/src/hook.c's
// "just-in-case" FlushInstructionCache(GetCurrentProcess(), ...) call
// immediately after re-protecting a patched range. x86/x86-64 caches
// are coherent in practice, which is why minhook itself only calls
// this on _WIN32 and just mprotects elsewhere; the POSIX backends
// below follow the same split.
func flushInstructionCache(addr, length uintptr) {
	procFlushInstructionCache.Call(uintptr(windows.CurrentProcess()), addr, length)
}

// platformGetProtection queries VirtualQuery, the Windows "mapped
// regions" inventory named in §4.E.
func platformGetProtection(addr uintptr) (Protection, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return Protection{}, err
	}
	if mbi.State != windows.MEM_COMMIT {
		return Protection{}, errNotMapped
	}
	return protectionFromPAGE(mbi.Protect), nil
}

func protectionFromPAGE(p uint32) Protection {
	switch p & 0xff {
	case windows.PAGE_NOACCESS:
		return Protection{}
	case windows.PAGE_READONLY:
		return Protection{Read: true}
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return Protection{Read: true, Write: true}
	case windows.PAGE_EXECUTE:
		return Protection{Execute: true}
	case windows.PAGE_EXECUTE_READ:
		return Protection{Read: true, Execute: true}
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return Protection{Read: true, Write: true, Execute: true}
	default:
		return Protection{}
	}
}

func pageFromProtection(prot Protection) uint32 {
	switch {
	case prot.Read && prot.Write && prot.Execute:
		return windows.PAGE_EXECUTE_READWRITE
	case prot.Read && prot.Execute:
		return windows.PAGE_EXECUTE_READ
	case prot.Execute:
		return windows.PAGE_EXECUTE
	case prot.Read && prot.Write:
		return windows.PAGE_READWRITE
	case prot.Read:
		return windows.PAGE_READONLY
	default:
		return windows.PAGE_NOACCESS
	}
}

func platformSetProtection(addr, length uintptr, prot Protection) error {
	var oldProt uint32
	if err := windows.VirtualProtect(addr, length, pageFromProtection(prot), &oldProt); err != nil {
		return err
	}
	if prot.Execute {
		flushInstructionCache(addr, length)
	}
	return nil
}
