//go:build windows

package detour

import (
	"golang.org/x/sys/windows"
)

const (
	memCommit   = 0x1000
	memReserve  = 0x2000
	memRelease  = 0x8000
	pageExecRW  = 0x40
)

// allocationGranularity reads dwAllocationGranularity from
// GetSystemInfo, exactly as 0xffffa-gohooker's allocNearAddress does.
func allocationGranularity() uintptr {
	var info windows.Systeminfo
	windows.GetSystemInfo(&info)
	if info.AllocationGranularity == 0 {
		return memoryBlockSize
	}
	return uintptr(info.AllocationGranularity)
}

// tryReserveBlock requests one executable block at hint via
// VirtualAlloc. VirtualAlloc either honors the address exactly or fails;
// there is no silent relocation to guard against as there is on POSIX's
// advisory mmap hint.
func tryReserveBlock(hint uintptr) (uintptr, bool) {
	addr, err := windows.VirtualAlloc(hint, memoryBlockSize, memCommit|memReserve, pageExecRW)
	if err != nil || addr == 0 {
		return 0, false
	}
	return addr, true
}

func releaseBlock(base uintptr) {
	windows.VirtualFree(base, 0, memRelease)
}
