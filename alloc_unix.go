//go:build linux || darwin

package detour

import (
	"os"

	"golang.org/x/sys/unix"
)

func allocationGranularity() uintptr {
	return uintptr(os.Getpagesize())
}

// tryReserveBlock requests exactly one executable/private/anonymous
// memory-block mapping at hint. It refuses the hint unless the range is
// currently unmapped (checked via the platform's region inventory, §4.E)
// and uses MAP_FIXED so the kernel does not silently relocate it — the
// allocator's own probing loop is what picks the address, not the OS.
// hint == 0 means "anywhere", used on 32-bit platforms.
func tryReserveBlock(hint uintptr) (uintptr, bool) {
	if hint != 0 {
		gran := allocationGranularity()
		for off := uintptr(0); off < memoryBlockSize; off += gran {
			if _, err := getProtection(hint + off); err == nil {
				// already mapped, hint unusable
				return 0, false
			}
		}
	}

	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	if hint != 0 {
		flags |= unix.MAP_FIXED
	}
	prot := unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC

	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		hint,
		memoryBlockSize,
		uintptr(prot),
		uintptr(flags),
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		return 0, false
	}
	if hint != 0 && addr != hint {
		unix.Syscall(unix.SYS_MUNMAP, addr, memoryBlockSize, 0)
		return 0, false
	}
	return addr, true
}

func releaseBlock(base uintptr) {
	unix.Syscall(unix.SYS_MUNMAP, base, memoryBlockSize, 0)
}
