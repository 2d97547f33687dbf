//go:build linux || darwin

package detour

import "golang.org/x/sys/unix"

// posixMprotect is the shared POSIX tail of platformSetProtection for
// Linux and macOS: round out to whole pages, as required by the
// contract, then mprotect the range. Grounded on the teacher's
// protectPages/reProtectPages (complexhook_unix.go) and
// qrdl-testaroli's mem_unix.go.
func posixMprotect(addr, length uintptr, prot Protection) error {
	pageSize := uintptr(unix.Getpagesize())
	start, size := pageRound(addr, length, pageSize)

	var flags int
	if prot.Read {
		flags |= unix.PROT_READ
	}
	if prot.Write {
		flags |= unix.PROT_WRITE
	}
	if prot.Execute {
		flags |= unix.PROT_EXEC
	}

	data := unsafeByteSliceAt(start, size)
	return unix.Mprotect(data, flags)
}
