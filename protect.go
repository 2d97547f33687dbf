package detour

// Memory-protection helper (component E). Queries and alters page
// protection, and reports executable-ness of an address, using whatever
// "mapped regions" inventory the platform exposes per §4.E: Linux
// /proc/self/maps, macOS mach_vm_region, Windows VirtualQuery.

// Protection describes the access bits of a page, mirroring the
// MemoryProtection bitset in original_source/source/helpers.cpp.
type Protection struct {
	Read    bool
	Write   bool
	Execute bool
}

func (p Protection) isZero() bool {
	return !p.Read && !p.Write && !p.Execute
}

// getProtection queries the current protection of the page containing
// addr. It returns an error when the address is not currently mapped.
func getProtection(addr uintptr) (Protection, error) {
	return platformGetProtection(addr)
}

// setProtection sets the protection of the len bytes starting at addr,
// rounding out to whole pages as required on POSIX.
func setProtection(addr, length uintptr, prot Protection) error {
	return platformSetProtection(addr, length, prot)
}

// protectMemory is the convenience form used around every patch site:
// locked == false switches the range to R+W+X so it can be written;
// locked == true restores it to R+X.
func protectMemory(addr, length uintptr, locked bool) error {
	if locked {
		return setProtection(addr, length, Protection{Read: true, Execute: true})
	}
	return setProtection(addr, length, Protection{Read: true, Write: true, Execute: true})
}

func pageRound(addr, length uintptr, pageSize uintptr) (uintptr, uintptr) {
	start := addr &^ (pageSize - 1)
	end := (addr + length + pageSize - 1) &^ (pageSize - 1)
	return start, end - start
}
