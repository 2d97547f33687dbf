//go:build linux

package detour

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

var errNotMapped = errors.New("detour: address is not mapped")

// platformGetProtection reads /proc/self/maps, the Linux "mapped
// regions" inventory named in §4.E.
func platformGetProtection(addr uintptr) (Protection, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return Protection{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var start, end uint64
		var perms string
		line := scanner.Text()
		if _, err := fmt.Sscanf(line, "%x-%x %4s", &start, &end, &perms); err != nil {
			continue
		}
		if uintptr(start) <= addr && addr < uintptr(end) {
			if len(perms) < 3 {
				return Protection{}, errNotMapped
			}
			return Protection{
				Read:    perms[0] == 'r',
				Write:   perms[1] == 'w',
				Execute: perms[2] == 'x',
			}, nil
		}
	}
	return Protection{}, errNotMapped
}

func platformSetProtection(addr, length uintptr, prot Protection) error {
	return posixMprotect(addr, length, prot)
}
