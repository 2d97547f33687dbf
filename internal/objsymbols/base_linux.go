//go:build linux

package objsymbols

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ModuleBase returns the lowest mapped address of any region backed by
// path in the current process, read from /proc/self/maps — the runtime
// load base a link-time symbol value must be added to.
func ModuleBase(path string) (uintptr, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasSuffix(line, abs) && !strings.HasSuffix(line, path) {
			continue
		}
		var start uint64
		if _, err := fmt.Sscanf(line, "%x-", &start); err != nil {
			continue
		}
		return uintptr(start), nil
	}
	return 0, fmt.Errorf("objsymbols: %s is not mapped in this process", path)
}
