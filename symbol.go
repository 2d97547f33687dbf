//go:build !windows

package detour

import (
	"os"

	"github.com/go-detour/detour/internal/objsymbols"
)

// ResolveSymbol implements the "(module-handle, symbol-name) → address"
// external collaborator of §6 for POSIX: it reads module's own symbol
// table off disk via internal/objsymbols and adds the module's runtime
// load base. module == "" resolves against the running process's own
// executable, mirroring §6's "on POSIX with module=null, the default
// lookup order is used".
func ResolveSymbol(module, symbol string) (uintptr, Status) {
	path := module
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return 0, StatusModuleNotFound
		}
		path = exe
	}

	syms, err := objsymbols.ReadSymbols(path)
	if err != nil {
		return 0, StatusModuleNotFound
	}
	value, ok := syms[symbol]
	if !ok {
		return 0, StatusFunctionNotFound
	}

	base, err := objsymbols.ModuleBase(path)
	if err != nil {
		return 0, StatusModuleNotFound
	}
	return base + value, StatusOK
}
