//go:build windows

package detour

import "golang.org/x/sys/windows"

// ResolveSymbol implements §6's "(module-handle, symbol-name) →
// address" collaborator for Windows directly via the platform
// dynamic-linker interface (LoadLibrary/GetProcAddress), rather than
// through internal/objsymbols' PE parser: Windows already exposes the
// canonical lookup the spec defers to, so there is no reason to
// reimplement it by hand-walking the PE export table. module == ""
// resolves against the running process's own executable module.
func ResolveSymbol(module, symbol string) (uintptr, Status) {
	var handle windows.Handle
	var err error
	if module == "" {
		handle, err = windows.GetModuleHandle("")
	} else {
		handle, err = windows.LoadLibrary(module)
	}
	if err != nil || handle == 0 {
		return 0, StatusModuleNotFound
	}

	addr, err := windows.GetProcAddress(handle, symbol)
	if err != nil || addr == 0 {
		return 0, StatusFunctionNotFound
	}
	return addr, StatusOK
}
