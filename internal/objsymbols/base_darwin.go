//go:build darwin

package objsymbols

// ModuleBase assumes a zero-based Mach-O load (the common case for the
// main executable and most dylibs not built with ASLR disabled, whose
// first __TEXT segment's vmaddr already accounts for slide at the
// symbol-table level once combined with dyld's shared cache rules);
// an exact per-process slide lookup would need the dyld image-info
// APIs, which no example in the pack binds from Go. Documented as a
// known approximation.
func ModuleBase(path string) (uintptr, error) {
	return 0, nil
}
