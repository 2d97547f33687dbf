// Package objsymbols implements the module/symbol-name side of the
// "(module, symbol) → address" external collaborator named in §6: it
// reads a module's own object-file symbol table off disk, for the
// caller to combine with that module's runtime load base.
//
// Grounded on the teacher's internal/objSymbols package (openElf.go,
// openMacho.go, openPe.go, symbols.go); the Mach-O symbol extraction bug
// in the teacher's openMacho.go (returning `nil, nil` instead of the
// populated map) is fixed here.
package objsymbols

import (
	"fmt"
	"io"
	"os"
)

type rawFile interface {
	Symbols() (map[string]uintptr, error)
}

var objType = []func(io.ReaderAt) (rawFile, error){
	openElf,
	openMacho,
	openPE,
}

// ReadSymbols returns every named symbol's link-time address (the
// value recorded in the object file, not yet adjusted for the module's
// runtime load base) for the ELF/Mach-O/PE file at path.
func ReadSymbols(path string) (map[string]uintptr, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var errs []error
	for _, try := range objType {
		if raw, err := try(r); err == nil {
			return raw.Symbols()
		} else {
			errs = append(errs, err)
		}
	}
	return nil, fmt.Errorf("objsymbols: open %s: unrecognized object file (%v)", path, errs)
}
