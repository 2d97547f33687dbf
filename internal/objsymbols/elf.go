package objsymbols

import (
	"debug/elf"
	"io"
)

type elfFile struct {
	elf *elf.File
}

func openElf(r io.ReaderAt) (rawFile, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &elfFile{f}, nil
}

func (e *elfFile) Symbols() (map[string]uintptr, error) {
	syms, err := e.elf.Symbols()
	if err != nil {
		return nil, err
	}
	out := make(map[string]uintptr, len(syms))
	for _, s := range syms {
		out[s.Name] = uintptr(s.Value)
	}
	return out, nil
}
