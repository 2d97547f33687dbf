package objsymbols

import (
	"debug/pe"
	"io"
)

type peFile struct {
	pe *pe.File
}

func openPE(r io.ReaderAt) (rawFile, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &peFile{f}, nil
}

func (f *peFile) Symbols() (map[string]uintptr, error) {
	if f.pe.Symbols == nil {
		return nil, nil
	}
	out := make(map[string]uintptr, len(f.pe.Symbols))
	for _, s := range f.pe.Symbols {
		out[s.Name] = uintptr(s.Value)
	}
	return out, nil
}
