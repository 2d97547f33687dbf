package detour

import "unsafe"

// unsafeByteSliceAt views length bytes of process memory starting at
// addr as a Go byte slice, the same trick the teacher's makeSlice
// helper performs (referenced from complexhook_unix.go) using the
// modern unsafe.Slice instead of a hand-rolled reflect.SliceHeader.
func unsafeByteSliceAt(addr, length uintptr) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length))
}
