package detour

// Dispatch-table prober (component F). Extracts a polymorphic
// instance's dispatch-table pointer and length, and maps a member
// function pointer to the table slot it occupies, for both the Itanium
// and Microsoft C++ ABIs, per §4.F.
//
// Grounded on original_source/helpers.hpp's GetVirtualTable,
// GetVirtualAddress (the Itanium `(ptr-1)/word_size` arithmetic and the
// Microsoft-ABI thunk decode of `mov rax,[rcx]` / `FF /4`), translated
// from C++ template code into plain functions operating on raw
// addresses, per the Design Notes' "replace member-function-pointer
// casts with an opaque method handle" guidance.

import "encoding/binary"

// maxTableLength bounds the table_length probe, per §4.F's "arbitrary
// safety ceiling".
const maxTableLength = 4096

// MethodHandle is the opaque "member function pointer" the Design
// Notes call for: a raw code address plus, once resolved, the table
// slot it occupies.
type MethodHandle struct {
	Address   uintptr
	Adj       uintptr // Itanium's second member-pointer word; unused on MSVC
	slotIndex int
	hasSlot   bool
}

// tablePointer reads the first machine word of instance: the dispatch
// table pointer, per §4.F's table_pointer.
func tablePointer(instance uintptr) uintptr {
	buf := unsafeByteSliceAt(instance, wordSize)
	return readWord(buf)
}

// tableLength scans table until the first null or non-executable entry,
// per §4.F's table_length.
func tableLength(table uintptr) int {
	for i := 0; i < maxTableLength; i++ {
		entry := readWord(unsafeByteSliceAt(table+uintptr(i)*wordSize, wordSize))
		if entry == 0 || !isExecutable(entry) {
			return i
		}
	}
	return maxTableLength
}

func readWord(b []byte) uintptr {
	if wordSize == 8 {
		return uintptr(binary.LittleEndian.Uint64(b))
	}
	return uintptr(binary.LittleEndian.Uint32(b))
}

func writeWord(b []byte, v uintptr) {
	if wordSize == 8 {
		binary.LittleEndian.PutUint64(b, uint64(v))
		return
	}
	binary.LittleEndian.PutUint32(b, uint32(v))
}

// resolve maps a MethodHandle to a dispatch-table slot, per §4.F's
// resolution rules, dispatching on the platform's C++ ABI.
func resolve(table uintptr, length int, mh MethodHandle) (MethodHandle, bool) {
	if itaniumABI {
		return resolveItanium(table, length, mh)
	}
	return resolveMicrosoft(table, length, mh)
}

// resolveItanium implements §4.F's Itanium-ABI rule: ptr odd means
// virtual, slot_index = (ptr-1)/word_size.
func resolveItanium(table uintptr, length int, mh MethodHandle) (MethodHandle, bool) {
	if mh.Address%2 == 1 {
		idx := int((mh.Address - 1) / wordSize)
		if idx >= 0 && idx < length {
			mh.slotIndex, mh.hasSlot = idx, true
			return mh, true
		}
	}
	return scanTable(table, length, mh)
}

// resolveMicrosoft implements §4.F's Microsoft-ABI rule: follow one
// `E9` debug thunk, skip the `mov reg,[reg]` this-dereference, then
// decode an `FF /4` indirect jump's displacement into a slot index.
func resolveMicrosoft(table uintptr, length int, mh MethodHandle) (MethodHandle, bool) {
	addr := mh.Address
	code := unsafeByteSliceAt(addr, 16)

	if code[0] == 0xE9 {
		disp := int32(binary.LittleEndian.Uint32(code[1:5]))
		addr = addr + 5 + uintptr(disp)
		code = unsafeByteSliceAt(addr, 16)
	}

	pos := 0
	if is64Bit {
		if code[0] == 0x48 { // mov rax,[rcx]
			pos = 3
		}
	} else if code[0] == 0x8B { // mov reg,[reg]
		pos = 2
	}

	if pos+1 < len(code) && code[pos] == 0xFF && (code[pos+1]>>3)&7 == 4 {
		jumpType := code[pos+1] >> 6
		var offset uint32
		switch jumpType {
		case 1: // disp8
			offset = uint32(code[pos+2])
		case 2: // disp32
			offset = binary.LittleEndian.Uint32(code[pos+2 : pos+6])
		}
		idx := int(offset / uint32(wordSize))
		if idx >= 0 && idx < length {
			mh.slotIndex, mh.hasSlot = idx, true
			mh.Address = addr
			return mh, true
		}
	}

	mh.Address = addr
	return scanTable(table, length, mh)
}

// scanTable implements both ABIs' fallback: a linear scan for any slot
// whose value equals the method's direct code address.
func scanTable(table uintptr, length int, mh MethodHandle) (MethodHandle, bool) {
	for i := 0; i < length; i++ {
		entry := readWord(unsafeByteSliceAt(table+uintptr(i)*wordSize, wordSize))
		if entry == mh.Address {
			mh.slotIndex, mh.hasSlot = i, true
			return mh, true
		}
	}
	return mh, false
}
