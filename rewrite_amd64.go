//go:build amd64

package detour

import (
	"encoding/binary"

	"golang.org/x/arch/x86/x86asm"
)

const assumedMaxPrologue = maxPrologueInstrs * 15

// archBuildTrampoline is the x86-64 instruction rewriter. It decodes the
// target's prologue with x86asm and relocates it into the slot at
// trampoline, following §4.B's per-instruction classification table.
//
// Grounded on the teacher's use of x86asm.Decode (complexhook_amd64.go's
// analysis/ensureLength) generalized from "relocatable or not" into the
// full per-opcode rewrite table described by the spec, and on
// brahma-adshonor-gohook's FixOneInstruction opcode family checks
// (other_examples/brahma-adshonor-gohook__arch_util.go).
func archBuildTrampoline(target, detour, slot uintptr) (*trampoline, error) {
	src := unsafeByteSliceAt(target, 256)

	var (
		code       []byte
		oldOffsets []int
		newOffsets []int
		pos        int
		pendingMax = -1
	)

	for {
		if len(oldOffsets) >= maxPrologueInstrs {
			return nil, unsupported("prologue longer than 8 instructions")
		}

		inst, err := x86asm.Decode(src[pos:], 64)
		if err != nil || inst.Len == 0 {
			return nil, unsupported("disassembly failed")
		}

		oldOffsets = append(oldOffsets, pos)
		newOffsets = append(newOffsets, len(code))

		instBytes := src[pos : pos+inst.Len]
		instEnd := target + uintptr(pos+inst.Len)

		terminal := false

		switch {
		case isRIPRelative(inst):
			adjusted, err := relocateRIPRelative(instBytes, inst, instEnd, slot, uintptr(len(code)))
			if err != nil {
				return nil, err
			}
			code = append(code, adjusted...)

		case instBytes[0] == 0xE8: // direct relative CALL
			dest := instEnd + uintptr(inst.Args[0].(x86asm.Rel))
			code = append(code, emitAbsoluteCall(dest)...)

		case instBytes[0] == 0xE9 || instBytes[0] == 0xEB: // direct relative JMP
			dest := instEnd + uintptr(inst.Args[0].(x86asm.Rel))
			destOff := int(dest - target)
			if isInsidePrologue(destOff, pos) {
				code = append(code, instBytes...)
				if destOff > pendingMax {
					pendingMax = destOff
				}
			} else {
				code = append(code, emitAbsoluteJump(dest)...)
				terminal = pendingMax <= pos+inst.Len
			}

		case isLongConditionalJump(instBytes[0], safeByte(instBytes, 1)) || isConditionalJumpByte(instBytes[0]) || isLoopOrJcxz(instBytes[0]):
			dest := instEnd + uintptr(inst.Args[0].(x86asm.Rel))
			destOff := int(dest - target)
			if !isInsidePrologue(destOff, pos) {
				return nil, unsupported("conditional branch outside prologue")
			}
			code = append(code, instBytes...)
			if destOff > pendingMax {
				pendingMax = destOff
			}

		case instBytes[0] == 0xC2 || instBytes[0] == 0xC3: // RET
			code = append(code, instBytes...)
			terminal = true

		default:
			code = append(code, instBytes...)
		}

		pos += inst.Len

		if pendingMax > pos {
			continue
		}
		if terminal || pos >= shortJumpLen {
			break
		}
	}

	if len(code)+14 > trampolineSlotSize {
		return nil, unsupported("trampoline would exceed slot size")
	}

	code = append(code, emitAbsoluteJump(target+uintptr(pos))...)

	relayOffset := len(code)
	if relayOffset+14 > trampolineSlotSize {
		return nil, unsupported("trampoline would exceed slot size")
	}
	code = append(code, emitAbsoluteJump(detour)...)

	patchAbove := false
	if pos < shortJumpLen {
		if _, ok := findPatchAbove(target); !ok {
			return nil, unsupported("prologue shorter than 5 bytes and no usable padding")
		}
		patchAbove = true
	}

	return &trampoline{
		code:        code,
		consumed:    pos,
		oldOffsets:  oldOffsets,
		newOffsets:  newOffsets,
		relayOffset: relayOffset,
		patchAbove:  patchAbove,
	}, nil
}

func safeByte(b []byte, i int) byte {
	if i < len(b) {
		return b[i]
	}
	return 0
}

func isInsidePrologue(destOff, curPos int) bool {
	return destOff >= 0 && destOff < assumedMaxPrologue && destOff != curPos
}

func isRIPRelative(inst x86asm.Inst) bool {
	for _, a := range inst.Args {
		if a == nil {
			continue
		}
		if mem, ok := a.(x86asm.Mem); ok && mem.Base == x86asm.RIP {
			return true
		}
	}
	return false
}

// relocateRIPRelative copies a RIP-relative instruction byte-for-byte,
// adjusting its trailing 32-bit displacement so the effective address
// stays the same, per §4.B.
func relocateRIPRelative(instBytes []byte, inst x86asm.Inst, instEnd, slot uintptr, newPos uintptr) ([]byte, error) {
	out := make([]byte, len(instBytes))
	copy(out, instBytes)

	var mem x86asm.Mem
	found := false
	for _, a := range inst.Args {
		if m, ok := a.(x86asm.Mem); ok && m.Base == x86asm.RIP {
			mem = m
			found = true
			break
		}
	}
	if !found {
		return nil, unsupported("expected RIP-relative operand")
	}
	for _, a := range inst.Args {
		if _, ok := a.(x86asm.Imm); ok {
			return nil, unsupported("RIP-relative instruction with an immediate")
		}
	}

	// The absolute target the original instruction referenced.
	absTarget := instEnd + uintptr(mem.Disp)

	newInstEnd := slot + newPos + uintptr(len(instBytes))
	newDisp := int64(absTarget) - int64(newInstEnd)
	if newDisp > 0x7FFFFFFF || newDisp < -0x80000000 {
		return nil, unsupported("RIP-relative displacement does not fit after relocation")
	}

	dispOffset := findDisp32Offset(instBytes)
	if dispOffset < 0 {
		return nil, unsupported("could not locate displacement bytes")
	}
	binary.LittleEndian.PutUint32(out[dispOffset:], uint32(int32(newDisp)))
	return out, nil
}

// findDisp32Offset locates the 4-byte displacement field within an
// instruction's encoding for the common ModR/M + disp32 forms; the
// displacement is always the last 4 bytes preceding any immediate. For
// the instruction shapes this rewriter accepts (ModR/M & 0xC7 == 0x05,
// no additional immediate beyond the displacement, which is the common
// case for MOV/LEA/CMP-with-RIP forms) it is the final four bytes.
func findDisp32Offset(instBytes []byte) int {
	if len(instBytes) < 4 {
		return -1
	}
	return len(instBytes) - 4
}

func emitAbsoluteJump(dest uintptr) []byte {
	out := []byte{0xFF, 0x25, 0x00, 0x00, 0x00, 0x00}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(dest))
	return append(out, buf...)
}

func emitAbsoluteCall(dest uintptr) []byte {
	out := []byte{0xFF, 0x15, 0x00, 0x00, 0x00, 0x00}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(dest))
	return append(out, buf...)
}

