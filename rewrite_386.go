//go:build 386

package detour

import (
	"encoding/binary"

	"golang.org/x/arch/x86/x86asm"
)

// archBuildTrampoline is the x86 (32-bit) instruction rewriter. Unlike
// amd64, every address in a 32-bit process is reachable with a 32-bit
// relative displacement, so neither RIP-relative relocation nor a relay
// stub is needed: CALL and out-of-prologue JMP are re-encoded as E8/E9
// with a displacement recomputed against their new position. Jcc,
// LOOP* and JCXZ are copied verbatim when their destination is inside
// the prologue and refused otherwise.
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

		inst, err := x86asm.Decode(src[pos:], 32)
		if err != nil || inst.Len == 0 {
			return nil, unsupported("disassembly failed")
		}

		oldOffsets = append(oldOffsets, pos)
		newOffsets = append(newOffsets, len(code))

		instBytes := src[pos : pos+inst.Len]
		instEnd := target + uintptr(pos+inst.Len)
		terminal := false

		switch {
		case instBytes[0] == 0xE8: // direct relative CALL
			dest := instEnd + uintptr(inst.Args[0].(x86asm.Rel))
			code = append(code, emitRel32(0xE8, dest, slot+uintptr(len(code)))...)

		case instBytes[0] == 0xE9 || instBytes[0] == 0xEB:
			dest := instEnd + uintptr(inst.Args[0].(x86asm.Rel))
			destOff := int(dest - target)
			if isInsidePrologue(destOff, pos) {
				code = append(code, instBytes...)
				if destOff > pendingMax {
					pendingMax = destOff
				}
			} else {
				code = append(code, emitRel32(0xE9, dest, slot+uintptr(len(code)))...)
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

		case instBytes[0] == 0xC2 || instBytes[0] == 0xC3:
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

	if len(code)+5 > trampolineSlotSize {
		return nil, unsupported("trampoline would exceed slot size")
	}

	code = append(code, emitRel32(0xE9, target+uintptr(pos), slot+uintptr(len(code)))...)

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
		relayOffset: -1,
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
	return destOff >= 0 && destOff < maxPrologueInstrs*15 && destOff != curPos
}

// emitRel32 encodes opcode followed by a 32-bit displacement from the
// instruction's final position (from+5) to dest.
func emitRel32(opcode byte, dest, from uintptr) []byte {
	disp := int32(int64(dest) - int64(from+5))
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(disp))
	return append([]byte{opcode}, buf...)
}

