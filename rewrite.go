package detour

import (
	"encoding/binary"
)

// Instruction rewriter (component B). Disassembles the prologue of a
// target function, relocates the displaced instructions into the
// trampoline buffer, and appends a jump back to the untouched remainder
// of the target.
//
// Grounded on the teacher's analysis/ensureLength loop in
// complexhook_amd64.go (x86asm.Decode-driven instruction walking) and on
// brahma-adshonor-gohook's FixOneInstruction/FixTargetFuncCode
// (other_examples/brahma-adshonor-gohook__arch_util.go), which classifies
// each opcode family (conditional jump, near jump, near call, ret) the
// same way §4.B does, including the internal-vs-external branch
// distinction.

const (
	// shortJumpLen is the length of a 32-bit-relative JMP/CALL (E8/E9
	// opcode + 4-byte displacement): the smallest prologue hole that
	// always fits a 5-byte relative patch.
	shortJumpLen = 5
	// maxPrologueInstrs bounds the number of instructions relocatable
	// into one trampoline, per the Data Model.
	maxPrologueInstrs = 8
	// maxBackupLen is the largest prologue backup kept per hook entry:
	// the long-jump form used on x86-64.
	maxBackupLen = 13
)

// trampoline is the result of successfully rewriting a target's
// prologue, ready to be written into an allocated slot.
type trampoline struct {
	code        []byte // bytes to place at the slot: relocated prologue + tail jump [+ relay]
	consumed    int    // bytes consumed from the target's original prologue
	oldOffsets  []int  // per-instruction offset within the original prologue
	newOffsets  []int  // per-instruction offset within code
	relayOffset int    // offset of the amd64 relay stub within code, or -1
	patchAbove  bool   // whether the caller must use the patch-above technique
}

// rewriteError marks a prologue the rewriter declines to relocate.
type rewriteError struct{ reason string }

func (e *rewriteError) Error() string { return "detour: unsupported function: " + e.reason }

func unsupported(reason string) error { return &rewriteError{reason} }

// decodeMode is the x86asm decode width for the running process.
func decodeMode() int {
	if is64Bit {
		return 64
	}
	return 32
}

// isConditionalJumpByte reports whether b is a short-form Jcc opcode
// (0x70..0x7F). LOOP*/JCXZ (0xE0..0xE3) are matched by isLoopOrJcxz and
// the two-byte long Jcc form (0x0F 0x80..0x8F) by isLongConditionalJump,
// per §4.B's classification table.
func isConditionalJumpByte(b byte) bool {
	return b >= 0x70 && b <= 0x7F
}

func isLoopOrJcxz(b byte) bool {
	return b >= 0xE0 && b <= 0xE3
}

func isLongConditionalJump(b0, b1 byte) bool {
	return b0 == 0x0F && b1 >= 0x80 && b1 <= 0x8F
}

// buildTrampoline implements §4.B's build_trampoline contract for the
// running architecture. slot is the executable buffer already allocated
// by component A, within reach of target.
func buildTrampoline(target, detour, slot uintptr) (*trampoline, error) {
	tr, err := archBuildTrampoline(target, detour, slot)
	if isDebug {
		if err != nil {
			println("detour: buildTrampoline failed for target", target, ":", err.Error())
		} else {
			println("detour: buildTrampoline consumed", tr.consumed, "bytes of prologue at", target)
		}
	}
	return tr, err
}

// buildOnTargetJump builds the bytes written at the target (or, for
// patch-above, the short jump at the target plus the long jump in the
// padding preceding it), per the Binary layout invariants. dest is the
// relay address on amd64 (the on-target patch always fits a plain E9
// because the relay lives inside the same ±512MiB trampoline block) or
// the detour address directly on x86.
func buildOnTargetJump(target, dest uintptr, patchAbove bool, padding uintptr) (atTarget []byte, atPadding []byte) {
	if !patchAbove {
		return emitRel32Jump(dest, target), nil
	}
	return []byte{0xEB, 0xFB}, emitRel32Jump(dest, padding)
}

// emitRel32Jump encodes `E9 disp32` jumping from the instruction at
// `from` to `dest`.
func emitRel32Jump(dest, from uintptr) []byte {
	disp := int32(int64(dest) - int64(from+shortJumpLen))
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(disp))
	return append([]byte{0xE9}, buf...)
}

// findPatchAbove inspects the bytes immediately preceding target: if
// they are executable padding (00/90/CC only) and there is room for a
// full 5-byte jump, patch-above may be used. It returns the address at
// which the full jump must be written and true on success.
func findPatchAbove(target uintptr) (uintptr, bool) {
	const need = shortJumpLen
	// The padding region must itself be executable (the spec requires
	// the preceding bytes be "executable"), and must hold `need` bytes
	// of 00/90/CC.
	candidate := target - uintptr(need)
	if !isExecutable(candidate) {
		return 0, false
	}
	buf := unsafeByteSliceAt(candidate, need)
	for _, b := range buf {
		if b != 0x00 && b != 0x90 && b != 0xCC {
			return 0, false
		}
	}
	return candidate, true
}
