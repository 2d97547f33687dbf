//go:build linux && amd64

package detour

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// funcval mirrors the runtime's representation of a no-capture Go
// closure: a single word holding the code pointer. Converting a
// *funcval to the matching func type lets a test invoke raw machine
// code directly, the same trick the teacher's complexhook.go used
// (its own funcval/slicePtr helpers) to make a hooked Go function's
// saved prologue callable again.
type funcval struct{ fn uintptr }

func callInt32(addr uintptr) int32 {
	fv := funcval{fn: addr}
	f := *(*func() int32)(unsafe.Pointer(&fv))
	return f()
}

func mmapExec(t *testing.T, code []byte) uintptr {
	t.Helper()
	size := unix.Getpagesize()
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
	require.NoError(t, err)
	copy(data, code)
	for i := len(code); i < len(data); i++ {
		data[i] = 0xCC
	}
	t.Cleanup(func() { unix.Munmap(data) })
	return uintptr(unsafe.Pointer(&data[0]))
}

// TestInlineHookEndToEnd implements scenario S1: a direct hook succeeds,
// calls reach the detour while it is enabled, and disabling restores
// the original behaviour.
func TestInlineHookEndToEnd(t *testing.T) {
	target := mmapExec(t, []byte{0xB8, 0x2A, 0x00, 0x00, 0x00, 0xC3}) // mov eax,42; ret
	detour := mmapExec(t, []byte{0xB8, 0x2B, 0x00, 0x00, 0x00, 0xC3}) // mov eax,43; ret

	require.Equal(t, int32(42), callInt32(target))

	require.Equal(t, StatusOK, Create(target, detour))
	defer Remove(target)

	require.Equal(t, StatusOK, Enable(target))
	require.Equal(t, int32(43), callInt32(target))

	require.Equal(t, StatusOK, Disable(target))
	require.Equal(t, int32(42), callInt32(target))

	require.Equal(t, StatusAlreadyDisabled, Disable(target))
}

// TestPatchAboveEndToEnd implements scenario S2: a prologue shorter than
// 5 bytes, preceded by executable 0x90 padding, must use patch-above.
func TestPatchAboveEndToEnd(t *testing.T) {
	size := unix.Getpagesize()
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Munmap(data) })
	for i := range data {
		data[i] = 0x90
	}
	const targetOff = 64
	copy(data[targetOff:], []byte{0xC2, 0x04, 0x00}) // ret 4

	target := uintptr(unsafe.Pointer(&data[0])) + uintptr(targetOff)
	detour := mmapExec(t, []byte{0xB8, 0x2B, 0x00, 0x00, 0x00, 0xC3})

	require.Equal(t, StatusOK, Create(target, detour))
	defer Remove(target)

	entry := globalRegistry.entries[target]
	require.True(t, entry.patchAbove)

	require.Equal(t, StatusOK, Enable(target))
	require.Equal(t, byte(0xEB), data[targetOff])
	require.Equal(t, byte(0xFB), data[targetOff+1])
	require.Equal(t, byte(0xE9), data[targetOff-shortJumpLen])

	require.Equal(t, StatusOK, Disable(target))
	require.Equal(t, byte(0xC2), data[targetOff])
	require.Equal(t, byte(0x04), data[targetOff+1])
	require.Equal(t, byte(0x00), data[targetOff+2])
}

// TestRIPRelativeRelocationEndToEnd implements scenario S3: a 64-bit
// target whose prologue begins with a RIP-relative MOV must have its
// trampoline copy carry the same opcode bytes with the 32-bit
// displacement adjusted so the effective address is unchanged.
func TestRIPRelativeRelocationEndToEnd(t *testing.T) {
	// mov rax, [rip+0x12345678]; ret
	target := mmapExec(t, []byte{0x48, 0x8B, 0x05, 0x78, 0x56, 0x34, 0x12, 0xC3})
	detour := mmapExec(t, []byte{0xB8, 0x2B, 0x00, 0x00, 0x00, 0xC3})

	require.Equal(t, StatusOK, Create(target, detour))
	defer Remove(target)

	entry := globalRegistry.entries[target]
	require.False(t, entry.patchAbove)
	require.GreaterOrEqual(t, entry.backupLen, 7)

	relocated := unsafeByteSliceAt(entry.trampoline, 7)
	require.Equal(t, []byte{0x48, 0x8B, 0x05}, relocated[:3])

	newDisp := int32(binary.LittleEndian.Uint32(relocated[3:7]))
	wantAbs := target + 7 + 0x12345678
	gotAbs := entry.trampoline + 7 + uintptr(newDisp)
	require.Equal(t, wantAbs, gotAbs)
}

// TestUnsupportedOutOfPrologueBranchEndToEnd implements scenario S4: a
// target whose prologue starts with a branch (LOOP, here) whose
// destination falls outside the relocated prologue must be refused.
func TestUnsupportedOutOfPrologueBranchEndToEnd(t *testing.T) {
	target := mmapExec(t, []byte{0xE2, 0xFC}) // loop -4 (backward, outside prologue)
	detour := mmapExec(t, []byte{0xB8, 0x2B, 0x00, 0x00, 0x00, 0xC3})

	require.Equal(t, StatusUnsupportedFunction, Create(target, detour))
	require.Nil(t, globalRegistry.entries[target])
}
