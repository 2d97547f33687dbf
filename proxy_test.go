//go:build linux && amd64

package detour

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type targetObject struct{}
type substituteObject struct{}

// itaniumVirtualHandle builds the odd-encoded "pointer to virtual member
// function" a real caller would get from `&Base::Method` under the
// Itanium ABI: ptr = 1 + slotIndex*word_size. Resolution then depends
// only on the slot index, not on whatever address currently happens to
// sit in that slot, so it keeps working across Hook/Unhook.
func itaniumVirtualHandle(slotIndex int) MethodHandle {
	return MethodHandle{Address: uintptr(1 + slotIndex*int(wordSize))}
}

// mmapWords allocates a page of non-executable memory (safe from GC
// relocation, unlike a Go-heap slice referenced only by a uintptr) and
// lays out words as consecutive machine words, for use as a dispatch
// table or instance block.
func mmapWords(t *testing.T, words ...uintptr) uintptr {
	t.Helper()
	size := unix.Getpagesize()
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Munmap(data) })
	base := uintptr(unsafe.Pointer(&data[0]))
	for i, w := range words {
		writeWord(data[i*int(wordSize):], w)
	}
	return base
}

// buildDispatchTable lays out a null-terminated dispatch table (plus
// the instance's own vtable-pointer slot) backed by executable stub
// code, mirroring scenario S5's [A,B,C,D] target layout.
func buildDispatchTable(t *testing.T, n int) (instance uintptr, entries []uintptr) {
	t.Helper()
	entries = make([]uintptr, n)
	for i := range entries {
		entries[i] = mmapExec(t, []byte{0xB0, byte(i), 0xC3}) // mov al,i; ret
	}
	words := append(append([]uintptr{}, entries...), 0) // null terminator
	tableAddr := mmapWords(t, words...)
	instance = mmapWords(t, tableAddr)
	return instance, entries
}

// TestClassProxyHookAndRestore implements scenario S5: hook(B->B')
// replaces slot 1, is_hooked(B) is then true, call_original(B) still
// returns the original slot-1 address, and unhook(B) restores it.
func TestClassProxyHookAndRestore(t *testing.T) {
	targetInstance, slots := buildDispatchTable(t, 4)
	substituteFn := mmapExec(t, []byte{0xB0, 0x99, 0xC3}) // mov al,0x99; ret
	substituteTableAddr := mmapWords(t, substituteFn, 0)
	substituteInstance := mmapWords(t, substituteTableAddr)

	var proxy ClassProxy[targetObject, substituteObject]
	require.Equal(t, StatusOK, proxy.Initialize(targetInstance, substituteInstance))

	b := itaniumVirtualHandle(1)
	bPrime := itaniumVirtualHandle(0)

	require.False(t, proxy.IsHooked(b))
	require.Equal(t, slots[1], proxy.CallOriginal(b))

	require.Equal(t, StatusOK, proxy.Hook(b, bPrime))
	require.True(t, proxy.IsHooked(b))
	require.Equal(t, slots[1], proxy.CallOriginal(b))

	require.Equal(t, StatusAlreadyEnabled, proxy.Hook(b, bPrime))

	require.Equal(t, StatusOK, proxy.Unhook(b))
	require.False(t, proxy.IsHooked(b))
	require.Equal(t, StatusAlreadyDisabled, proxy.Unhook(b))
}

// TestClassProxyInitializeRejectsGarbage implements the negative half
// of S5: a target whose first slot is not executable memory fails
// Initialize rather than silently adopting a bogus table.
func TestClassProxyInitializeRejectsGarbage(t *testing.T) {
	tableAddr := mmapWords(t, 0x41414141, 0)
	instance := mmapWords(t, tableAddr)

	var proxy ClassProxy[targetObject, substituteObject]
	require.Equal(t, StatusNotExecutable, proxy.Initialize(instance, instance))
}

// TestClassProxyClose implements the teardown half of S5: Close
// restores every slot a Hook call touched.
func TestClassProxyClose(t *testing.T) {
	targetInstance, slots := buildDispatchTable(t, 4)
	substituteFn := mmapExec(t, []byte{0xB0, 0x99, 0xC3})
	substituteTableAddr := mmapWords(t, substituteFn, 0)
	substituteInstance := mmapWords(t, substituteTableAddr)

	var proxy ClassProxy[targetObject, substituteObject]
	require.Equal(t, StatusOK, proxy.Initialize(targetInstance, substituteInstance))

	b := itaniumVirtualHandle(1)
	bPrime := itaniumVirtualHandle(0)
	require.Equal(t, StatusOK, proxy.Hook(b, bPrime))
	require.True(t, proxy.IsHooked(b))

	require.Equal(t, StatusOK, proxy.Close())
	require.False(t, proxy.IsHooked(b))
	require.Equal(t, slots[1], proxy.targetSlot(1))
}
