//go:build linux && amd64

package detour

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestResolveItaniumVirtual(t *testing.T) {
	a := mmapExec(t, []byte{0xC3})
	b := mmapExec(t, []byte{0xC3})
	table := []uintptr{a, b, 0}
	tableAddr := uintptr(unsafe.Pointer(&table[0]))

	length := tableLength(tableAddr)
	require.Equal(t, 2, length)

	// Itanium-encoded pointer to slot 1: (1*wordSize)+1.
	mh := MethodHandle{Address: uintptr(1*8 + 1)}
	resolved, ok := resolve(tableAddr, length, mh)
	require.True(t, ok)
	require.Equal(t, 1, resolved.slotIndex)
}

func TestResolveFallsBackToScan(t *testing.T) {
	a := mmapExec(t, []byte{0xC3})
	b := mmapExec(t, []byte{0xC3})
	table := []uintptr{a, b, 0}
	tableAddr := uintptr(unsafe.Pointer(&table[0]))
	length := tableLength(tableAddr)

	// A non-virtual direct address equal to a table entry must still
	// resolve via the linear-scan fallback.
	mh := MethodHandle{Address: b}
	resolved, ok := resolve(tableAddr, length, mh)
	require.True(t, ok)
	require.Equal(t, 1, resolved.slotIndex)
}

func TestResolveNonVirtualMiss(t *testing.T) {
	a := mmapExec(t, []byte{0xC3})
	table := []uintptr{a, 0}
	tableAddr := uintptr(unsafe.Pointer(&table[0]))
	length := tableLength(tableAddr)

	direct := mmapExec(t, []byte{0x90, 0xC3})
	_, ok := resolve(tableAddr, length, MethodHandle{Address: direct})
	require.False(t, ok)
}
