package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockInReach(t *testing.T) {
	origin := uintptr(0x7f0000000000)

	if !is64Bit {
		t.Skip("reach is unrestricted on 32-bit")
	}

	assert.True(t, blockInReach(origin, origin))
	assert.True(t, blockInReach(origin+maxReach64-memoryBlockSize, origin))
	assert.False(t, blockInReach(origin+maxReach64, origin))
	assert.True(t, blockInReach(origin-maxReach64+memoryBlockSize, origin))
	assert.False(t, blockInReach(origin-maxReach64, origin))
}

// TestFreeListInvariant exercises §3's memory-block invariant
// (used_count + len(free_list) == slots_per_block) directly on the
// bookkeeping structure, without touching the OS allocator.
func TestFreeListInvariant(t *testing.T) {
	blk := &memoryBlock{base: 0x1000}
	for i := 0; i < slotsPerBlock; i++ {
		blk.free = append(blk.free, blk.base+uintptr(i*trampolineSlotSize))
	}

	taken := blk.free[len(blk.free)-1]
	blk.free = blk.free[:len(blk.free)-1]
	blk.used++

	require.Equal(t, slotsPerBlock, blk.used+len(blk.free))

	blk.free = append(blk.free, taken)
	blk.used--
	require.Equal(t, slotsPerBlock, blk.used+len(blk.free))
	require.Zero(t, blk.used)
}
