package detour

import "sync"

// Executable buffer allocator (component A). Allocates fixed-size
// executable trampoline slots, placed within a configurable reach of a
// seed address so that a 32-bit relative jump from the target can always
// reach the slot on 64-bit platforms.
//
// Grounded on the teacher's protectPages/reProtectPages page-rounding
// arithmetic (complexhook_amd64.go, complexhook_unix.go) and on MinHook's
// buffer.c block/slot bookkeeping (original_source/minhook/src/buffer.c),
// adapted to Go-side free-list bookkeeping instead of an intrusive list
// written into the mapped memory itself.

const (
	// trampolineSlotSize is the fixed size of a single trampoline slot,
	// per the Data Model: at least 64 bytes, constant at build time.
	trampolineSlotSize = 64
	// memoryBlockSize is the size of one executable mapping; MinHook
	// uses the OS page size (4 KiB) for the same reason: it is the unit
	// the OS protects and frees at.
	memoryBlockSize = 4096
	// slotsPerBlock is how many fixed-size slots fit in one block.
	slotsPerBlock = memoryBlockSize / trampolineSlotSize
	// maxReach64 bounds how far from the seed address a slot may be
	// placed on 64-bit platforms, so that a 32-bit relative jump from
	// the target always reaches it.
	maxReach64 = 512 * 1024 * 1024
)

type memoryBlock struct {
	next   *memoryBlock
	base   uintptr
	free   []uintptr // free slot addresses within this block
	used   int
}

type bufferAllocator struct {
	mu     sync.Mutex
	blocks *memoryBlock
}

var globalAllocator bufferAllocator

// allocate returns a slot within ±maxReach64 of origin on 64-bit
// targets, or any slot on 32-bit targets. It returns (0, false) on
// failure.
func (a *bufferAllocator) allocate(origin uintptr) (uintptr, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for b := a.blocks; b != nil; b = b.next {
		if len(b.free) == 0 {
			continue
		}
		if !blockInReach(b.base, origin) {
			continue
		}
		slot := b.free[len(b.free)-1]
		b.free = b.free[:len(b.free)-1]
		b.used++
		return slot, true
	}

	base, ok := allocateBlockNear(origin)
	if !ok {
		if isDebug {
			println("detour: no block found within reach of", origin)
		}
		return 0, false
	}
	if isDebug {
		println("detour: allocated block", base, "near origin", origin)
	}

	blk := &memoryBlock{base: base}
	for i := 0; i < slotsPerBlock; i++ {
		blk.free = append(blk.free, base+uintptr(i*trampolineSlotSize))
	}
	slot := blk.free[len(blk.free)-1]
	blk.free = blk.free[:len(blk.free)-1]
	blk.used = 1

	blk.next = a.blocks
	a.blocks = blk
	return slot, true
}

// free returns slot to its block's free list, releasing the block if it
// becomes empty and it is not the library's only block.
func (a *bufferAllocator) free(slot uintptr) Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	blockBase := slot &^ (memoryBlockSize - 1)

	var prev *memoryBlock
	for b := a.blocks; b != nil; prev, b = b, b.next {
		if b.base != blockBase {
			continue
		}
		b.free = append(b.free, slot)
		b.used--
		if b.used == 0 && (b.next != nil || prev != nil) {
			if prev == nil {
				a.blocks = b.next
			} else {
				prev.next = b.next
			}
			releaseBlock(b.base)
		}
		return StatusOK
	}
	return StatusUnknown
}

// blockInReach reports whether a block based at base is an acceptable
// placement for a slot to be reached from origin via a 32-bit relative
// jump. On 32-bit builds every placement is acceptable.
func blockInReach(base, origin uintptr) bool {
	if !is64Bit {
		return true
	}
	var diff uintptr
	if base >= origin {
		diff = base - origin
	} else {
		diff = origin - base
	}
	return diff+memoryBlockSize <= maxReach64
}

// isExecutable reports whether the page containing addr is currently
// mapped executable.
func isExecutable(addr uintptr) bool {
	prot, err := getProtection(addr)
	if err != nil {
		return false
	}
	return prot.Execute
}

// allocateBlockNear probes the virtual address space outward from
// origin, "above origin" first and then "below origin" (the tie-break
// required by the Executable buffer allocator algorithm), requesting a
// fresh executable/private/anonymous block at the first free candidate
// within range. On 32-bit platforms the block may be placed anywhere.
func allocateBlockNear(origin uintptr) (uintptr, bool) {
	gran := allocationGranularity()
	if gran == 0 {
		gran = memoryBlockSize
	}
	if !is64Bit {
		return tryReserveBlock(0)
	}

	start := origin &^ (gran - 1)
	for off := uintptr(0); off <= maxReach64; off += gran {
		hi := start + off
		if blockInReach(hi, origin) {
			if addr, ok := tryReserveBlock(hi); ok {
				return addr, true
			}
		}
		if off == 0 {
			continue
		}
		if start >= off {
			lo := start - off
			if blockInReach(lo, origin) {
				if addr, ok := tryReserveBlock(lo); ok {
					return addr, true
				}
			}
		}
	}
	return 0, false
}
