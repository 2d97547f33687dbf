package detour

import "sync"

// Dispatch-table proxy (component G). Per (target-type, substitute-type)
// pair, installs and removes dispatch-table slot replacements using
// components E and F, falling back to an inline hook (component C) for
// non-virtual methods.
//
// Grounded on original_source/classproxy.hpp's Detouring::ClassProxy:
// Initialize/HookFunction/HookMember/UnHookMember/CallMember and the
// destructor's per-slot restore loop, translated from a C++ class
// template parameterised by <Target, Substitute> into a Go generic type
// per the Design Notes' "keyed registry indexed by the two type
// identities" guidance — Go's type parameters on ClassProxy play that
// role directly, one instantiation per (Target, Substitute) pair.
type ClassProxy[Target, Substitute any] struct {
	mu sync.Mutex

	targetTable     uintptr
	targetLen       int
	originalSlots   []uintptr
	substituteTable uintptr
	substituteLen   int

	// inlineHooks tracks non-virtual methods this proxy fell back to an
	// inline hook for, keyed by the target method's direct code address.
	inlineHooks map[uintptr]uintptr
}

// Initialize records both instances' dispatch tables and snapshots the
// target's, per §4.G. It fails if the target's first slot is not
// executable, mirroring classproxy.hpp::Initialize's IsExecutableAddress
// check (the SUPPLEMENTED FEATURES' "IsExecutableAddress probe").
func (p *ClassProxy[Target, Substitute]) Initialize(targetInstance, substituteInstance uintptr) Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.targetTable != 0 {
		return StatusAlreadyInitialized
	}

	table := tablePointer(targetInstance)
	if table == 0 {
		return StatusNotExecutable
	}
	first := readWord(unsafeByteSliceAt(table, wordSize))
	if first == 0 || !isExecutable(first) {
		return StatusNotExecutable
	}

	length := tableLength(table)
	snapshot := make([]uintptr, length)
	for i := 0; i < length; i++ {
		snapshot[i] = readWord(unsafeByteSliceAt(table+uintptr(i)*wordSize, wordSize))
	}

	p.targetTable = table
	p.targetLen = length
	p.originalSlots = snapshot

	p.substituteTable = tablePointer(substituteInstance)
	p.substituteLen = tableLength(p.substituteTable)
	p.inlineHooks = make(map[uintptr]uintptr)
	return StatusOK
}

// Hook installs substituteMethod in place of targetMethod, per §4.G.
// Non-virtual target methods fall back to an inline hook via Create.
func (p *ClassProxy[Target, Substitute]) Hook(targetMethod, substituteMethod MethodHandle) Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.targetTable == 0 {
		return StatusNotInitialized
	}

	resolvedTarget, okTarget := resolve(p.targetTable, p.targetLen, targetMethod)
	if okTarget {
		if p.targetSlot(resolvedTarget.slotIndex) != p.originalSlots[resolvedTarget.slotIndex] {
			return StatusAlreadyEnabled
		}

		resolvedSub, okSub := resolve(p.substituteTable, p.substituteLen, substituteMethod)
		var subAddr uintptr
		if okSub {
			subAddr = p.substituteSlot(resolvedSub.slotIndex)
		} else {
			subAddr = substituteMethod.Address
		}
		if subAddr == 0 {
			return StatusUnsupportedFunction
		}

		slotAddr := p.targetTable + uintptr(resolvedTarget.slotIndex)*wordSize
		if err := protectMemory(slotAddr, wordSize, false); err != nil {
			return StatusMemoryProtectionFailed
		}
		writeWord(unsafeByteSliceAt(slotAddr, wordSize), subAddr)
		if err := protectMemory(slotAddr, wordSize, true); err != nil {
			return StatusMemoryProtectionFailed
		}
		return StatusOK
	}

	if _, already := p.inlineHooks[targetMethod.Address]; already {
		return StatusAlreadyEnabled
	}
	if st := Create(targetMethod.Address, substituteMethod.Address); !st.Ok() {
		return st
	}
	if st := Enable(targetMethod.Address); !st.Ok() {
		Remove(targetMethod.Address)
		return st
	}
	p.inlineHooks[targetMethod.Address] = targetMethod.Address
	return StatusOK
}

// Unhook restores targetMethod's dispatch-table slot from the snapshot,
// or removes the owned inline hook for a non-virtual method.
func (p *ClassProxy[Target, Substitute]) Unhook(targetMethod MethodHandle) Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.targetTable == 0 {
		return StatusNotInitialized
	}

	resolved, ok := resolve(p.targetTable, p.targetLen, targetMethod)
	if ok {
		original := p.originalSlots[resolved.slotIndex]
		if p.targetSlot(resolved.slotIndex) == original {
			return StatusAlreadyDisabled
		}
		slotAddr := p.targetTable + uintptr(resolved.slotIndex)*wordSize
		if err := protectMemory(slotAddr, wordSize, false); err != nil {
			return StatusMemoryProtectionFailed
		}
		writeWord(unsafeByteSliceAt(slotAddr, wordSize), original)
		if err := protectMemory(slotAddr, wordSize, true); err != nil {
			return StatusMemoryProtectionFailed
		}
		return StatusOK
	}

	if _, already := p.inlineHooks[targetMethod.Address]; already {
		delete(p.inlineHooks, targetMethod.Address)
		return Remove(targetMethod.Address)
	}
	return StatusNotCreated
}

// IsHooked reports whether targetMethod's slot currently differs from
// the snapshot, or an inline hook exists for it.
func (p *ClassProxy[Target, Substitute]) IsHooked(targetMethod MethodHandle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.targetTable == 0 {
		return false
	}
	if resolved, ok := resolve(p.targetTable, p.targetLen, targetMethod); ok {
		return p.targetSlot(resolved.slotIndex) != p.originalSlots[resolved.slotIndex]
	}
	_, hooked := p.inlineHooks[targetMethod.Address]
	return hooked
}

// CallOriginal returns the address to invoke for the untouched original
// implementation of targetMethod: the snapshot entry for a virtual
// slot, the trampoline for an inline-hooked non-virtual method, or the
// method's own address if it was never hooked.
func (p *ClassProxy[Target, Substitute]) CallOriginal(targetMethod MethodHandle) uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.targetTable != 0 {
		if resolved, ok := resolve(p.targetTable, p.targetLen, targetMethod); ok {
			return p.originalSlots[resolved.slotIndex]
		}
	}
	if e, ok := globalRegistry.entries[targetMethod.Address]; ok {
		return e.trampoline
	}
	return targetMethod.Address
}

// Close restores every slot still differing from the snapshot and
// removes every owned inline hook, per classproxy.hpp's destructor —
// restoring individually rather than bulk-copying the snapshot, so
// slots that still equal the snapshot are not written. A differing slot
// is restored whichever proxy changed it.
func (p *ClassProxy[Target, Substitute]) Close() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.targetTable == 0 {
		return StatusNotInitialized
	}

	for i, original := range p.originalSlots {
		if p.targetSlot(i) == original {
			continue
		}
		slotAddr := p.targetTable + uintptr(i)*wordSize
		if err := protectMemory(slotAddr, wordSize, false); err != nil {
			return StatusMemoryProtectionFailed
		}
		writeWord(unsafeByteSliceAt(slotAddr, wordSize), original)
		protectMemory(slotAddr, wordSize, true)
	}

	for addr := range p.inlineHooks {
		Remove(addr)
	}
	p.inlineHooks = make(map[uintptr]uintptr)
	return StatusOK
}

func (p *ClassProxy[Target, Substitute]) targetSlot(index int) uintptr {
	return readWord(unsafeByteSliceAt(p.targetTable+uintptr(index)*wordSize, wordSize))
}

func (p *ClassProxy[Target, Substitute]) substituteSlot(index int) uintptr {
	return readWord(unsafeByteSliceAt(p.substituteTable+uintptr(index)*wordSize, wordSize))
}
