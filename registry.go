package detour

// Public hook-registry surface (component C, §4.C and §6's caller-visible
// surface). Every operation serializes through globalRegistry.lock.
//
// Grounded on the teacher's exported Apply/ApplyWrap-style entry points
// (hook.go/complexhook.go) generalized from the teacher's single
// "apply one hook" shape into the full create/enable/disable/remove/
// queue/apply_queued/enable_all/disable_all state machine §4.C specifies.

// Create builds a trampoline for target and records a new, disabled
// hook entry. It does not patch target yet.
func Create(target, detour uintptr) Status {
	ensureInitialized()
	globalRegistry.lock.Lock()
	defer globalRegistry.lock.Unlock()

	if _, exists := globalRegistry.entries[target]; exists {
		return StatusAlreadyCreated
	}
	if !isExecutable(target) || !isExecutable(detour) {
		return StatusNotExecutable
	}

	slot, ok := globalAllocator.allocate(target)
	if !ok {
		return StatusMemoryAllocationFailed
	}

	tr, err := buildTrampoline(target, detour, slot)
	if err != nil {
		globalAllocator.free(slot)
		return StatusUnsupportedFunction
	}
	if len(tr.code) > trampolineSlotSize {
		globalAllocator.free(slot)
		return StatusUnsupportedFunction
	}

	if err := protectMemory(slot, trampolineSlotSize, false); err != nil {
		globalAllocator.free(slot)
		return StatusMemoryProtectionFailed
	}
	copy(unsafeByteSliceAt(slot, trampolineSlotSize), tr.code)
	if err := protectMemory(slot, trampolineSlotSize, true); err != nil {
		globalAllocator.free(slot)
		return StatusMemoryProtectionFailed
	}

	e := &hookEntry{
		target:     target,
		detour:     detour,
		trampoline: slot,
		backupLen:  tr.consumed,
		patchAbove: tr.patchAbove,
		oldOffsets: tr.oldOffsets,
		newOffsets: tr.newOffsets,
	}
	if tr.relayOffset >= 0 {
		e.relay = slot + uintptr(tr.relayOffset)
	}
	copy(e.backup[:], unsafeByteSliceAt(target, uintptr(tr.consumed)))
	if e.patchAbove {
		if pad, ok := findPatchAbove(target); ok {
			e.padding = pad
			copy(e.paddingBackup[:], unsafeByteSliceAt(pad, shortJumpLen))
		}
	}

	globalRegistry.entries[target] = e
	globalRegistry.order = append(globalRegistry.order, target)
	return StatusOK
}

// Remove disables the hook if enabled, frees its trampoline slot, and
// deletes the entry.
func Remove(target uintptr) Status {
	ensureInitialized()
	globalRegistry.lock.Lock()
	defer globalRegistry.lock.Unlock()

	e, ok := globalRegistry.entries[target]
	if !ok {
		return StatusNotCreated
	}
	if e.enabled {
		if st := disableLocked(e); !st.Ok() {
			return st
		}
	}
	globalAllocator.free(e.trampoline)
	delete(globalRegistry.entries, target)
	for i, t := range globalRegistry.order {
		if t == target {
			globalRegistry.order = append(globalRegistry.order[:i], globalRegistry.order[i+1:]...)
			break
		}
	}
	return StatusOK
}

// Enable applies target's prologue patch, freezing other threads for
// the duration. target may be ALL_HOOKS, per §6, in which case this is
// equivalent to EnableAll.
func Enable(target uintptr) Status {
	if target == ALL_HOOKS {
		return EnableAll()
	}
	ensureInitialized()
	globalRegistry.lock.Lock()
	defer globalRegistry.lock.Unlock()

	e, ok := globalRegistry.entries[target]
	if !ok {
		return StatusNotCreated
	}
	return enableLocked(e)
}

// Disable reverts target's prologue patch, freezing other threads for
// the duration. target may be ALL_HOOKS, per §6, in which case this is
// equivalent to DisableAll.
func Disable(target uintptr) Status {
	if target == ALL_HOOKS {
		return DisableAll()
	}
	ensureInitialized()
	globalRegistry.lock.Lock()
	defer globalRegistry.lock.Unlock()

	e, ok := globalRegistry.entries[target]
	if !ok {
		return StatusNotCreated
	}
	return disableLocked(e)
}

// QueueEnable records an intent to enable target without altering it
// yet; the change takes effect at the next ApplyQueued. target may be
// ALL_HOOKS, per §6, queuing every currently-created entry.
func QueueEnable(target uintptr) Status {
	return queue(target, true)
}

// QueueDisable records an intent to disable target without altering it
// yet; the change takes effect at the next ApplyQueued. target may be
// ALL_HOOKS, per §6, queuing every currently-created entry.
func QueueDisable(target uintptr) Status {
	return queue(target, false)
}

func queue(target uintptr, enable bool) Status {
	ensureInitialized()
	globalRegistry.lock.Lock()
	defer globalRegistry.lock.Unlock()

	if target == ALL_HOOKS {
		for _, t := range globalRegistry.order {
			e := globalRegistry.entries[t]
			e.hasQueued = true
			e.queuedEnable = enable
		}
		return StatusOK
	}

	e, ok := globalRegistry.entries[target]
	if !ok {
		return StatusNotCreated
	}
	e.hasQueued = true
	e.queuedEnable = enable
	return StatusOK
}

// ApplyQueued freezes once, applies every deferred enable/disable
// atomically, and unfreezes.
func ApplyQueued() Status {
	ensureInitialized()
	globalRegistry.lock.Lock()
	defer globalRegistry.lock.Unlock()

	var pending []*hookEntry
	for _, target := range globalRegistry.order {
		e := globalRegistry.entries[target]
		if e.hasQueued && e.queuedEnable != e.enabled {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		for _, target := range globalRegistry.order {
			globalRegistry.entries[target].hasQueued = false
		}
		return StatusOK
	}

	st := bulkPatch(pending)
	for _, target := range globalRegistry.order {
		globalRegistry.entries[target].hasQueued = false
	}
	return st
}

// EnableAll enables every currently-created, disabled hook atomically.
func EnableAll() Status {
	return bulkAll(true)
}

// DisableAll disables every currently-created, enabled hook atomically.
func DisableAll() Status {
	return bulkAll(false)
}

func bulkAll(enable bool) Status {
	ensureInitialized()
	globalRegistry.lock.Lock()
	defer globalRegistry.lock.Unlock()

	var pending []*hookEntry
	for _, target := range globalRegistry.order {
		e := globalRegistry.entries[target]
		if e.enabled != enable {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return StatusOK
	}
	return bulkPatch(pending)
}

// enableLocked and disableLocked implement a single entry's transition,
// assuming globalRegistry.lock is already held.
func enableLocked(e *hookEntry) Status {
	if e.enabled {
		return StatusAlreadyEnabled
	}
	return bulkPatch([]*hookEntry{e})
}

func disableLocked(e *hookEntry) Status {
	if !e.enabled {
		return StatusAlreadyDisabled
	}
	e.queuedEnable = false
	return bulkPatch([]*hookEntry{e})
}

// bulkPatch freezes other threads once, applies each entry's target
// transition (enable if !e.enabled, disable if e.enabled; ApplyQueued
// passes only entries whose e.queuedEnable differs from e.enabled, so
// for those the transition reaches the queued state), and unfreezes.
// Each entry's .enabled flag is flipped only after its bytes are
// successfully written.
func bulkPatch(entries []*hookEntry) Status {
	type step struct {
		entry    *hookEntry
		enabling bool
	}
	steps := make([]step, 0, len(entries))
	fixups := make([]ipFixup, 0, len(entries))
	for _, e := range entries {
		enabling := !e.enabled
		steps = append(steps, step{entry: e, enabling: enabling})
		fixups = append(fixups, ipFixup{entry: e, enabling: enabling})
	}

	status := StatusOK
	err := freezeAndPatch(fixups, func() error {
		for _, s := range steps {
			if s.enabling {
				if perr := patchEnable(s.entry); perr != StatusOK {
					status = perr
					return nil
				}
				s.entry.enabled = true
			} else {
				if perr := patchDisable(s.entry); perr != StatusOK {
					status = perr
					return nil
				}
				s.entry.enabled = false
			}
		}
		return nil
	})
	if err != nil {
		return StatusMemoryProtectionFailed
	}
	return status
}

// patchEnable writes the on-target jump (and, for patch-above, the
// padding-region long jump) that redirects target into e's trampoline.
func patchEnable(e *hookEntry) Status {
	dest := e.detour
	if e.relay != 0 {
		dest = e.relay
	}
	atTarget, atPadding := buildOnTargetJump(e.target, dest, e.patchAbove, e.padding)

	writeLen := e.backupLen
	if e.patchAbove {
		writeLen = len(atTarget)
	}
	if err := protectMemory(e.target, uintptr(writeLen), false); err != nil {
		return StatusMemoryProtectionFailed
	}
	copy(unsafeByteSliceAt(e.target, uintptr(writeLen)), atTarget)
	if err := protectMemory(e.target, uintptr(writeLen), true); err != nil {
		return StatusMemoryProtectionFailed
	}

	if e.patchAbove {
		if err := protectMemory(e.padding, shortJumpLen, false); err != nil {
			return StatusMemoryProtectionFailed
		}
		copy(unsafeByteSliceAt(e.padding, uintptr(len(atPadding))), atPadding)
		if err := protectMemory(e.padding, shortJumpLen, true); err != nil {
			return StatusMemoryProtectionFailed
		}
	}
	return StatusOK
}

// patchDisable restores target's (and, for patch-above, the padding
// region's) original bytes from the hook entry's backup.
func patchDisable(e *hookEntry) Status {
	if err := protectMemory(e.target, uintptr(e.backupLen), false); err != nil {
		return StatusMemoryProtectionFailed
	}
	copy(unsafeByteSliceAt(e.target, uintptr(e.backupLen)), e.backup[:e.backupLen])
	if err := protectMemory(e.target, uintptr(e.backupLen), true); err != nil {
		return StatusMemoryProtectionFailed
	}

	if e.patchAbove {
		if err := protectMemory(e.padding, shortJumpLen, false); err != nil {
			return StatusMemoryProtectionFailed
		}
		copy(unsafeByteSliceAt(e.padding, shortJumpLen), e.paddingBackup[:])
		if err := protectMemory(e.padding, shortJumpLen, true); err != nil {
			return StatusMemoryProtectionFailed
		}
	}
	return StatusOK
}
