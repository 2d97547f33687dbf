package detour

// Thread freezer (component D). Suspends every other thread in the
// process, relocates any instruction pointer that would otherwise be
// stranded inside bytes about to change, applies the patch, and resumes
// the threads.
//
// Grounded on §4.D's five-step protocol; platform implementations live
// in freeze_windows.go, freeze_linux.go and freeze_darwin.go.

// ipFixup describes one hookEntry's patch window, for relocating a
// frozen thread's instruction pointer across it.
type ipFixup struct {
	entry     *hookEntry
	enabling  bool // true: target -> trampoline; false: trampoline -> target
}

// freezeAndPatch suspends every other thread, applies patch (which must
// perform the byte writes for every fixup in fixups), relocating any
// frozen thread's instruction pointer first, then resumes every thread.
//
// On platforms without a thread-enumeration primitive (Linux, per the
// spec's explicit Platform note) this degrades to simply calling patch:
// accepted, since Linux targets of this library lean on dispatch-table
// hooks rather than live prologue patching.
func freezeAndPatch(fixups []ipFixup, patch func() error) error {
	threads, err := platformSuspendOthers()
	if err != nil {
		if isDebug {
			println("detour: thread suspension unavailable, patching unfrozen:", err.Error())
		}
		return patch()
	}
	defer platformResumeAll(threads)

	if isDebug {
		println("detour: froze", len(threads), "other thread(s) for", len(fixups), "fixup(s)")
	}

	for _, t := range threads {
		ip, ok := platformThreadIP(t)
		if !ok {
			continue
		}
		for _, fx := range fixups {
			if newIP, ok := relocateIP(fx, ip); ok {
				if isDebug {
					println("detour: relocating frozen ip", ip, "->", newIP)
				}
				platformSetThreadIP(t, newIP)
				break
			}
		}
	}

	return patch()
}

// relocateIP maps ip across one hookEntry's patch window per §4.D step 3.
func relocateIP(fx ipFixup, ip uintptr) (uintptr, bool) {
	e := fx.entry
	if fx.enabling {
		if ip < e.target || ip >= e.target+uintptr(e.backupLen) {
			return 0, false
		}
		off := e.oldToNew(int(ip - e.target))
		if off < 0 {
			return 0, false
		}
		return e.trampoline + uintptr(off), true
	}

	emittedLen := e.backupLen
	if e.relay != 0 {
		emittedLen = int(e.relay-e.trampoline) + shortJumpLen
	}
	if ip == e.relay {
		return e.target, true
	}
	if ip < e.trampoline || ip >= e.trampoline+uintptr(emittedLen) {
		return 0, false
	}
	off := e.newToOld(int(ip - e.trampoline))
	if off < 0 {
		return 0, false
	}
	return e.target + uintptr(off), true
}
