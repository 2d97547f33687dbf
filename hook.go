package detour

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Hook registry (component C) and the Hook entry data model (§3).
//
// Grounded on the teacher's package-level `hooks map[uintptr]*hook` and
// `lock sync.Mutex` (hook.go), generalized from a mutex into the
// process-global spin lock the spec requires (test-and-set with
// exponential back-off between yield and sleep(1)).

// hookEntry is one per patched target (§3's "Hook entry").
type hookEntry struct {
	target     uintptr
	detour     uintptr
	trampoline uintptr // address of the allocated slot
	relay      uintptr // amd64 relay stub address inside the slot; 0 on x86
	padding    uintptr // patch-above padding address, if patchAbove

	backup     [maxBackupLen]byte
	backupLen  int
	patchAbove bool

	// paddingBackup holds the original bytes of the patch-above padding
	// region (preceding target), captured at Create time so Disable can
	// restore them verbatim instead of assuming they were 0x90 fill —
	// findPatchAbove accepts 00/90/CC padding per §4.B.
	paddingBackup [shortJumpLen]byte

	enabled bool

	hasQueued    bool
	queuedEnable bool

	oldOffsets []int
	newOffsets []int
}

// oldToNew maps an instruction pointer offset (relative to target)
// sitting inside the target's prologue to the corresponding offset
// inside the trampoline, or -1 if off does not land on an instruction
// boundary that was relocated.
func (h *hookEntry) oldToNew(off int) int {
	for i, o := range h.oldOffsets {
		if o == off {
			return h.newOffsets[i]
		}
	}
	return -1
}

// newToOld is oldToNew's inverse, used when relocating a thread's
// instruction pointer back out of the trampoline on disable.
func (h *hookEntry) newToOld(off int) int {
	for i, n := range h.newOffsets {
		if n == off {
			return h.oldOffsets[i]
		}
	}
	return -1
}

// spinLock is the single process-global lock all public operations
// serialize through: test-and-set with exponential back-off between a
// pure yield and a short sleep, per §4.C.
type spinLock struct {
	state atomic.Bool
}

func (s *spinLock) Lock() {
	backoff := time.Microsecond
	for !s.state.CompareAndSwap(false, true) {
		runtime.Gosched()
		time.Sleep(backoff)
		if backoff < time.Millisecond {
			backoff *= 2
		}
	}
}

func (s *spinLock) Unlock() {
	s.state.Store(false)
}

// registry owns every hookEntry, keyed by target address, and the
// global lock guarding them (§3's "Global library state"). The buffer
// allocator is the separate globalAllocator, which has its own mutex.
type registry struct {
	lock    spinLock
	entries map[uintptr]*hookEntry
	order   []uintptr // creation order, for enable_all/disable_all determinism
}

var globalRegistry = &registry{
	entries: make(map[uintptr]*hookEntry),
}

// ALL_HOOKS is the global sentinel usable as a target in EnableAll's and
// DisableAll's callers that want to express "every hook" through the
// same (module, symbol)-or-address call shape the single-target
// operations use.
const ALL_HOOKS uintptr = 0

// isDebug gates println-style diagnostics in the hot paths (buffer
// allocation probing, trampoline building, thread freezing), mirroring
// the teacher's own isDebug/SetDebug toggle.
var isDebug = false

// SetDebug enables or disables the package's println diagnostics.
func SetDebug(x bool) {
	isDebug = x
}

var onceInit sync.Once

// ensureInitialized performs the one-shot, lazily-triggered setup of
// the global library state, mirroring the teacher's lazy
// `hooks = make(map[uintptr]*hook)` in its package init().
func ensureInitialized() {
	onceInit.Do(func() {
		if globalRegistry.entries == nil {
			globalRegistry.entries = make(map[uintptr]*hookEntry)
		}
	})
}
