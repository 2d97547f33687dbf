//go:build linux

package detour

import "errors"

// Linux exposes no documented primitive to enumerate and suspend every
// other thread in the calling process short of signal-based tricks this
// library does not use; per §4.D's Platform note, the freezer degrades
// to a no-op here, accepted because Linux consumers of this package
// lean on dispatch-table hooks rather than live prologue patching.

type platformThread struct{}

func platformSuspendOthers() ([]platformThread, error) {
	return nil, errFreezeUnsupported
}

func platformResumeAll(_ []platformThread) {}

func platformThreadIP(_ platformThread) (uintptr, bool) { return 0, false }

func platformSetThreadIP(_ platformThread, _ uintptr) {}

var errFreezeUnsupported = errors.New("detour: thread enumeration unsupported on this platform")
