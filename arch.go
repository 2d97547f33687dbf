package detour

import "unsafe"

// is64Bit is true when built for a 64-bit target (amd64, arm64, ...),
// matching the teacher's own sizeof(uintptr)-based arch detection
// (brahma-adshonor-gohook's arch_util.go does the same check at init).
const is64Bit = unsafe.Sizeof(uintptr(0)) == 8

const wordSize = unsafe.Sizeof(uintptr(0))
