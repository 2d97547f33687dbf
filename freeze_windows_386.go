//go:build windows && 386

package detour

import "golang.org/x/sys/windows"

func contextIP(ctx *windows.CONTEXT) uint64 { return uint64(ctx.Eip) }

func setContextIP(ctx *windows.CONTEXT, ip uintptr) { ctx.Eip = uint32(ip) }
