//go:build windows && amd64

package detour

import "golang.org/x/sys/windows"

func contextIP(ctx *windows.CONTEXT) uint64 { return ctx.Rip }

func setContextIP(ctx *windows.CONTEXT, ip uintptr) { ctx.Rip = uint64(ip) }
