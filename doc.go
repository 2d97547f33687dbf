// Package detour is a runtime, in-process function interception library
// for x86 and x86-64 native code on Windows, Linux and macOS.
//
// Given the address (or the symbolic name) of an executable function, it
// redirects calls made to that function into a caller-supplied detour,
// while keeping the unmodified original callable through a generated
// trampoline. A second facility, the dispatch-table proxy, intercepts a
// C++-style virtual method table belonging to a live object instance,
// replacing individual slots with entries taken from a substitute
// object's table.
//
// The package is organised around the components of the design: an
// executable buffer allocator (alloc.go), an instruction rewriter
// (rewrite*.go), a hook registry (hook.go, registry.go), a thread
// freezer (freeze*.go), a memory-protection helper (protect*.go), a
// dispatch-table prober (vtable*.go) and a dispatch-table proxy
// (proxy.go).
package detour
