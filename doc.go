// Package inlinehook is an in-process x86 inline function hooking engine.
// It patches the first few bytes of a target function with a branch to a
// replacement, preserving the overwritten prologue in a trampoline so the
// original function remains callable.
//
// The heavy lifting lives in the replaced sub-packages (alloc, hook, veh,
// vmem, protect, decode, defs, util); this package is the thin public
// surface an embedder imports.
package inlinehook
