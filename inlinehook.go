//go:build windows

package inlinehook

import (
	"alloc"
	"defs"
	"hook"
)

// Version identifies the engine revision.
const Version = defs.Version

// SetDebug toggles stderr trace output across the engine's hook builder
// and allocator.
func SetDebug(on bool) {
	hook.Debug = on
	alloc.Debug = on
}

// Hook is a single installed (or installable) inline hook.
type Hook = hook.Hook

// Variant identifies which entry-branch form a hook was built with.
type Variant = hook.Variant

const (
	VariantUnset    = hook.VariantUnset
	VariantNear     = hook.VariantNear
	VariantIndirect = hook.VariantIndirect
)

// Create builds a disabled hook redirecting calls to target toward
// destination. A nil allocator is an error; pass GetAllocator() to use the
// process-wide default.
func Create(allocator *Allocator, target, destination uintptr) (*Hook, error) {
	return hook.Create(allocator, target, destination)
}

// CreateByName resolves export from dll and hooks it, redirecting calls to
// destination.
func CreateByName(allocator *Allocator, dll, export string, destination uintptr) (*Hook, error) {
	return hook.CreateByName(allocator, dll, export, destination)
}
