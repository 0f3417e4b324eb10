//go:build windows

package inlinehook

import "alloc"

// Allocator is the near-memory allocator: it reserves executable pages
// within reach of one or more target addresses and sub-allocates
// trampoline-sized blocks from them.
type Allocator = alloc.Allocator

// Allocation is a handle to a block returned by an Allocator.
type Allocation = alloc.Allocation

// GetAllocator returns the process-wide allocator singleton.
func GetAllocator() *Allocator {
	return alloc.Get()
}

// NewAllocator constructs an independent allocator, for embedders that
// want isolated trampoline pools instead of sharing the process default.
func NewAllocator() *Allocator {
	return alloc.New()
}
