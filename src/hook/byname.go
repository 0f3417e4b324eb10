//go:build windows

package hook

import (
	"syscall"

	"github.com/ianlancetaylor/demangle"

	"alloc"
	"defs"
)

// CreateByName resolves export from dll (loading it if not already mapped)
// and hooks the resolved address, redirecting it to destination. Export
// names are run through demangle.Filter for diagnostics, so a mangled C++
// export reads legibly in error context and in String().
func CreateByName(allocator *alloc.Allocator, dll, export string, destination uintptr) (*Hook, error) {
	h, err := syscall.LoadDLL(dll)
	if err != nil {
		return nil, defs.New(defs.Allocate, "load "+dll+": "+err.Error())
	}
	proc, err := h.FindProc(export)
	if err != nil {
		return nil, defs.New(defs.Allocate, "resolve "+demangle.Filter(export)+" in "+dll+": "+err.Error())
	}
	hk, err := Create(allocator, proc.Addr(), destination)
	if err != nil {
		return nil, err
	}
	hk.name = dll + "!" + demangle.Filter(export)
	return hk, nil
}
