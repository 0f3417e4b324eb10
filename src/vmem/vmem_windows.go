//go:build windows

// Package vmem wraps the platform virtual-memory primitives: allocate,
// free, protect, query. These are pure syscall wrappers with no logical
// bookkeeping of their own; allocation policy lives in the alloc package.
package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"defs"
)

// Access is a page protection mode. The engine only ever needs these four
// combinations.
type Access int

const (
	R Access = iota
	RW
	RX
	RWX
)

func (a Access) String() string {
	switch a {
	case R:
		return "R"
	case RW:
		return "RW"
	case RX:
		return "RX"
	case RWX:
		return "RWX"
	default:
		return "?"
	}
}

func (a Access) protect() uint32 {
	switch a {
	case R:
		return windows.PAGE_READONLY
	case RW:
		return windows.PAGE_READWRITE
	case RX:
		return windows.PAGE_EXECUTE_READ
	case RWX:
		return windows.PAGE_EXECUTE_READWRITE
	default:
		panic("vmem: bad access")
	}
}

func accessFromProtect(protect uint32) Access {
	switch protect &^ (windows.PAGE_GUARD | windows.PAGE_NOCACHE | windows.PAGE_WRITECOMBINE) {
	case windows.PAGE_READONLY, windows.PAGE_WRITECOPY:
		return R
	case windows.PAGE_READWRITE:
		return RW
	case windows.PAGE_EXECUTE, windows.PAGE_EXECUTE_READ:
		return RX
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return RWX
	default:
		return R
	}
}

// memFree is MEM_FREE, not exported by golang.org/x/sys/windows.
const memFree = 0x00010000

// Region describes the reservation containing a queried address.
type Region struct {
	Base   uintptr
	Size   uintptr
	Access Access
	Free   bool
}

// Alloc reserves and commits size bytes at (or near) hint with the given
// access. When hint is 0 the OS chooses the address.
func Alloc(hint uintptr, size uintptr, access Access) (uintptr, error) {
	if size == 0 {
		return 0, defs.New(defs.Allocate, "zero size")
	}
	addr, err := windows.VirtualAlloc(hint, size, windows.MEM_COMMIT|windows.MEM_RESERVE, access.protect())
	if err != nil {
		return 0, defs.New(defs.Allocate, err.Error())
	}
	return addr, nil
}

// Free releases an entire reservation. address must be a base returned by
// Alloc.
func Free(address uintptr) error {
	if err := windows.VirtualFree(address, 0, windows.MEM_RELEASE); err != nil {
		return defs.New(defs.Allocate, err.Error())
	}
	return nil
}

// Protect changes the protection of [base, base+size) to newAccess,
// returning the previous access.
func Protect(base uintptr, size uintptr, newAccess Access) (Access, error) {
	var old uint32
	if err := windows.VirtualProtect(base, size, newAccess.protect(), &old); err != nil {
		return 0, defs.New(defs.Protect, err.Error())
	}
	return accessFromProtect(old), nil
}

// Query describes the region containing address.
func Query(address uintptr) (Region, error) {
	var mbi windows.MemoryBasicInformation
	err := windows.VirtualQuery(address, &mbi, unsafe.Sizeof(mbi))
	if err != nil {
		return Region{}, defs.New(defs.Query, err.Error())
	}
	if mbi.State == memFree {
		return Region{Base: mbi.BaseAddress, Size: mbi.RegionSize, Free: true}, nil
	}
	return Region{
		Base:   mbi.AllocationBase,
		Size:   mbi.RegionSize,
		Access: accessFromProtect(mbi.Protect),
	}, nil
}

// AllocationGranularity returns the OS allocation granularity (typically
// 64 KiB on Windows): the unit reservations made through Alloc start on.
// The allocator rounds its region sizes up to it.
func AllocationGranularity() uintptr {
	var si systemInfo
	getSystemInfo(&si)
	return uintptr(si.allocationGranularity)
}

// ApplicationAddressRange returns the lowest and highest addresses a
// process can map, used to clamp the near-memory allocator's search window.
func ApplicationAddressRange() (uintptr, uintptr) {
	var si systemInfo
	getSystemInfo(&si)
	return si.minimumApplicationAddress, si.maximumApplicationAddress
}

// FindMe resolves the allocation base of the region containing fn, a
// function pointer belonging to this process's own module. The hook
// installer uses it to decide whether a target lives in the engine's own
// module and therefore needs executability preserved while patched.
func FindMe(fn uintptr) (uintptr, error) {
	r, err := Query(fn)
	if err != nil {
		return 0, err
	}
	return r.Base, nil
}

// PageSize returns the OS page size (typically 4 KiB).
func PageSize() uintptr {
	var si systemInfo
	getSystemInfo(&si)
	return uintptr(si.pageSize)
}

// VirtualProtectEntryPoint resolves the address of kernel32's VirtualProtect
// entry point, used by the hook builder to detect when a target overlaps
// the very function it would otherwise call to patch it.
func VirtualProtectEntryPoint() uintptr {
	return kernel32.NewProc("VirtualProtect").Addr()
}

// FlushInstructionCache flushes the instruction cache for [base, base+size)
// in the current process, required on some architectures after a running
// thread's code has been modified.
func FlushInstructionCache(base uintptr, size uintptr) error {
	proc, err := windows.GetCurrentProcess()
	if err != nil {
		return defs.New(defs.Allocate, err.Error())
	}
	return flushInstructionCache(proc, base, size)
}
