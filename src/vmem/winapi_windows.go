//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// systemInfo mirrors Windows' SYSTEM_INFO. golang.org/x/sys/windows does
// not export GetSystemInfo, so - the same way this module's veh package
// hand-defines CONTEXT - the fields are laid out by hand. The
// processor-architecture union at the head is left unnamed; this package
// reads pageSize, the application address range and allocationGranularity.
type systemInfo struct {
	_                         [4]byte // OEM_ID / reserved padding of the processor-arch union
	pageSize                  uint32
	minimumApplicationAddress uintptr
	maximumApplicationAddress uintptr
	activeProcessorMask       uintptr
	numberOfProcessors        uint32
	processorType             uint32
	allocationGranularity     uint32
	processorLevel            uint16
	processorRevision         uint16
}

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procGetSystemInfo         = kernel32.NewProc("GetSystemInfo")
	procFlushInstructionCache = kernel32.NewProc("FlushInstructionCache")
)

func getSystemInfo(si *systemInfo) {
	procGetSystemInfo.Call(uintptr(unsafe.Pointer(si)))
}

func flushInstructionCache(proc windows.Handle, base uintptr, size uintptr) error {
	r, _, callErr := procFlushInstructionCache.Call(uintptr(proc), base, size)
	if r == 0 {
		return callErr
	}
	return nil
}
