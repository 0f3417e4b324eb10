//go:build windows

// Package hook implements the hook builder and installer: prologue
// capture, trampoline construction, and the safe-activation protocol that
// patches a target function's entry branch under a scoped page-protection
// change and a registered VEH callback.
package hook

import (
	"fmt"
	"os"
	"reflect"
	"sync"
	"syscall"

	"accnt"
	"alloc"
	"defs"
	"protect"
	"util"
	"veh"
	"vmem"
)

// Debug gates hook install/remove trace output to stderr.
var Debug bool

// Hook is a single installed (or installable) inline hook.
type Hook struct {
	mu sync.Mutex

	target      uintptr
	destination uintptr
	name        string

	allocator    *alloc.Allocator
	trampoline   *alloc.Allocation
	originalSize int
	originalCopy []byte

	variant Variant
	enabled bool

	Stats accnt.Stats
}

var findMeSentinel = func() {}

// Create builds a disabled hook redirecting target to destination. It
// allocates a trampoline from allocator and captures/relocates the
// target's prologue, attempting the near-branch (E9) form first and
// falling back to the indirect (FF) form on amd64.
func Create(allocator *alloc.Allocator, target, destination uintptr) (*Hook, error) {
	if allocator == nil {
		return nil, defs.New(defs.Allocate, "nil allocator")
	}
	if target == 0 || destination == 0 {
		return nil, defs.New(defs.Allocate, "nil target or destination")
	}

	h := &Hook{target: target, destination: destination, allocator: allocator}

	p, err := capture(target, VariantNear)
	if err == nil {
		var tramp *alloc.Allocation
		tramp, err = buildTrampoline(allocator, target, destination, p, VariantNear, uintptr(defs.DefaultMaxDistance))
		if err == nil {
			h.trampoline = tramp
			h.originalSize = p.originalSize()
			h.originalCopy = append([]byte(nil), p.bytes...)
			h.variant = VariantNear
			return h, nil
		}
	}

	if !is64Bit {
		return nil, err
	}

	p, ffErr := capture(target, VariantIndirect)
	if ffErr != nil {
		return nil, ffErr
	}
	tramp, ffErr := buildTrampoline(allocator, target, destination, p, VariantIndirect, uintptr(defs.DefaultMaxDistance))
	if ffErr != nil {
		return nil, ffErr
	}
	h.trampoline = tramp
	h.originalSize = p.originalSize()
	h.originalCopy = append([]byte(nil), p.bytes...)
	h.variant = VariantIndirect
	return h, nil
}

// vehCallback handles the single observable mid-patch inconsistency: a
// thread whose IP lands on the second byte of the not-yet-completed entry
// branch is rewound to target and resumed.
func (h *Hook) vehCallback(ctx *veh.Context) veh.Verdict {
	if ctx.IP() == h.target+1 {
		ctx.SetIP(h.target)
		return veh.ContinueExecution
	}
	return veh.ContinueSearch
}

// chosenAccess picks the protection to request while patching: RWX when
// the target shares an allocation base with this library's own code, or
// overlaps the VirtualProtect entry point; RW otherwise.
func chosenAccess(target uintptr) vmem.Access {
	findMeBase, err := vmem.FindMe(reflect.ValueOf(findMeSentinel).Pointer())
	if err == nil {
		if targetRegion, terr := vmem.Query(target); terr == nil && !targetRegion.Free && targetRegion.Base == findMeBase {
			return vmem.RWX
		}
	}

	pageSize := vmem.PageSize()
	pageStart := target &^ (pageSize - 1)
	pageEnd := (target + pageSize - 1) &^ (pageSize - 1)
	vpStart := vmem.VirtualProtectEntryPoint()
	vpEnd := vpStart + 0x20
	if pageEnd >= vpStart && vpEnd >= pageStart {
		return vmem.RWX
	}
	return vmem.RW
}

// Enable installs the entry branch over the target's prologue. Calling
// Enable on an already-enabled hook is a no-op success.
func (h *Hook) Enable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.enabled {
		return nil
	}

	vehMgr := veh.Get()
	vehMgr.Register(h.target, h.target+uintptr(h.originalSize), h.vehCallback)

	access := chosenAccess(h.target)
	guard := protect.New(h.target, uintptr(h.originalSize), access)
	defer guard.Close()
	if err := guard.Err(); err != nil {
		vehMgr.Unregister(h.target)
		return err
	}

	switch h.variant {
	case VariantNear:
		// Only the 5 branch bytes change; the rest of the stolen prologue
		// stays in place under the torn-read protocol.
		epilogueBase := h.trampoline.Address() + h.trampoline.Size() - uintptr(epilogueSize(VariantNear))
		jmpToDestination := epilogueBase + defs.NearJumpSize
		buf := make([]byte, defs.NearJumpSize)
		if err := writeJmpE9(buf, h.target, jmpToDestination); err != nil {
			vehMgr.Unregister(h.target)
			return err
		}
		writeBytes(h.target, buf)
	case VariantIndirect:
		// The entry branch jumps to the trampoline through a literal cell
		// immediately after it; the remainder of the prologue is trap-filled.
		size := h.originalSize
		if size < defs.IndirectJumpSize+8 {
			size = defs.IndirectJumpSize + 8
		}
		buf := make([]byte, size)
		if err := writeJmpFF(buf, h.target, h.target+defs.IndirectJumpSize); err != nil {
			vehMgr.Unregister(h.target)
			return err
		}
		util.Writen(buf, 8, defs.IndirectJumpSize, int64(h.trampoline.Address()))
		writeBytes(h.target, buf)
	}
	_ = vmem.FlushInstructionCache(h.target, uintptr(h.originalSize))

	if Debug {
		fmt.Fprintf(os.Stderr, "hook: enabled %#x -> %#x via trampoline %#x\n",
			h.target, h.destination, h.trampoline.Address())
	}

	h.enabled = true
	h.Stats.MarkEnabled()
	return nil
}

// Disable restores the original bytes at target. Calling Disable on an
// already-disabled hook is a no-op success.
func (h *Hook) Disable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled {
		return nil
	}
	h.enabled = false

	guard := protect.New(h.target, uintptr(h.originalSize), vmem.RWX)
	defer guard.Close()
	if err := guard.Err(); err != nil {
		h.enabled = true
		return err
	}

	writeBytes(h.target, h.originalCopy)
	_ = vmem.FlushInstructionCache(h.target, uintptr(h.originalSize))
	veh.Get().Unregister(h.target)
	if Debug {
		fmt.Fprintf(os.Stderr, "hook: disabled %#x\n", h.target)
	}
	h.Stats.MarkDisabled()
	return nil
}

// Close disables the hook and releases its trampoline. A Hook must not be
// used after Close.
func (h *Hook) Close() error {
	if err := h.Disable(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.trampoline != nil {
		h.trampoline.Free()
		h.trampoline = nil
	}
	return nil
}

// TrampolineAddress returns the base address of the trampoline. Callers
// that need a typed call can cast it to a function pointer of the original
// signature; Call covers the common integer-register case.
func (h *Hook) TrampolineAddress() uintptr {
	return h.trampoline.Address()
}

// Call invokes the original function through the trampoline: the relocated
// prologue runs first, then control jumps back into the target past the
// patched entry. It returns the callee's primary integer result. Arguments
// and result travel as machine words, so this covers integer and pointer
// signatures; float-returning targets need a typed cast of
// TrampolineAddress instead.
func (h *Hook) Call(args ...uintptr) uintptr {
	r1, _, _ := syscall.SyscallN(h.trampoline.Address(), args...)
	return r1
}

// Target returns the hooked function's address.
func (h *Hook) Target() uintptr { return h.target }

// String renders the hook for diagnostics. Hooks created by name carry
// the resolved (demangled) export name; address-only hooks print raw
// addresses.
func (h *Hook) String() string {
	if h.name != "" {
		return fmt.Sprintf("hook %s @ %#x -> %#x", h.name, h.target, h.destination)
	}
	return fmt.Sprintf("hook %#x -> %#x", h.target, h.destination)
}

// Enabled reports whether the hook is currently installed.
func (h *Hook) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}
