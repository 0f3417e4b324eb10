//go:build windows && amd64

package hook

import (
	"bytes"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"alloc"
	"vmem"
)

// emitFunc maps a machine-code blob into fresh executable memory and
// returns its entry address. The blob follows the win64 calling
// convention, so syscall.SyscallN can drive it directly.
func emitFunc(t *testing.T, code []byte) uintptr {
	t.Helper()
	addr, err := vmem.Alloc(0, uintptr(len(code)), vmem.RWX)
	if err != nil {
		t.Fatalf("vmem.Alloc: %v", err)
	}
	t.Cleanup(func() { _ = vmem.Free(addr) })
	writeBytes(addr, code)
	_ = vmem.FlushInstructionCache(addr, uintptr(len(code)))
	return addr
}

// sumBlob computes ecx+edx: lea eax, [rcx+rdx]; ret. Padded so the stolen
// prologue never runs off the mapping.
var sumBlob = []byte{
	0x8D, 0x04, 0x11, // lea eax, [rcx+rdx]
	0xC3, // ret
	0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
	0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
	0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
}

// constBlob returns 1337 regardless of arguments.
var constBlob = []byte{
	0xB8, 0x39, 0x05, 0x00, 0x00, // mov eax, 1337
	0xC3, // ret
	0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
}

// branchySumBlob computes ecx+edx through a prologue containing a short
// conditional branch that lands inside the stolen range, forcing the
// widened-Jcc relocation path.
var branchySumBlob = []byte{
	0x85, 0xC9, // test ecx, ecx
	0x74, 0x00, // je +0 (falls through, target inside the prologue)
	0x90,             // nop
	0x8D, 0x04, 0x11, // lea eax, [rcx+rdx]
	0xC3, // ret
	0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
	0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
}

func callSum(target uintptr, a, b uintptr) uintptr {
	r1, _, _ := syscall.SyscallN(target, a, b)
	return r1
}

func TestHookRedirectsAndCallReachesOriginal(t *testing.T) {
	target := emitFunc(t, sumBlob)
	destination := emitFunc(t, constBlob)

	if got := callSum(target, 1, 1); got != 2 {
		t.Fatalf("pre-enable sum(1,1) = %d, want 2", got)
	}

	h, err := Create(alloc.Get(), target, destination)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	if err := h.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := callSum(target, 1, 1); got != 1337 {
		t.Fatalf("post-enable sum(1,1) = %d, want 1337", got)
	}
	if got := h.Call(1, 1); got != 2 {
		t.Fatalf("Call(1,1) through the trampoline = %d, want 2", got)
	}

	if err := h.Enable(); err != nil {
		t.Fatalf("second Enable must be a no-op success, got %v", err)
	}

	if err := h.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if got := callSum(target, 1, 1); got != 2 {
		t.Fatalf("post-disable sum(1,1) = %d, want 2", got)
	}
	if got := h.Call(1, 1); got != 2 {
		t.Fatalf("Call(1,1) while disabled = %d, want 2", got)
	}
	if err := h.Disable(); err != nil {
		t.Fatalf("second Disable must be a no-op success, got %v", err)
	}
}

func TestDisableRestoresOriginalBytes(t *testing.T) {
	target := emitFunc(t, sumBlob)
	destination := emitFunc(t, constBlob)

	before := readBytes(target, len(sumBlob))

	h, err := Create(alloc.Get(), target, destination)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	if err := h.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := h.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	after := readBytes(target, len(sumBlob))
	if !bytes.Equal(before, after) {
		t.Fatalf("original bytes not restored:\nbefore %x\nafter  %x", before, after)
	}
}

func TestHookRelativeBranchPrologue(t *testing.T) {
	target := emitFunc(t, branchySumBlob)
	destination := emitFunc(t, constBlob)

	before := readBytes(target, len(branchySumBlob))

	h, err := Create(alloc.Get(), target, destination)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	if err := h.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := callSum(target, 20, 22); got != 1337 {
		t.Fatalf("post-enable = %d, want 1337", got)
	}
	// The trampoline runs the widened Jcc rel32 copy of the prologue.
	if got := h.Call(20, 22); got != 42 {
		t.Fatalf("Call(20,22) through the trampoline = %d, want 42", got)
	}

	if err := h.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	after := readBytes(target, len(branchySumBlob))
	if !bytes.Equal(before, after) {
		t.Fatalf("original bytes not restored:\nbefore %x\nafter  %x", before, after)
	}
	if got := callSum(target, 20, 22); got != 42 {
		t.Fatalf("post-disable = %d, want 42", got)
	}
}

func TestConcurrentEnableDisable(t *testing.T) {
	target := emitFunc(t, sumBlob)
	destination := emitFunc(t, constBlob)

	h, err := Create(alloc.Get(), target, destination)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	var stop atomic.Bool
	var sawHooked, sawOriginal atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for !stop.Load() {
			switch callSum(target, 1, 1) {
			case 2:
				sawOriginal.Store(true)
			case 1337:
				sawHooked.Store(true)
			default:
				// A torn read would have crashed long before reporting an
				// unexpected sum; keep hammering.
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !(sawHooked.Load() && sawOriginal.Load()) {
		if err := h.Enable(); err != nil {
			t.Fatalf("Enable under load: %v", err)
		}
		time.Sleep(time.Millisecond)
		if err := h.Disable(); err != nil {
			t.Fatalf("Disable under load: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	stop.Store(true)
	<-done

	if !sawHooked.Load() {
		t.Error("looping caller never observed the replacement result")
	}
	if !sawOriginal.Load() {
		t.Error("looping caller never observed the original result")
	}
}

func TestCreateRejectsNilAllocator(t *testing.T) {
	target := emitFunc(t, sumBlob)
	destination := emitFunc(t, constBlob)

	if _, err := Create(nil, target, destination); err == nil {
		t.Fatal("Create with a nil allocator must fail")
	}
}
