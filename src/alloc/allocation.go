package alloc

import "runtime"

// Allocation is a handle to a single allocated block, returned by
// Allocator.Allocate/AllocateNear. Callers are expected to call Free
// exactly once; a finalizer releases the underlying block as a safety net
// if they don't.
type Allocation struct {
	owner *Allocator
	addr  uintptr
	size  uintptr
	freed bool
}

func (a *Allocator) wrap(b *Block, requested uintptr) *Allocation {
	al := &Allocation{owner: a, addr: b.base, size: requested}
	runtime.SetFinalizer(al, (*Allocation).finalize)
	return al
}

// Address returns the allocated block's base address.
func (al *Allocation) Address() uintptr { return al.addr }

// Size returns the size that was requested. The backing block may be
// larger due to alignment rounding; that slack stays with the block and is
// returned to the free pool along with it.
func (al *Allocation) Size() uintptr { return al.size }

// Free releases the block back to the allocator. Calling Free more than
// once is a no-op.
func (al *Allocation) Free() {
	if al.freed {
		return
	}
	al.freed = true
	al.owner.free(al.addr)
	runtime.SetFinalizer(al, nil)
}

func (al *Allocation) finalize() {
	al.Free()
}
