// Package alloc implements the near-memory allocator: given a set of
// desired addresses and a size, return a block within a
// signed-32-bit-reachable distance of every desired address, or fail. It
// reserves backing pages from vmem on demand and sub-allocates
// fixed-alignment blocks from them with split/coalesce.
package alloc

import (
	"fmt"
	"os"
	"sync"

	"defs"
	"util"
	"vmem"
)

// Debug gates allocator trace output to stderr.
var Debug bool

// Allocator owns a set of memory regions and sub-allocates blocks from
// them. The entire region list is guarded by one mutex, held for the full
// allocate path including any VM syscalls.
type Allocator struct {
	mu      sync.Mutex
	regions []*Region
}

// New constructs an allocator with no backing regions.
func New() *Allocator {
	return &Allocator{}
}

var (
	singletonOnce sync.Once
	singleton     *Allocator
)

// Get returns the process-wide allocator singleton.
func Get() *Allocator {
	singletonOnce.Do(func() {
		singleton = New()
	})
	return singleton
}

// Allocate reserves size bytes with no placement constraint.
func (a *Allocator) Allocate(size uintptr) (*Allocation, error) {
	return a.AllocateNear(nil, size, defs.DefaultMaxDistance)
}

// AllocateNear reserves size bytes within maxDistance of every address in
// desired. An empty desired set allocates anywhere and ignores maxDistance.
func (a *Allocator) AllocateNear(desired []uintptr, size uintptr, maxDistance uintptr) (*Allocation, error) {
	if size == 0 {
		return nil, defs.New(defs.BadAllocation, "zero size")
	}
	aligned := util.Roundup(size, uintptr(defs.BlockAlign))

	a.mu.Lock()
	defer a.mu.Unlock()

	if b, ok := a.satisfyExisting(desired, aligned, maxDistance); ok {
		return a.wrap(b, size), nil
	}

	region, err := a.reserveBacking(desired, aligned, maxDistance)
	if err != nil {
		return nil, err
	}
	a.regions = append(a.regions, region)
	if Debug {
		fmt.Fprintf(os.Stderr, "alloc: reserved region %#x+%#x\n", region.base, region.size)
	}

	if b, ok := a.satisfyExisting(desired, aligned, maxDistance); ok {
		return a.wrap(b, size), nil
	}
	return nil, defs.New(defs.BadAllocation, "newly reserved region did not satisfy request")
}

// satisfyExisting walks every region, then every block in base order,
// looking for a free block that is large enough and within range of every
// desired address. A strictly larger match is split, leaving the remainder
// as a new free block immediately after it.
func (a *Allocator) satisfyExisting(desired []uintptr, aligned, maxDistance uintptr) (*Block, bool) {
	for _, r := range a.regions {
		if r.size < aligned {
			continue
		}
		for e := r.blocks.Front(); e != nil; e = e.Next() {
			b := e.Value.(*Block)
			if !b.free || b.size < aligned {
				continue
			}
			if !withinProximity(b.base, desired, maxDistance) {
				continue
			}
			if b.size > aligned {
				remainder := &Block{base: b.base + aligned, size: b.size - aligned, free: true}
				r.blocks.InsertAfter(remainder, e)
				b.size = aligned
			}
			b.free = false
			return b, true
		}
	}
	return nil, false
}

// reserveBacking picks a pivot, clamps the search window to the
// application address range, and walks backward then forward from the
// pivot looking for an unreserved gap big enough to commit.
func (a *Allocator) reserveBacking(desired []uintptr, aligned, maxDistance uintptr) (*Region, error) {
	granularity := vmem.AllocationGranularity()
	sz := util.Roundup(aligned, granularity)

	if len(desired) == 0 {
		addr, err := vmem.Alloc(0, sz, vmem.RWX)
		if err != nil {
			return nil, defs.New(defs.Allocate, err.Error())
		}
		return newRegion(addr, sz), nil
	}

	pivot := desired[0]
	loApp, hiApp := vmem.ApplicationAddressRange()

	var lo uintptr
	if pivot > maxDistance {
		lo = pivot - maxDistance
	}
	hi := pivot + maxDistance
	lo = util.Max(lo, loApp)
	hi = util.Min(hi, hiApp)

	pos := util.Roundup(pivot, granularity)

	if r := a.scan(pos, lo, hi, sz, granularity, desired, maxDistance, -1); r != nil {
		return r, nil
	}
	if r := a.scan(pos, lo, hi, sz, granularity, desired, maxDistance, +1); r != nil {
		return r, nil
	}
	return nil, defs.New(defs.BadAllocation, "no backing region within max_distance")
}

func (a *Allocator) scan(start, lo, hi, size, granularity uintptr, desired []uintptr, maxDistance uintptr, dir int) *Region {
	p := start
	for {
		if p < lo || p > hi {
			return nil
		}
		if !withinProximity(p, desired, maxDistance) {
			return nil
		}
		region, err := vmem.Query(p)
		if err == nil && region.Free && region.Size >= size {
			if addr, aerr := vmem.Alloc(p, size, vmem.RWX); aerr == nil {
				return newRegion(addr, size)
			}
		}
		if dir < 0 {
			if err != nil || region.Base == 0 {
				return nil
			}
			next := util.Rounddown(region.Base-1, granularity)
			if next >= p {
				return nil
			}
			p = next
		} else {
			step := region.Size
			if step == 0 {
				step = granularity
			}
			p += step
		}
	}
}

func withinProximity(addr uintptr, desired []uintptr, maxDistance uintptr) bool {
	for _, d := range desired {
		if distance(addr, d) > maxDistance {
			return false
		}
	}
	return true
}

func distance(a, b uintptr) uintptr {
	if a >= b {
		return a - b
	}
	return b - a
}

// free finds the block at addr, marks it free, and coalesces it with
// adjacent free blocks. An address never returned by this allocator is a
// silent no-op.
func (a *Allocator) free(addr uintptr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.regions {
		if !r.contains(addr) {
			continue
		}
		for e := r.blocks.Front(); e != nil; e = e.Next() {
			b := e.Value.(*Block)
			if b.base != addr {
				continue
			}
			b.free = true

			for next := e.Next(); next != nil; {
				nb := next.Value.(*Block)
				if !nb.free {
					break
				}
				b.size += nb.size
				drop := next
				next = next.Next()
				r.blocks.Remove(drop)
			}

			if prev := e.Prev(); prev != nil {
				pb := prev.Value.(*Block)
				if pb.free {
					pb.size += b.size
					r.blocks.Remove(e)
				}
			}
			return
		}
	}
}

// Regions returns a snapshot of the allocator's backing regions, for
// diagnostics (see WriteProfile).
func (a *Allocator) Regions() []*Region {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Region, len(a.regions))
	copy(out, a.regions)
	return out
}
