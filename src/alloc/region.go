package alloc

import (
	"container/list"
	"unsafe"

	"defs"
)

// Region is a single contiguous page-granular reservation owned by the
// allocator, covered exactly by its block list.
type Region struct {
	base   uintptr
	size   uintptr
	blocks *list.List // of *Block, in increasing base order
}

func newRegion(base, size uintptr) *Region {
	r := &Region{base: base, size: size, blocks: newBlockList(&Block{base: base, size: size, free: true})}
	fillTrap(base, size)
	return r
}

func newBlockList(blocks ...*Block) *list.List {
	l := list.New()
	for _, b := range blocks {
		l.PushBack(b)
	}
	return l
}

// Base returns the region's starting address.
func (r *Region) Base() uintptr { return r.base }

// Size returns the region's total size in bytes.
func (r *Region) Size() uintptr { return r.size }

// contains reports whether addr falls within the region.
func (r *Region) contains(addr uintptr) bool {
	return addr >= r.base && addr < r.base+r.size
}

// fillTrap writes the trap byte across a freshly reserved region before
// any sub-allocation.
func fillTrap(base, size uintptr) {
	s := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	for i := range s {
		s[i] = defs.TrapByte
	}
}
