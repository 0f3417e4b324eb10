package alloc

// Block is a subdivision of a memory region. Blocks are held in a region's
// block list in base-address order; adjacent free blocks are merged on
// release.
type Block struct {
	base uintptr
	size uintptr
	free bool
}

// Base returns the block's starting address.
func (b *Block) Base() uintptr { return b.base }

// Size returns the block's size in bytes.
func (b *Block) Size() uintptr { return b.size }

// Free reports whether the block is currently unallocated.
func (b *Block) Free() bool { return b.free }
