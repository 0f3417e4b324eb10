//go:build windows

package hook

import (
	"alloc"
	"defs"
	"util"
	"vmem"
)

// buildTrampoline allocates a trampoline near the prologue's desired
// addresses, relocates the captured prologue into it, and appends the
// variant's epilogue. The indirect variant reaches its destinations
// through 64-bit literals, so its allocation is unconstrained.
func buildTrampoline(allocator *alloc.Allocator, target, destination uintptr, p *prologue, variant Variant, maxDistance uintptr) (*alloc.Allocation, error) {
	total := p.trampolineBudget + epilogueSize(variant)

	var a *alloc.Allocation
	var err error
	if variant == VariantIndirect {
		a, err = allocator.Allocate(uintptr(total))
	} else {
		a, err = allocator.AllocateNear(p.desired, uintptr(total), maxDistance)
	}
	if err != nil {
		return nil, err
	}

	buf := make([]byte, total)
	base := a.Address()
	t := 0

	for _, ci := range p.instrs {
		src := p.bytes[ci.offset : ci.offset+ci.length]

		switch {
		case ci.condShort:
			tAddr := base + uintptr(t)
			disp := relocatedShortBranch(ci, target, p.originalSize(), tAddr, 6)
			buf[t] = defs.OpCondJcc
			buf[t+1] = 0x80 | (ci.opcodeByte - defs.OpShortJccBase)
			util.Writen(buf, 4, t+2, int64(disp))
			t += 6
		case ci.uncondShort:
			tAddr := base + uintptr(t)
			disp := relocatedShortBranch(ci, target, p.originalSize(), tAddr, 5)
			buf[t] = defs.OpNearJump
			util.Writen(buf, 4, t+1, int64(disp))
			t += 5
		default:
			copy(buf[t:t+ci.length], src)
			tAddr := base + uintptr(t)
			if ci.dispSize == 4 {
				disp := relocatedOperand(ci, tAddr, ci.length)
				util.Writen(buf, 4, t+ci.dispOffset, int64(disp))
			} else if ci.immSize == 4 {
				disp := relocatedOperand(ci, tAddr, ci.length)
				util.Writen(buf, 4, t+ci.immOffset, int64(disp))
			}
			t += ci.length
		}
	}

	switch variant {
	case VariantNear:
		err = writeE9Epilogue(buf[t:], base+uintptr(t), target, p.originalSize(), destination)
	case VariantIndirect:
		err = writeFFEpilogue(buf[t:], base+uintptr(t), target, p.originalSize())
	}
	if err != nil {
		a.Free()
		return nil, err
	}

	writeBytes(base, buf)
	_ = vmem.FlushInstructionCache(base, uintptr(total))
	return a, nil
}

// relocatedOperand computes the new IP-relative displacement/immediate for
// a copied-verbatim instruction now living at tAddr and occupying width
// bytes: disp_target - (t + ix.length). Unlike the short branch forms
// below, these rows carry no in-range preservation exception.
func relocatedOperand(ci capturedInstruction, tAddr uintptr, width int) int32 {
	return int32(int64(ci.absTarget) - int64(tAddr) - int64(width))
}

// relocatedShortBranch computes the new displacement for a widened Jcc
// rel8/JMP rel8, preserving the original raw displacement verbatim when
// its absolute target falls inside the stolen prologue - it then still
// points at the corresponding spot in the trampoline's relocated copy.
func relocatedShortBranch(ci capturedInstruction, target uintptr, originalSize int, tAddr uintptr, width int) int32 {
	if ci.absTarget >= target && ci.absTarget < target+uintptr(originalSize) {
		return int32(ci.rawRel)
	}
	return int32(int64(ci.absTarget) - int64(tAddr) - int64(width))
}
