//go:build windows

package hook

import (
	"defs"

	"decode"
)

// Variant identifies which entry-branch form a hook's prologue was
// captured and built for.
type Variant int

const (
	VariantUnset Variant = iota
	VariantNear
	VariantIndirect
)

func entryBranchSize(v Variant) int {
	if v == VariantIndirect {
		return defs.IndirectJumpSize
	}
	return defs.NearJumpSize
}

// capturedInstruction is one instruction read out of the target's
// prologue, with enough metadata to relocate it into a trampoline.
type capturedInstruction struct {
	offset int // byte offset into prologue.bytes where this instruction starts
	length int

	ipRelative bool
	dispSize   int
	dispOffset int
	immSize    int
	immOffset  int

	condShort   bool
	uncondShort bool
	opcodeByte  byte

	rawRel    int64   // original relative displacement/immediate as decoded
	absTarget uintptr // absolute destination this instruction's relative operand resolves to
}

// prologue is the captured, decoded prefix of a hooked function.
type prologue struct {
	bytes            []byte
	instrs           []capturedInstruction
	desired          []uintptr
	trampolineBudget int // bytes the relocated prologue will occupy, widening included
}

func (p *prologue) originalSize() int { return len(p.bytes) }

// capture decodes sequential instructions at target until at least
// entryBranchSize(variant) bytes have been read, recording every
// IP-relative operand's absolute target and the byte budget the relocated
// prologue will occupy once short branches are widened. For
// VariantIndirect, any IP-relative instruction at all is a hard failure -
// the FF entry form requires a purely position-independent prologue.
func capture(target uintptr, variant Variant) (*prologue, error) {
	need := entryBranchSize(variant)
	p := &prologue{desired: []uintptr{target}}

	offset := 0
	for offset < need {
		if offset >= defs.MaxOriginalBytes {
			return nil, defs.New(defs.UnsupportedInstruction, "prologue exceeds saved-bytes buffer")
		}

		chunk := readBytes(target+uintptr(offset), 16)
		inst, err := decode.Decode(chunk, nativeMode)
		if err != nil {
			return nil, defs.New(defs.FailedDecodeInstruction, err.Error())
		}

		ci := capturedInstruction{offset: offset, length: inst.Length, opcodeByte: inst.OpcodeByte}

		if inst.IPRelative {
			if variant == VariantIndirect {
				return nil, defs.New(defs.IPRelativeOutOfRange, "ff-variant prologue must be position independent")
			}
			ci.ipRelative = true
			ipOfNext := target + uintptr(offset) + uintptr(inst.Length)

			switch {
			case inst.CondShortBranch:
				ci.condShort = true
				ci.rawRel = inst.ImmValue
				ci.absTarget = uintptr(int64(ipOfNext) + inst.ImmValue)
				p.trampolineBudget += inst.Length + defs.ShortJccWiden
			case inst.UncondShortBranch:
				ci.uncondShort = true
				ci.rawRel = inst.ImmValue
				ci.absTarget = uintptr(int64(ipOfNext) + inst.ImmValue)
				p.trampolineBudget += inst.Length + defs.ShortJmpWiden
			case inst.DispSize == 4:
				ci.dispSize = inst.DispSize
				ci.dispOffset = inst.DispOffset
				ci.rawRel = inst.DispValue
				ci.absTarget = uintptr(int64(ipOfNext) + inst.DispValue)
				p.trampolineBudget += inst.Length
			case inst.ImmSize == 4:
				ci.immSize = inst.ImmSize
				ci.immOffset = inst.ImmOffset
				ci.rawRel = inst.ImmValue
				ci.absTarget = uintptr(int64(ipOfNext) + inst.ImmValue)
				p.trampolineBudget += inst.Length
			default:
				return nil, defs.New(defs.UnsupportedInstruction, "ip-relative operand outside handled set")
			}
			p.desired = append(p.desired, ci.absTarget)
		} else {
			p.trampolineBudget += inst.Length
		}

		p.bytes = append(p.bytes, chunk[:inst.Length]...)
		p.instrs = append(p.instrs, ci)
		offset += inst.Length
	}

	return p, nil
}
