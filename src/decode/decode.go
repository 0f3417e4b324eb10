// Package decode adapts golang.org/x/arch/x86/x86asm into the narrow set
// of fields the hook builder needs: length, IP-relative
// displacement/immediate metadata, short-branch classification, and the
// primary opcode byte.
package decode

import (
	"golang.org/x/arch/x86/x86asm"
)

// Mode selects the processor mode the decoder assumes, mirroring
// x86asm.Decode's mode parameter (16, 32, or 64).
type Mode int

const (
	Mode16 Mode = 16
	Mode32 Mode = 32
	Mode64 Mode = 64
)

// Instruction is the subset of a decoded instruction's shape that the hook
// builder relocates or widens. Everything else about the instruction is
// opaque on purpose - the builder never needs to know the mnemonic.
type Instruction struct {
	Length int

	// IPRelative is true when the instruction carries any operand encoded
	// relative to the address of the following instruction.
	IPRelative bool

	// DispSize/DispValue/DispOffset describe an IP-relative memory operand
	// (e.g. LEA RAX, [RIP+disp32]). DispSize is 0 when absent.
	DispSize   int
	DispValue  int64
	DispOffset int

	// ImmSize/ImmValue/ImmOffset describe an IP-relative branch displacement
	// (CALL/JMP/Jcc rel8/rel16/rel32), which x86asm decodes as a distinct
	// Rel operand rather than folding it into Disp. ImmSize is 0 when
	// absent.
	ImmSize   int
	ImmValue  int64
	ImmOffset int

	// CondShortBranch is true for a two-byte Jcc rel8.
	CondShortBranch bool
	// UncondShortBranch is true for a two-byte JMP rel8 (opcode 0xEB).
	UncondShortBranch bool

	// OpcodeByte is the primary opcode byte, left-aligned in x86asm's
	// Opcode field.
	OpcodeByte byte

	raw x86asm.Inst
}

// String renders the underlying instruction for diagnostics.
func (ins Instruction) String() string {
	return ins.raw.String()
}

// condJccOps is the 0x70-0x7F Jcc rel8 family. JCXZ/JECXZ/JRCXZ and the
// LOOP forms are deliberately absent: they have no rel32 encoding to widen
// into, so a prologue containing one must fail as unsupported instead.
var condJccOps = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JE: true, x86asm.JG: true,
	x86asm.JGE: true, x86asm.JL: true, x86asm.JLE: true, x86asm.JNE: true,
	x86asm.JNO: true, x86asm.JNP: true, x86asm.JNS: true, x86asm.JO: true,
	x86asm.JP: true, x86asm.JS: true,
}

// Decode decodes a single instruction at the start of code, assuming the
// given processor mode. It never reads past the bytes x86asm itself
// consumes.
func Decode(code []byte, mode Mode) (Instruction, error) {
	inst, err := x86asm.Decode(code, int(mode))
	if err != nil {
		return Instruction{}, err
	}

	out := Instruction{
		Length:     inst.Len,
		OpcodeByte: byte(inst.Opcode >> 24),
		raw:        inst,
	}

	if inst.PCRel != 0 {
		for _, arg := range inst.Args {
			if arg == nil {
				break
			}
			switch v := arg.(type) {
			case x86asm.Mem:
				if v.Base == x86asm.RIP {
					out.IPRelative = true
					out.DispSize = inst.PCRel
					out.DispValue = v.Disp
					out.DispOffset = inst.PCRelOff
				}
			case x86asm.Rel:
				out.IPRelative = true
				out.ImmSize = inst.PCRel
				out.ImmValue = int64(v)
				out.ImmOffset = inst.PCRelOff
			}
		}

		switch {
		case inst.Op == x86asm.JMP && inst.PCRel == 1:
			out.UncondShortBranch = true
		case condJccOps[inst.Op] && inst.PCRel == 1:
			out.CondShortBranch = true
		}
	}

	return out, nil
}
