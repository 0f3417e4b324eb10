// Package defs holds the small typed constants and the error taxonomy
// shared by every other package in the hooking engine: binary opcode
// constants, alignment/size budgets, and the stable error Kind.
package defs

// Version identifies the engine's on-disk/ABI revision. Bump it when the
// trampoline layout or error taxonomy changes in an incompatible way.
const Version = "1.0.0"

// Branch opcode and fill-byte constants.
const (
	OpNearJump      byte = 0xE9 // JMP rel32
	OpIndirectJump  byte = 0xFF // FF /4, used with a ModRM of 0x25 for [rip+disp32]
	OpIndirectModRM byte = 0x25
	OpCondJcc       byte = 0x0F // long-form Jcc is 0F 80+cc
	OpShortJccBase  byte = 0x70 // Jcc rel8 opcodes are 0x70-0x7F
	OpShortJmp      byte = 0xEB // JMP rel8
	TrapByte        byte = 0xCC // fill byte for fresh regions and FF-variant padding
)

// Size and alignment budgets.
const (
	// BlockAlign is the alignment, in bytes, of every sub-allocated block.
	BlockAlign = 16
	// MaxOriginalBytes bounds the saved-prologue buffer.
	MaxOriginalBytes = 64
	// NearJumpSize is the length, in bytes, of the E9 entry-branch form.
	NearJumpSize = 5
	// IndirectJumpSize is the length, in bytes, of the FF entry-branch form.
	IndirectJumpSize = 6
	// DefaultMaxDistance is the default proximity window: signed 32-bit max.
	DefaultMaxDistance = 0x7FFFFFFF
	// ShortJccWiden is the number of extra trampoline bytes a short
	// conditional branch costs once widened to Jcc rel32 (6 - 2).
	ShortJccWiden = 4
	// ShortJmpWiden is the number of extra trampoline bytes a short
	// unconditional branch costs once widened to JMP rel32 (5 - 2).
	ShortJmpWiden = 3
)

// Kind is the stable identity of every failure this engine can report.
// It is intentionally a flat enumeration of eight kinds. Hook creation,
// enable/disable, allocation and the vmem wrappers report failures with one
// of them; decode.Decode returns the x86asm error unwrapped, and
// vmem.FlushInstructionCache can return the raw system error of its call.
type Kind int

const (
	_ Kind = iota
	// Allocate is raised when a VM allocation syscall fails, or a nil
	// allocator is passed to Create.
	Allocate
	// Protect is raised when a page-protection change fails.
	Protect
	// Query is raised when a region query fails.
	Query
	// BadAllocation is raised when the near-memory allocator can't satisfy
	// a trampoline request.
	BadAllocation
	// FailedDecodeInstruction is raised when the decoder rejects the bytes
	// at the target address.
	FailedDecodeInstruction
	// UnsupportedInstruction is raised when the prologue contains an
	// IP-relative form outside the handled set.
	UnsupportedInstruction
	// NotEnoughSpace is raised when a buffer supplied to an emitter is
	// smaller than the branch form it must hold.
	NotEnoughSpace
	// IPRelativeOutOfRange is raised when an FF-variant prologue contains
	// any IP-relative instruction at all.
	IPRelativeOutOfRange
)

var kindNames = map[Kind]string{
	Allocate:                "allocate",
	Protect:                 "protect",
	Query:                   "query",
	BadAllocation:           "bad allocation",
	FailedDecodeInstruction: "failed to decode instruction",
	UnsupportedInstruction:  "unsupported instruction",
	NotEnoughSpace:          "not enough space",
	IPRelativeOutOfRange:    "ip-relative instruction out of range",
}

// String renders the kind's stable name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown error kind"
}

// Error is a Kind paired with free-form context. It implements the error
// interface and carries every failure that has a Kind (see Kind for the
// calls that return other errors).
type Error struct {
	Kind    Kind
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Context
}

// Is makes errors.Is match two *Error values by Kind alone, ignoring
// Context, so errors.Is(err, New(SomeKind, "")) tests for a kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind with formatted context.
func New(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}
