//go:build windows

package hook

import (
	"encoding/binary"
	"errors"
	"testing"

	"defs"
)

func TestWriteJmpE9Encoding(t *testing.T) {
	buf := make([]byte, 5)
	if err := writeJmpE9(buf, 0x1000, 0x2000); err != nil {
		t.Fatalf("writeJmpE9: %v", err)
	}
	if buf[0] != 0xE9 {
		t.Fatalf("expected opcode 0xE9, got %#x", buf[0])
	}
	disp := int32(binary.LittleEndian.Uint32(buf[1:5]))
	if disp != 0x2000-0x1000-5 {
		t.Fatalf("unexpected displacement %#x", disp)
	}
}

func TestWriteJmpE9FillsSlackWithTraps(t *testing.T) {
	buf := make([]byte, 9)
	if err := writeJmpE9(buf, 0x1000, 0x2000); err != nil {
		t.Fatalf("writeJmpE9: %v", err)
	}
	for i := 5; i < len(buf); i++ {
		if buf[i] != 0xCC {
			t.Fatalf("byte %d = %#x, want trap fill", i, buf[i])
		}
	}
}

func TestWriteJmpFFEncoding(t *testing.T) {
	buf := make([]byte, 6)
	if err := writeJmpFF(buf, 0x1000, 0x2000); err != nil {
		t.Fatalf("writeJmpFF: %v", err)
	}
	if buf[0] != 0xFF || buf[1] != 0x25 {
		t.Fatalf("expected FF 25 opcode/modrm, got %#x %#x", buf[0], buf[1])
	}
	disp := int32(binary.LittleEndian.Uint32(buf[2:6]))
	if disp != 0x2000-0x1000-6 {
		t.Fatalf("unexpected displacement %#x", disp)
	}
}

func TestEmittersRejectShortBuffers(t *testing.T) {
	if err := writeJmpE9(make([]byte, 4), 0x1000, 0x2000); !errors.Is(err, defs.New(defs.NotEnoughSpace, "")) {
		t.Fatalf("writeJmpE9 on 4 bytes = %v, want not-enough-space", err)
	}
	if err := writeJmpFF(make([]byte, 5), 0x1000, 0x2000); !errors.Is(err, defs.New(defs.NotEnoughSpace, "")) {
		t.Fatalf("writeJmpFF on 5 bytes = %v, want not-enough-space", err)
	}
}

func TestRelocatedOperandOutOfRange(t *testing.T) {
	ci := capturedInstruction{absTarget: 0x500000}
	got := relocatedOperand(ci, 0x1000, 7)
	want := int32(int64(0x500000) - int64(0x1000) - 7)
	if got != want {
		t.Fatalf("relocatedOperand = %#x, want %#x", got, want)
	}
}

func TestRelocatedShortBranchPreservesInRangeTarget(t *testing.T) {
	target := uintptr(0x400000)
	ci := capturedInstruction{absTarget: target + 2, rawRel: 2}

	// The branch lands inside the stolen prologue: the original raw
	// displacement is preserved verbatim rather than recomputed.
	got := relocatedShortBranch(ci, target, 10, target+0x100, 6)
	if got != int32(ci.rawRel) {
		t.Fatalf("in-range branch: got %#x, want raw %#x", got, ci.rawRel)
	}
}

func TestRelocatedShortBranchRecomputesOutOfRangeTarget(t *testing.T) {
	target := uintptr(0x400000)
	ci := capturedInstruction{absTarget: 0x410000, rawRel: 0xFFFF}

	tAddr := target + 0x100
	got := relocatedShortBranch(ci, target, 10, tAddr, 6)
	want := int32(int64(ci.absTarget) - int64(tAddr) - 6)
	if got != want {
		t.Fatalf("out-of-range branch: got %#x, want %#x", got, want)
	}
}

func TestEpilogueSizeByVariant(t *testing.T) {
	if got := epilogueSize(VariantIndirect); got != epilogueFFSize {
		t.Fatalf("FF epilogue size = %d, want %d", got, epilogueFFSize)
	}
	want := epilogueE9Size32
	if is64Bit {
		want = epilogueE9Size64
	}
	if got := epilogueSize(VariantNear); got != want {
		t.Fatalf("E9 epilogue size = %d, want %d", got, want)
	}
}

func TestEntryBranchSize(t *testing.T) {
	if entryBranchSize(VariantNear) != 5 {
		t.Fatal("near-branch entry form must be 5 bytes")
	}
	if entryBranchSize(VariantIndirect) != 6 {
		t.Fatal("indirect-branch entry form must be 6 bytes")
	}
}
