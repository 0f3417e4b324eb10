//go:build windows

package hook

import (
	"defs"
	"util"
)

// writeJmpE9 lays down a 5-byte near jump into dst (which will live at
// address src) targeting dest. Any slack beyond the jump is filled with
// trap bytes. A buffer smaller than the branch form is NotEnoughSpace.
func writeJmpE9(dst []byte, src, dest uintptr) error {
	if len(dst) < defs.NearJumpSize {
		return defs.New(defs.NotEnoughSpace, "e9 emitter")
	}
	for i := defs.NearJumpSize; i < len(dst); i++ {
		dst[i] = defs.TrapByte
	}
	dst[0] = defs.OpNearJump
	util.Writen(dst, 4, 1, int64(dest)-int64(src)-defs.NearJumpSize)
	return nil
}

// writeJmpFF lays down a 6-byte RIP-relative indirect jump into dst (mapped
// at address src) whose pointer cell lives at dataAddr; the caller stores
// the actual destination at dataAddr. Slack is trap-filled as above.
func writeJmpFF(dst []byte, src, dataAddr uintptr) error {
	if len(dst) < defs.IndirectJumpSize {
		return defs.New(defs.NotEnoughSpace, "ff emitter")
	}
	for i := defs.IndirectJumpSize; i < len(dst); i++ {
		dst[i] = defs.TrapByte
	}
	dst[0] = defs.OpIndirectJump
	dst[1] = defs.OpIndirectModRM
	util.Writen(dst, 4, 2, int64(dataAddr)-int64(src)-defs.IndirectJumpSize)
	return nil
}

const (
	epilogueE9Size64 = defs.NearJumpSize + defs.IndirectJumpSize + 8
	epilogueE9Size32 = defs.NearJumpSize + defs.NearJumpSize
	epilogueFFSize   = defs.IndirectJumpSize + 8
)

func epilogueSize(variant Variant) int {
	switch variant {
	case VariantIndirect:
		return epilogueFFSize
	default:
		if is64Bit {
			return epilogueE9Size64
		}
		return epilogueE9Size32
	}
}

// writeE9Epilogue lays out the E9-variant trampoline epilogue at buf,
// mapped at base address tAddr: a jump back into the original function
// followed by a jump to destination - indirect through a trailing literal
// on 64-bit, a plain near jump on 32-bit.
func writeE9Epilogue(buf []byte, tAddr, target uintptr, originalSize int, destination uintptr) error {
	jmpToOriginal := tAddr
	if err := writeJmpE9(buf[0:defs.NearJumpSize], jmpToOriginal, target+uintptr(originalSize)); err != nil {
		return err
	}

	jmpToDestination := tAddr + defs.NearJumpSize
	if !is64Bit {
		return writeJmpE9(buf[defs.NearJumpSize:defs.NearJumpSize+defs.NearJumpSize], jmpToDestination, destination)
	}

	dataAddr := tAddr + uintptr(defs.NearJumpSize+defs.IndirectJumpSize)
	if err := writeJmpFF(buf[defs.NearJumpSize:defs.NearJumpSize+defs.IndirectJumpSize], jmpToDestination, dataAddr); err != nil {
		return err
	}
	util.Writen(buf, 8, defs.NearJumpSize+defs.IndirectJumpSize, int64(destination))
	return nil
}

// writeFFEpilogue lays out the FF-variant trampoline epilogue: a single
// indirect jump back to the original function via its trailing literal.
func writeFFEpilogue(buf []byte, tAddr, target uintptr, originalSize int) error {
	jmpToOriginal := tAddr
	dataAddr := tAddr + uintptr(defs.IndirectJumpSize)
	if err := writeJmpFF(buf[0:defs.IndirectJumpSize], jmpToOriginal, dataAddr); err != nil {
		return err
	}
	util.Writen(buf, 8, defs.IndirectJumpSize, int64(target+uintptr(originalSize)))
	return nil
}
