//go:build windows && 386

package veh

// rawContext mirrors the head of the Windows x86 CONTEXT structure up to
// and including Eip. See context_amd64.go for why this is hand-laid-out
// rather than imported.
type rawContext struct {
	contextFlags uint32
	dr0, dr1     uint32
	dr2, dr3     uint32
	dr6, dr7     uint32

	_ [112]byte // FLOATING_SAVE_AREA - never accessed

	segGs, segFs uint32
	segEs, segDs uint32
	edi, esi     uint32
	ebx, edx     uint32
	ecx, eax     uint32
	ebp          uint32
	eip          uint32

	_ [528]byte // SegCs..ExtendedRegisters - never accessed
}

func (c *rawContext) ip() uintptr {
	return uintptr(c.eip)
}

func (c *rawContext) setIP(v uintptr) {
	c.eip = uint32(v)
}
