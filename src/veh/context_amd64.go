//go:build windows && amd64

package veh

// rawContext mirrors the head of the Windows x64 CONTEXT structure up to and
// including Rip. golang.org/x/sys/windows does not export CONTEXT (it is a
// kernel-debugging structure outside that package's normal syscall-wrapper
// scope), so - the same way this module's vmem package hand-defines
// systemInfo - the fields are laid out by hand from the documented winnt.h
// offsets. Only Rip is ever read or written; everything past it is opaque
// padding sized to the real structure's total length (1232 bytes) so a
// future field added here can't accidentally alias the FP/vector state.
type rawContext struct {
	p1Home, p2Home, p3Home uint64
	p4Home, p5Home, p6Home uint64

	contextFlags uint32
	mxCsr        uint32

	segCs, segDs, segEs uint16
	segFs, segGs, segSs uint16
	eFlags              uint32

	dr0, dr1, dr2, dr3 uint64
	dr6, dr7           uint64

	rax, rcx, rdx, rbx uint64
	rsp, rbp, rsi, rdi uint64
	r8, r9, r10, r11   uint64
	r12, r13, r14, r15 uint64

	rip uint64

	_ [976]byte // FltSave/VectorRegister/LastBranch* - never accessed
}

func (c *rawContext) ip() uintptr {
	return uintptr(c.rip)
}

func (c *rawContext) setIP(v uintptr) {
	c.rip = uint64(v)
}
