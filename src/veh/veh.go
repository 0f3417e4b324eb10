//go:build windows

// Package veh is a process-wide vectored exception handler registrar: one
// native handler, installed once with first priority, dispatching to a
// registry of per-hook callbacks keyed by address range. The hook
// installer relies on it to catch threads preempted mid-patch.
package veh

import (
	"sync"

	"golang.org/x/sys/windows"
)

// Verdict is what a callback (or the handler itself) decides once it has
// looked at the faulting instruction pointer.
type Verdict int32

const (
	// ContinueSearch passes the exception to the next handler in the
	// chain (structured handlers, then the default unhandled-exception
	// path).
	ContinueSearch Verdict = 0
	// ContinueExecution resumes the faulting thread at its (possibly
	// rewound) instruction pointer.
	ContinueExecution Verdict = -1
)

// exception codes the dispatcher cares about.
const (
	codeCppException    = 0xE06D7363
	codeAccessViolation = 0xC0000005
	codeBreakpoint      = 0x80000003
	codeSingleStep      = 0x80000004
	codeGuardPage       = 0x80000001
)

// exceptionRecord mirrors the head of EXCEPTION_RECORD: the fields this
// package reads. golang.org/x/sys/windows does not export it.
type exceptionRecord struct {
	exceptionCode    uint32
	exceptionFlags   uint32
	exceptionRecord  uintptr
	exceptionAddress uintptr
	numberParameters uint32
	_                [15]uintptr
}

// exceptionPointers mirrors EXCEPTION_POINTERS, the single argument a
// vectored handler receives.
type exceptionPointers struct {
	exceptionRecord *exceptionRecord
	contextRecord   *rawContext
}

// Context is the opaque, architecture-neutral view of the faulting thread's
// register state a Callback receives, exposing exactly the one register the
// safe-activation protocol needs to rewind.
type Context struct {
	raw *rawContext
}

// IP returns the faulting instruction pointer (Rip on x86-64, Eip on
// x86-32).
func (c *Context) IP() uintptr { return c.raw.ip() }

// SetIP rewinds the instruction pointer, used when a thread is observed
// executing inside a not-yet-completed patch.
func (c *Context) SetIP(v uintptr) { c.raw.setIP(v) }

// Callback handles an exception whose faulting IP fell within a registered
// range.
type Callback func(ctx *Context) Verdict

type entry struct {
	start, end uintptr
	callback   Callback
}

// Manager is the process-wide VEH registrar. Use Get to obtain the
// singleton; there is exactly one native handler installed per process.
type Manager struct {
	mu      sync.Mutex
	entries []entry
	handle  uintptr
}

var (
	once     sync.Once
	instance *Manager
)

// Get returns the process-wide Manager, installing the native vectored
// exception handler with first priority on first use.
func Get() *Manager {
	once.Do(func() {
		instance = &Manager{}
		instance.install()
	})
	return instance
}

// Register appends an entry covering [start, end]. Overlap with existing
// entries is not checked; where ranges overlap, the first match in
// registration order wins during dispatch.
func (m *Manager) Register(start, end uintptr, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{start: start, end: end, callback: cb})
}

// Unregister removes the entry whose start address matches, if any.
func (m *Manager) Unregister(start uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.start == start {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

func (m *Manager) dispatch(info *exceptionPointers) uintptr {
	code := info.exceptionRecord.exceptionCode
	if code == codeCppException {
		return uintptr(ContinueSearch)
	}
	switch code {
	case codeAccessViolation, codeBreakpoint, codeSingleStep, codeGuardPage:
	default:
		return uintptr(ContinueSearch)
	}

	ctx := &Context{raw: info.contextRecord}
	ip := ctx.IP()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if ip >= e.start && ip <= e.end {
			return uintptr(e.callback(ctx))
		}
	}
	return uintptr(ContinueSearch)
}

var (
	modkernel32                        = windows.NewLazySystemDLL("kernel32.dll")
	procAddVectoredExceptionHandler    = modkernel32.NewProc("AddVectoredExceptionHandler")
	procRemoveVectoredExceptionHandler = modkernel32.NewProc("RemoveVectoredExceptionHandler")
)

func (m *Manager) install() {
	cb := windows.NewCallback(func(info *exceptionPointers) uintptr {
		return instance.dispatch(info)
	})
	h, _, _ := procAddVectoredExceptionHandler.Call(1, cb)
	m.handle = h
}

// teardown removes the native handler. It exists for tests; production
// processes let the handler live until process exit.
func (m *Manager) teardown() {
	if m.handle != 0 {
		procRemoveVectoredExceptionHandler.Call(m.handle)
		m.handle = 0
	}
}
