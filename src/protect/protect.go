// Package protect implements a scoped page-protection guard: acquire new
// protection on construction, restore the previous protection on scope
// exit, expressed with Go's construct-then-deferred-Close idiom.
package protect

import "vmem"

// Scoped changes [address, address+length) to newAccess for its lifetime and
// restores the previous access when Close is called. The zero value is
// unusable; a live Scoped is always held through a pointer and a deferred
// Close, never passed by value.
type Scoped struct {
	address uintptr
	length  uintptr
	ok      bool
	prev    vmem.Access
	err     error
}

// New acquires newAccess over [address, address+length). The returned guard
// must have Close called on it, typically via defer. If
// acquisition failed, Err reports why and Close is a no-op.
func New(address uintptr, length uintptr, newAccess vmem.Access) *Scoped {
	s := &Scoped{address: address, length: length}
	prev, err := vmem.Protect(address, length, newAccess)
	if err != nil {
		s.err = err
		return s
	}
	s.ok = true
	s.prev = prev
	return s
}

// Err reports whether the protection change on construction failed.
func (s *Scoped) Err() error {
	return s.err
}

// Close restores the previous protection if construction succeeded. It is
// safe to call multiple times.
func (s *Scoped) Close() error {
	if !s.ok {
		return nil
	}
	s.ok = false
	_, err := vmem.Protect(s.address, s.length, s.prev)
	return err
}
