// Package accnt accumulates per-hook accounting information: how long a
// hook has spent enabled and how many times it has flipped state. It plays
// the same role the original kernel's Accnt_t played for process CPU time -
// an embedded-mutex counter block that a caller can snapshot consistently -
// applied here to a hook's enable/disable lifecycle instead of user/system
// CPU time.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates enable/disable counts and cumulative enabled time for
// a single hook.
type Stats struct {
	enableCount  int64
	disableCount int64
	enabledNanos int64

	mu        sync.Mutex
	enabledAt int64
	isEnabled bool
}

// now returns the current time in nanoseconds since the Unix epoch.
func now() int64 {
	return time.Now().UnixNano()
}

// MarkEnabled records a transition into the enabled state.
func (s *Stats) MarkEnabled() {
	atomic.AddInt64(&s.enableCount, 1)
	s.mu.Lock()
	s.enabledAt = now()
	s.isEnabled = true
	s.mu.Unlock()
}

// MarkDisabled records a transition out of the enabled state, folding the
// elapsed enabled duration into the cumulative total.
func (s *Stats) MarkDisabled() {
	atomic.AddInt64(&s.disableCount, 1)
	s.mu.Lock()
	if s.isEnabled {
		atomic.AddInt64(&s.enabledNanos, now()-s.enabledAt)
		s.isEnabled = false
	}
	s.mu.Unlock()
}

// Snapshot is a consistent, point-in-time copy of a Stats counter block.
type Snapshot struct {
	EnableCount  int64
	DisableCount int64
	EnabledNanos int64
}

// Fetch returns a consistent snapshot, folding in time accrued by a
// currently-enabled hook up to the moment of the call.
func (s *Stats) Fetch() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	enabledNanos := atomic.LoadInt64(&s.enabledNanos)
	if s.isEnabled {
		enabledNanos += now() - s.enabledAt
	}
	return Snapshot{
		EnableCount:  atomic.LoadInt64(&s.enableCount),
		DisableCount: atomic.LoadInt64(&s.disableCount),
		EnabledNanos: enabledNanos,
	}
}
