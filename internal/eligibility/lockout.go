package eligibility

import (
	"sync"
	"time"
)

// Lockout is a process-local brute-force throttle keyed by (client address,
// email). State is best-effort and lost on restart; its purpose is slowing
// guessing, not hard security.
type Lockout struct {
	mu        sync.Mutex
	entries   map[string]*lockoutEntry
	threshold int
	window    time.Duration
	now       func() time.Time
}

type lockoutEntry struct {
	failures    int
	lockedUntil time.Time
}

// NewLockout builds a Lockout table. threshold is the number of consecutive
// failures that triggers a lock lasting window.
func NewLockout(threshold int, window time.Duration) *Lockout {
	return &Lockout{
		entries:   make(map[string]*lockoutEntry),
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

func lockoutKey(addr, email string) string {
	return addr + "|" + email
}

// Locked reports whether the pair is currently locked. Expired locks are
// evicted lazily.
func (l *Lockout) Locked(addr, email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := lockoutKey(addr, email)
	entry, ok := l.entries[key]
	if !ok {
		return false
	}
	if entry.lockedUntil.IsZero() {
		return false
	}
	if l.now().After(entry.lockedUntil) {
		delete(l.entries, key)
		return false
	}
	return true
}

// Fail records a failed match. Reaching the threshold locks the pair for the
// window and resets the counter.
func (l *Lockout) Fail(addr, email string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := lockoutKey(addr, email)
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockoutEntry{}
		l.entries[key] = entry
	}
	entry.failures++
	if entry.failures >= l.threshold {
		entry.lockedUntil = l.now().Add(l.window)
		entry.failures = 0
	}
}

// Clear removes all throttle state for the pair after a successful login.
func (l *Lockout) Clear(addr, email string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, lockoutKey(addr, email))
}
