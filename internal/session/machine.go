// Package session implements the idle-session countdown: a machine walks
// Active → Warning → Expired per idle period and fires a logout hook exactly
// once on expiry. Transitions are computed from an injected clock so the
// machine can be driven by a real ticker in production and by hand in tests.
package session

import (
	"sync"
	"time"
)

// Phase is the countdown state.
type Phase string

const (
	PhaseActive  Phase = "active"
	PhaseWarning Phase = "warning"
	PhaseExpired Phase = "expired"
)

// Machine tracks one authenticated session's idle countdown.
type Machine struct {
	mu       sync.Mutex
	timeout  time.Duration
	warning  time.Duration
	onExpire func()

	phase     Phase
	expiresAt time.Time
	fired     bool
}

// NewMachine starts a machine in the Active phase. onExpire may be nil.
func NewMachine(timeout, warning time.Duration, now time.Time, onExpire func()) *Machine {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	if warning <= 0 || warning >= timeout {
		warning = 2 * time.Minute
	}
	return &Machine{
		timeout:   timeout,
		warning:   warning,
		onExpire:  onExpire,
		phase:     PhaseActive,
		expiresAt: now.Add(timeout),
	}
}

// Touch registers a qualifying input event (pointer, key, scroll, touch).
// It extends the session only in the Active phase; once the warning is up
// the user must explicitly acknowledge it.
func (m *Machine) Touch(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseActive {
		return
	}
	m.expiresAt = now.Add(m.timeout)
}

// Acknowledge is the explicit "stay logged in" action. It resets the
// countdown from the Warning phase; in any other phase it is a no-op.
func (m *Machine) Acknowledge(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseWarning {
		return
	}
	m.phase = PhaseActive
	m.expiresAt = now.Add(m.timeout)
}

// Advance recomputes the phase for the given instant and returns it. The
// expiry hook fires at most once, on the Warning → Expired transition.
func (m *Machine) Advance(now time.Time) Phase {
	m.mu.Lock()
	fire := false
	switch m.phase {
	case PhaseActive:
		if !now.Before(m.expiresAt) {
			// Slept past both thresholds.
			m.phase = PhaseExpired
			fire = !m.fired
			m.fired = true
		} else if !now.Before(m.expiresAt.Add(-m.warning)) {
			m.phase = PhaseWarning
		}
	case PhaseWarning:
		if !now.Before(m.expiresAt) {
			m.phase = PhaseExpired
			fire = !m.fired
			m.fired = true
		}
	}
	phase, hook := m.phase, m.onExpire
	m.mu.Unlock()

	if fire && hook != nil {
		hook()
	}
	return phase
}

// Phase returns the current phase without advancing time.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Remaining returns the time left before expiry, floored at zero.
func (m *Machine) Remaining(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	left := m.expiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
