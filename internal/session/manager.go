package session

import (
	"context"
	"sync"
	"time"
)

// Manager owns one countdown machine per authenticated session and drives
// them all from a single cancellable ticker. Machines are created on login
// and removed on logout or expiry, so no timer outlives its session.
type Manager struct {
	mu       sync.Mutex
	machines map[string]*Machine

	timeout  time.Duration
	warning  time.Duration
	now      func() time.Time
	onExpire func(sessionID string)
}

// NewManager creates a manager. onExpire is invoked (outside the lock) when
// a session runs out; the manager removes the machine before calling it.
func NewManager(timeout, warning time.Duration, onExpire func(sessionID string)) *Manager {
	return &Manager{
		machines: make(map[string]*Machine),
		timeout:  timeout,
		warning:  warning,
		now:      time.Now,
		onExpire: onExpire,
	}
}

// Start creates (or restarts) the machine for a session id.
func (mgr *Manager) Start(sessionID string) {
	now := mgr.now()
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	expire := func() {}
	if mgr.onExpire != nil {
		hook := mgr.onExpire
		expire = func() { hook(sessionID) }
	}
	mgr.machines[sessionID] = NewMachine(mgr.timeout, mgr.warning, now, expire)
}

// Touch forwards a qualifying input event to the session's machine.
func (mgr *Manager) Touch(sessionID string) {
	if m := mgr.get(sessionID); m != nil {
		m.Touch(mgr.now())
	}
}

// Acknowledge forwards the explicit stay-logged-in action.
func (mgr *Manager) Acknowledge(sessionID string) {
	if m := mgr.get(sessionID); m != nil {
		m.Acknowledge(mgr.now())
	}
}

// State reports a session's phase and remaining time. ok is false when the
// session has no machine (never started, or already torn down).
func (mgr *Manager) State(sessionID string) (phase Phase, remaining time.Duration, ok bool) {
	m := mgr.get(sessionID)
	if m == nil {
		return "", 0, false
	}
	now := mgr.now()
	return m.Advance(now), m.Remaining(now), true
}

// End tears down a session's machine (logout).
func (mgr *Manager) End(sessionID string) {
	mgr.mu.Lock()
	delete(mgr.machines, sessionID)
	mgr.mu.Unlock()
}

// Run drives all machines with a 1-second tick until ctx is cancelled.
// Machines that expire during a sweep are removed after their hook fires.
func (mgr *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mgr.sweep()
		}
	}
}

func (mgr *Manager) sweep() {
	now := mgr.now()

	mgr.mu.Lock()
	current := make(map[string]*Machine, len(mgr.machines))
	for id, m := range mgr.machines {
		current[id] = m
	}
	mgr.mu.Unlock()

	for id, m := range current {
		if m.Advance(now) == PhaseExpired {
			mgr.End(id)
		}
	}
}

func (mgr *Manager) get(sessionID string) *Machine {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.machines[sessionID]
}
