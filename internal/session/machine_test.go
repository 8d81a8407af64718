package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 15 * time.Minute
	testWarning = 2 * time.Minute
)

var t0 = time.Date(2025, time.October, 15, 9, 0, 0, 0, time.UTC)

func TestMachineStartsActive(t *testing.T) {
	m := NewMachine(testTimeout, testWarning, t0, nil)
	assert.Equal(t, PhaseActive, m.Phase())
	assert.Equal(t, testTimeout, m.Remaining(t0))
}

func TestTouchResetsWhileActive(t *testing.T) {
	m := NewMachine(testTimeout, testWarning, t0, nil)

	later := t0.Add(10 * time.Minute)
	m.Touch(later)
	assert.Equal(t, PhaseActive, m.Advance(later))
	assert.Equal(t, testTimeout, m.Remaining(later))
}

func TestWarningEnteredAtThreshold(t *testing.T) {
	m := NewMachine(testTimeout, testWarning, t0, nil)

	beforeWarning := t0.Add(testTimeout - testWarning - time.Second)
	assert.Equal(t, PhaseActive, m.Advance(beforeWarning))

	atWarning := t0.Add(testTimeout - testWarning)
	assert.Equal(t, PhaseWarning, m.Advance(atWarning))
}

func TestInputIgnoredDuringWarning(t *testing.T) {
	m := NewMachine(testTimeout, testWarning, t0, nil)

	// Drive into Warning with 90 seconds remaining.
	now := t0.Add(testTimeout - 90*time.Second)
	require.Equal(t, PhaseWarning, m.Advance(now))
	require.Equal(t, 90*time.Second, m.Remaining(now))

	// A mouse-move must not extend the countdown.
	m.Touch(now)
	assert.Equal(t, PhaseWarning, m.Phase())
	assert.LessOrEqual(t, m.Remaining(now), 90*time.Second)
}

func TestAcknowledgeResetsFromWarning(t *testing.T) {
	m := NewMachine(testTimeout, testWarning, t0, nil)

	now := t0.Add(testTimeout - time.Minute)
	require.Equal(t, PhaseWarning, m.Advance(now))

	m.Acknowledge(now)
	assert.Equal(t, PhaseActive, m.Phase())
	assert.Equal(t, testTimeout, m.Remaining(now))
}

func TestExpiryFiresHookExactlyOnce(t *testing.T) {
	fired := 0
	m := NewMachine(testTimeout, testWarning, t0, func() { fired++ })

	now := t0.Add(testTimeout - time.Minute)
	require.Equal(t, PhaseWarning, m.Advance(now))

	expiry := t0.Add(testTimeout)
	assert.Equal(t, PhaseExpired, m.Advance(expiry))
	assert.Equal(t, PhaseExpired, m.Advance(expiry.Add(time.Minute)))
	assert.Equal(t, 1, fired)
	assert.Zero(t, m.Remaining(expiry.Add(time.Hour)))
}

func TestExpiredMachineIgnoresInput(t *testing.T) {
	m := NewMachine(testTimeout, testWarning, t0, nil)
	expiry := t0.Add(testTimeout)
	require.Equal(t, PhaseExpired, m.Advance(expiry))

	m.Touch(expiry)
	m.Acknowledge(expiry)
	assert.Equal(t, PhaseExpired, m.Phase())
}

func TestSleepPastBothThresholds(t *testing.T) {
	fired := 0
	m := NewMachine(testTimeout, testWarning, t0, func() { fired++ })

	// First observation is already past expiry: Active jumps straight to
	// Expired, still firing the hook once.
	assert.Equal(t, PhaseExpired, m.Advance(t0.Add(time.Hour)))
	assert.Equal(t, 1, fired)
}

func TestManagerLifecycle(t *testing.T) {
	var expired []string
	mgr := NewManager(testTimeout, testWarning, func(id string) { expired = append(expired, id) })

	now := t0
	mgr.now = func() time.Time { return now }

	mgr.Start("sess-1")
	mgr.Start("sess-2")

	phase, remaining, ok := mgr.State("sess-1")
	require.True(t, ok)
	assert.Equal(t, PhaseActive, phase)
	assert.Equal(t, testTimeout, remaining)

	// sess-1 stays busy, sess-2 idles out.
	now = t0.Add(14 * time.Minute)
	mgr.Touch("sess-1")
	mgr.sweep()

	phase, _, ok = mgr.State("sess-2")
	require.True(t, ok)
	assert.Equal(t, PhaseWarning, phase)

	now = t0.Add(16 * time.Minute)
	mgr.sweep()

	_, _, ok = mgr.State("sess-2")
	assert.False(t, ok, "expired session is torn down")
	assert.Equal(t, []string{"sess-2"}, expired)

	phase, _, ok = mgr.State("sess-1")
	require.True(t, ok)
	assert.Equal(t, PhaseActive, phase)

	mgr.End("sess-1")
	_, _, ok = mgr.State("sess-1")
	assert.False(t, ok)
}

func TestManagerAcknowledge(t *testing.T) {
	mgr := NewManager(testTimeout, testWarning, nil)
	now := t0
	mgr.now = func() time.Time { return now }

	mgr.Start("sess")
	now = t0.Add(14 * time.Minute)
	phase, _, _ := mgr.State("sess")
	require.Equal(t, PhaseWarning, phase)

	mgr.Acknowledge("sess")
	phase, remaining, _ := mgr.State("sess")
	assert.Equal(t, PhaseActive, phase)
	assert.Equal(t, testTimeout, remaining)
}
