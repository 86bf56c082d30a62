package draft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newGuardWithClock(cooldown time.Duration, sessionCap int) (*Guard, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}

	return NewGuard(cooldown, sessionCap).WithClock(clock.Now), clock
}

func TestGuardAllowsFirstSubmit(t *testing.T) {
	guard, _ := newGuardWithClock(0, 0)

	assert.True(t, guard.CanSubmit())
	assert.Zero(t, guard.RemainingCooldown())
}

func TestGuardBlocksWhileSubmitting(t *testing.T) {
	guard, _ := newGuardWithClock(0, 0)

	guard.RecordAttempt()
	assert.False(t, guard.CanSubmit())

	guard.RecordSuccess()

	// Still inside the cooldown window even though the in-flight lock is
	// released.
	assert.False(t, guard.CanSubmit())
}

func TestGuardCooldownElapses(t *testing.T) {
	guard, clock := newGuardWithClock(time.Minute, 0)

	guard.RecordAttempt()
	guard.RecordSuccess()

	clock.Advance(30 * time.Second)
	assert.False(t, guard.CanSubmit())
	assert.Equal(t, 30*time.Second, guard.RemainingCooldown())

	clock.Advance(30 * time.Second)
	assert.True(t, guard.CanSubmit())
	assert.Zero(t, guard.RemainingCooldown())
}

func TestGuardSessionCap(t *testing.T) {
	guard, clock := newGuardWithClock(time.Minute, 3)

	for range 3 {
		assert.True(t, guard.CanSubmit())
		guard.RecordAttempt()
		guard.RecordFailure()
		clock.Advance(2 * time.Minute)
	}

	assert.Equal(t, 3, guard.SubmissionCount())
	assert.False(t, guard.CanSubmit(), "cap must hold even after the cooldown elapsed")
}

func TestGuardRelaxRefundsCapSlot(t *testing.T) {
	guard, clock := newGuardWithClock(time.Minute, 1)

	guard.RecordAttempt()
	guard.RecordFailureRelax()

	assert.Zero(t, guard.SubmissionCount())

	clock.Advance(2 * time.Minute)
	assert.True(t, guard.CanSubmit(), "a refunded attempt must not consume the cap")
}

func TestGuardRelaxNeverGoesNegative(t *testing.T) {
	guard, _ := newGuardWithClock(0, 0)

	guard.RecordFailureRelax()

	assert.Zero(t, guard.SubmissionCount())
}

func TestGuardDefaults(t *testing.T) {
	guard := NewGuard(0, 0)

	assert.Equal(t, DefaultCooldown, guard.cooldown)
	assert.Equal(t, DefaultSessionCap, guard.cap)
}
