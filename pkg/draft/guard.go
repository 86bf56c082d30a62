package draft

import (
	"sync"
	"time"
)

const (
	// DefaultCooldown is the minimum spacing between accepted submits.
	DefaultCooldown = 60 * time.Second

	// DefaultSessionCap bounds accepted submits per wizard session.
	DefaultSessionCap = 3
)

// Guard is the in-memory duplication/rate control for the final submit
// action. It exists to keep the client from hitting the server's rate
// limit, not to mirror it.
type Guard struct {
	mu             sync.Mutex
	submitting     bool
	lastSubmission time.Time
	count          int
	cooldown       time.Duration
	cap            int
	now            func() time.Time
}

// NewGuard creates a guard with the given cooldown and session cap. Zero
// values select the defaults.
func NewGuard(cooldown time.Duration, sessionCap int) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	if sessionCap <= 0 {
		sessionCap = DefaultSessionCap
	}

	return &Guard{cooldown: cooldown, cap: sessionCap, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now

	return g
}

// CanSubmit reports whether a submit would be accepted now: no submit in
// flight, cooldown elapsed since the last accepted one, session cap not
// reached.
func (g *Guard) CanSubmit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitting {
		return false
	}

	if g.count >= g.cap {
		return false
	}

	if !g.lastSubmission.IsZero() && g.now().Sub(g.lastSubmission) < g.cooldown {
		return false
	}

	return true
}

// RemainingCooldown returns how long until the cooldown allows another
// submit; zero when it already does.
func (g *Guard) RemainingCooldown() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastSubmission.IsZero() {
		return 0
	}

	remaining := g.cooldown - g.now().Sub(g.lastSubmission)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// RecordAttempt marks an accepted submit: takes the exclusive lock, stamps
// the cooldown window, and consumes one slot of the session cap.
func (g *Guard) RecordAttempt() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitting = true
	g.lastSubmission = g.now()
	g.count++
}

// RecordSuccess releases the in-flight lock after the server confirmed the
// submission. The consumed cap slot stays consumed.
func (g *Guard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitting = false
}

// RecordFailure releases the in-flight lock after a genuine failure. The
// attempt still counts against the session cap.
func (g *Guard) RecordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitting = false
}

// RecordFailureRelax releases the in-flight lock and refunds the cap slot.
// Used when the server itself rejected the request as rate-limited — the
// guard's job is to prevent hitting the server limit, not to compound it —
// and for duplicate outcomes, which are business results rather than
// spent attempts.
func (g *Guard) RecordFailureRelax() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitting = false

	if g.count > 0 {
		g.count--
	}
}

// SubmissionCount returns how many submits were accepted this session.
func (g *Guard) SubmissionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.count
}
