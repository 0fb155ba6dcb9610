package session

import (
	"sync"
	"time"

	"github.com/ngbao12/GoPass-sub000/internal/models"
)

// Resolution is the outcome of reconciling a stored snapshot against the
// server-reported submission state.
type Resolution int

const (
	// ResolutionResume: continue the countdown from the reconciled value
	ResolutionResume Resolution = iota
	// ResolutionExpired: wall-clock time ran out while away, finalize now
	// with whatever answers are stored
	ResolutionExpired
	// ResolutionDiscard: the server already finalized this submission; the
	// snapshot is stale and must not seed a new attempt
	ResolutionDiscard
)

// ReconcileResult carries the reconciled remaining time alongside the
// resolution.
type ReconcileResult struct {
	Resolution    Resolution
	TimeRemaining int // seconds, meaningful only for ResolutionResume
}

// Reconcile compares a persisted snapshot with the authoritative submission
// status. Remaining time is charged for the wall-clock gap since the snapshot
// was last saved, so a client that was closed for 150 seconds with 120
// seconds left comes back expired.
func Reconcile(snapshot *ProgressSnapshot, serverStatus models.SubmissionStatus, now time.Time) ReconcileResult {
	if snapshot == nil {
		return ReconcileResult{Resolution: ResolutionDiscard}
	}

	if serverStatus.IsFinalized() {
		return ReconcileResult{Resolution: ResolutionDiscard}
	}

	elapsed := int(now.Sub(snapshot.LastSaved).Seconds())
	remaining := snapshot.TimeRemainingSeconds - elapsed
	if remaining <= 0 {
		return ReconcileResult{Resolution: ResolutionExpired, TimeRemaining: 0}
	}

	return ReconcileResult{Resolution: ResolutionResume, TimeRemaining: remaining}
}

// Countdown is a cooperative one-second timer with a one-shot expiry action.
// Tick is expected to be driven by a single goroutine; the expiry callback
// fires exactly once even if Tick keeps being called afterwards.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	expired   bool
	onExpire  func()
}

func NewCountdown(remainingSeconds int, onExpire func()) *Countdown {
	return &Countdown{
		remaining: remainingSeconds,
		onExpire:  onExpire,
	}
}

// Tick decrements the remaining time by one second. On reaching zero it
// invokes the expiry action once and reports true from then on.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return true
	}

	c.remaining--
	if c.remaining > 0 {
		c.mu.Unlock()
		return false
	}

	c.remaining = 0
	c.expired = true
	onExpire := c.onExpire
	c.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
	return true
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Expired reports whether the countdown has fired.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}
