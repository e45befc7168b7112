package transport

import "time"

// DegradationAction is the escalation step DegradationPolicy recommends.
type DegradationAction int

const (
	// ActionNone means resource pressure hasn't crossed the escalation
	// threshold; normal byte-budget checks (drop the offending insert)
	// remain sufficient.
	ActionNone DegradationAction = iota
	// ActionDropNewestFragment asks the caller to drop the fragment
	// that just failed to fit, same as the ordinary byte-budget check.
	ActionDropNewestFragment
	// ActionDropPendingMessage asks the caller to discard every
	// fragment accumulated so far for the message whose fragment just
	// failed to fit, bounding worst-case memory under sustained
	// pressure rather than leaving partial state around indefinitely.
	ActionDropPendingMessage
)

// DegradationPolicy escalates the response to repeated resource-cap
// hits (§5 "Resource caps") within a short window: isolated hits get
// the ordinary per-insert rejection, but a burst of hits within
// Window escalates to dropping whole pending messages.
//
// Grounded on the original source's utils/graceful_degradation.{h,cpp};
// not named in spec.md (a SUPPLEMENTED FEATURE per SPEC_FULL.md) —
// layered on top of, not replacing, the byte-budget checks spec.md
// already requires.
type DegradationPolicy struct {
	window    time.Duration
	threshold int

	firstHit time.Time
	hitCount int
}

// NewDegradationPolicy escalates once threshold or more resource-cap
// hits occur within window of each other.
func NewDegradationPolicy(window time.Duration, threshold int) *DegradationPolicy {
	if threshold <= 0 {
		threshold = 5
	}
	return &DegradationPolicy{window: window, threshold: threshold}
}

// RecordHit registers a resource-cap hit at now and returns the action
// the caller should take in response.
func (d *DegradationPolicy) RecordHit(now time.Time) DegradationAction {
	if d.hitCount == 0 || now.Sub(d.firstHit) > d.window {
		d.firstHit = now
		d.hitCount = 1
		return ActionDropNewestFragment
	}
	d.hitCount++
	if d.hitCount >= d.threshold {
		return ActionDropPendingMessage
	}
	return ActionDropNewestFragment
}

// Reset clears the hit-tracking window, e.g. after a successful insert.
func (d *DegradationPolicy) Reset() {
	d.hitCount = 0
}
