// Package idle tracks request activity and shuts the compute instance down
// once it has been idle for too long, accruing its running cost meanwhile.
package idle

import (
	"sync/atomic"
	"time"
)

// Tracker holds the time of the last inbound request. Updates are
// last-write-wins and safe for concurrent use.
type Tracker struct {
	last atomic.Int64
	now  func() time.Time
}

// NewTracker creates a tracker whose last activity is now. A nil clock uses
// time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{now: now}
	t.Touch()
	return t
}

// Touch records activity at the current time.
func (t *Tracker) Touch() {
	t.last.Store(t.now().UnixNano())
}

// LastActivity returns the time of the most recent Touch.
func (t *Tracker) LastActivity() time.Time {
	return time.Unix(0, t.last.Load())
}

// Since returns how long the tracker has been idle.
func (t *Tracker) Since() time.Duration {
	return t.now().Sub(t.LastActivity())
}
