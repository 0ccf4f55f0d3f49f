// Package tick provides interval gating for the coarse control loop.
package tick

import "time"

// Gate tracks when a periodic action last fired and reports when the
// next run is due. A zero interval is due on every check.
type Gate struct {
	interval time.Duration
	last     time.Time
}

// NewGate returns a gate whose interval is measured from now.
func NewGate(interval time.Duration, now time.Time) *Gate {
	return &Gate{interval: interval, last: now}
}

// Due reports whether the interval has elapsed since the last firing
// and, if so, records now as the new firing time.
func (g *Gate) Due(now time.Time) bool {
	if now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}

// Reset restarts the interval from now without firing.
func (g *Gate) Reset(now time.Time) {
	g.last = now
}
