package input

import "time"

// DefaultHoldWindow covers the usual keyboard autorepeat delay.
const DefaultHoldWindow = 500 * time.Millisecond

// EdgeFilter passes a key only on its down transition. Terminals send no
// key-up events, just autorepeat bursts, so a key is considered held while
// repeats keep arriving within the hold window. Any other key is a new edge.
type EdgeFilter struct {
	window time.Duration
	now    func() time.Time

	last     byte
	lastSeen time.Time
	held     bool
}

func NewEdgeFilter(window time.Duration, now func() time.Time) *EdgeFilter {
	if window <= 0 {
		window = DefaultHoldWindow
	}
	if now == nil {
		now = time.Now
	}
	return &EdgeFilter{window: window, now: now}
}

// Pressed reports whether key b is a fresh press.
func (f *EdgeFilter) Pressed(b byte) bool {
	t := f.now()
	repeat := f.held && b == f.last && t.Sub(f.lastSeen) < f.window
	f.last = b
	f.lastSeen = t
	f.held = true
	return !repeat
}
