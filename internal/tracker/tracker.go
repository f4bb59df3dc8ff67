// Package tracker records how long each site of a session was on screen.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts time so durations are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Record is one finished site visit.
type Record struct {
	URL       string
	Title     string
	TimeSpent time.Duration
}

// Duration renders TimeSpent as "{m}m {s}s".
func (r Record) Duration() string {
	return FormatDuration(r.TimeSpent)
}

// FormatDuration renders d in whole minutes and seconds.
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

type measurement struct {
	url   string
	title string
	start time.Time
}

// Tracker holds at most one open measurement and the ordered list of
// finished records.
type Tracker struct {
	mu      sync.Mutex
	clock   Clock
	log     *slog.Logger
	open    *measurement
	records []Record
}

// New returns a tracker using the wall clock. A nil logger discards output.
func New(log *slog.Logger) *Tracker {
	return NewWithClock(systemClock{}, log)
}

func NewWithClock(clock Clock, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Tracker{clock: clock, log: log.With("component", "tracker")}
}

// StartSite opens a measurement for url. An already open measurement is
// closed and recorded first.
func (t *Tracker) StartSite(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open != nil {
		t.log.Warn("site still open, closing it", "open_url", t.open.url, "new_url", url)
		t.closeLocked()
	}
	t.open = &measurement{url: url, start: t.clock.Now()}
}

// SetTitle annotates the open measurement. No-op without one.
func (t *Tracker) SetTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open != nil {
		t.open.title = title
	}
}

// EndSite closes the open measurement and appends its record. It reports
// false when nothing was open.
func (t *Tracker) EndSite() (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == nil {
		return Record{}, false
	}
	return t.closeLocked(), true
}

func (t *Tracker) closeLocked() Record {
	elapsed := t.clock.Now().Sub(t.open.start)
	if elapsed < 0 {
		elapsed = 0
	}
	rec := Record{
		URL:       t.open.url,
		Title:     t.open.title,
		TimeSpent: elapsed.Truncate(time.Second),
	}
	t.records = append(t.records, rec)
	t.open = nil
	t.log.Debug("site recorded", "url", rec.URL, "time_spent", rec.Duration())
	return rec
}

// Open reports the URL of the open measurement, if any.
func (t *Tracker) Open() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == nil {
		return "", false
	}
	return t.open.url, true
}

// Summary returns a copy of the records in visit order.
func (t *Tracker) Summary() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Total sums the time of all records.
func (t *Tracker) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total time.Duration
	for _, r := range t.records {
		total += r.TimeSpent
	}
	return total
}
