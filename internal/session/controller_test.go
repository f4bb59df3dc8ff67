package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devbydaniel/assa/internal/input"
	"github.com/devbydaniel/assa/internal/reader"
	"github.com/devbydaniel/assa/internal/scroll"
	"github.com/devbydaniel/assa/internal/tracker"
)

const viewport = 100

// fakeDriver serves pages of fixed heights. Pages not listed are endless.
type fakeDriver struct {
	heights     map[string]float64
	titles      map[string]string
	badNav      map[string]bool
	failScroll  map[string]bool
	shutdownErr error

	current   string
	offset    float64
	navs      []string
	scrolls   map[string][]int
	shutdowns int

	// onScroll runs after every successful ScrollBy with the number of
	// scrolls on the current site so far
	onScroll func(url string, n int)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		heights:    map[string]float64{},
		titles:     map[string]string{},
		badNav:     map[string]bool{},
		failScroll: map[string]bool{},
		scrolls:    map[string][]int{},
	}
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.navs = append(d.navs, url)
	if d.badNav[url] {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	d.current = url
	d.offset = 0
	return nil
}

func (d *fakeDriver) ScrollOffset(context.Context) (float64, error) { return d.offset, nil }

func (d *fakeDriver) ContentHeight(context.Context) (float64, error) {
	if h, ok := d.heights[d.current]; ok {
		return h, nil
	}
	return 1e9, nil
}

func (d *fakeDriver) ViewportHeight(context.Context) (float64, error) { return viewport, nil }

func (d *fakeDriver) ScrollBy(_ context.Context, px int) error {
	if d.failScroll[d.current] {
		return errors.New("execution context was destroyed")
	}
	d.offset += float64(px)
	d.scrolls[d.current] = append(d.scrolls[d.current], px)
	if d.onScroll != nil {
		d.onScroll(d.current, len(d.scrolls[d.current]))
	}
	return nil
}

func (d *fakeDriver) Shutdown() error {
	d.shutdowns++
	return d.shutdownErr
}

type titledDriver struct {
	*fakeDriver
}

func (d titledDriver) Describe(context.Context) (reader.Summary, error) {
	if t, ok := d.titles[d.current]; ok {
		return reader.Summary{Title: t, Words: 460, ReadingTime: 2 * time.Minute}, nil
	}
	return reader.Summary{}, errors.New("no title")
}

type fakeSink struct {
	statuses  []Status
	summaries [][]tracker.Record
	stops     int
	stopErr   error
}

func (s *fakeSink) OnStatus(st Status) { s.statuses = append(s.statuses, st) }

func (s *fakeSink) OnSummary(r []tracker.Record) { s.summaries = append(s.summaries, r) }

func (s *fakeSink) Stop() error {
	s.stops++
	return s.stopErr
}

// scripted returns a fixed batch of commands for the n-th drain.
type scripted struct {
	drains  int
	batches map[int][]input.Command
}

func (s *scripted) Drain() []input.Command {
	b := s.batches[s.drains]
	s.drains++
	return b
}

func noSleep(context.Context, time.Duration) {}

func newController(t *testing.T, d Driver, sink StatusSink, in CommandSource, opts Options) *Controller {
	t.Helper()
	if opts.Sleep == nil {
		opts.Sleep = noSleep
	}
	c, err := New(d, sink, in, nil, opts)
	require.NoError(t, err)
	return c
}

func recordURLs(recs []tracker.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.URL)
	}
	return out
}

func TestRunVisitsEverySiteToTheEnd(t *testing.T) {
	d := newFakeDriver()
	urls := []string{"a", "b", "c"}
	for _, u := range urls {
		d.heights[u] = 150 // end once offset >= 40
	}
	sink := &fakeSink{}
	c := newController(t, d, sink, nil, Options{StartSpeed: scroll.Fast})

	require.NoError(t, c.Run(context.Background(), urls))

	assert.Equal(t, urls, d.navs)
	for _, u := range urls {
		assert.Equal(t, []int{15, 15, 15}, d.scrolls[u])
	}
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, urls, recordURLs(sink.summaries[0]))

	var ends []int
	for _, st := range sink.statuses {
		assert.Equal(t, 3, st.Total)
		if st.Phase == PhaseEndOfPage {
			ends = append(ends, st.Index)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, ends)

	assert.Equal(t, 1, d.shutdowns)
	assert.Equal(t, 1, sink.stops)
}

func TestEndOfPageHoldsBeforeAdvancing(t *testing.T) {
	d := newFakeDriver()
	d.heights["a"] = 50
	var slept []time.Duration
	sink := &fakeSink{}
	c := newController(t, d, sink, nil, Options{
		EndHold: 2 * time.Second,
		Sleep:   func(_ context.Context, dur time.Duration) { slept = append(slept, dur) },
	})

	require.NoError(t, c.Run(context.Background(), []string{"a"}))
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
	last := sink.statuses[len(sink.statuses)-1]
	assert.Equal(t, PhaseEndOfPage, last.Phase)
}

func TestNextSkipsRemainingScroll(t *testing.T) {
	d := newFakeDriver()
	d.heights["b"] = 150
	d.heights["c"] = 150
	q := input.NewQueue()
	d.onScroll = func(url string, n int) {
		if url == "a" && n == 1 {
			q.Push(input.Command{Kind: input.Next})
		}
	}
	sink := &fakeSink{}
	c := newController(t, d, sink, q, Options{})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b", "c"}))

	assert.Equal(t, []string{"a", "b", "c"}, d.navs)
	assert.Len(t, d.scrolls["a"], 1, "site a must stop scrolling after next")
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, []string{"a", "b", "c"}, recordURLs(sink.summaries[0]))
	assert.Equal(t, IntentNone, c.State().Intent)
}

func TestPreviousOnFirstSiteStaysOnFirst(t *testing.T) {
	d := newFakeDriver()
	d.heights["b"] = 150
	q := input.NewQueue()
	pushed := false
	d.onScroll = func(url string, n int) {
		switch {
		case url == "a" && !pushed:
			pushed = true
			q.Push(input.Command{Kind: input.Previous})
		case url == "a":
			q.Push(input.Command{Kind: input.Next})
		}
	}
	sink := &fakeSink{}
	c := newController(t, d, sink, q, Options{})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b"}))

	assert.Equal(t, []string{"a", "a", "b"}, d.navs)
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, []string{"a", "a", "b"}, recordURLs(sink.summaries[0]))

	for _, st := range sink.statuses {
		assert.GreaterOrEqual(t, st.Index, 1)
	}
}

func TestPreviousGoesBackOneSite(t *testing.T) {
	d := newFakeDriver()
	d.heights["a"] = 150
	d.heights["b"] = 150
	q := input.NewQueue()
	pushed := false
	d.onScroll = func(url string, n int) {
		if url == "b" && !pushed {
			pushed = true
			q.Push(input.Command{Kind: input.Previous})
		}
	}
	sink := &fakeSink{}
	c := newController(t, d, sink, q, Options{})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b"}))

	assert.Equal(t, []string{"a", "b", "a", "b"}, d.navs)
	assert.Equal(t, []string{"a", "b", "a", "b"}, recordURLs(sink.summaries[0]))
}

func TestQuitStopsRemainingSites(t *testing.T) {
	d := newFakeDriver()
	d.heights["a"] = 150
	q := input.NewQueue()
	d.onScroll = func(url string, n int) {
		if url == "b" && n == 3 {
			q.Push(input.Command{Kind: input.Quit})
		}
	}
	sink := &fakeSink{}
	c := newController(t, d, sink, q, Options{})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b", "c"}))

	assert.Equal(t, []string{"a", "b"}, d.navs)
	assert.Len(t, d.scrolls["b"], 3)
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, []string{"a", "b"}, recordURLs(sink.summaries[0]))
	assert.Equal(t, IntentQuit, c.State().Intent)
	assert.Equal(t, 1, d.shutdowns)
	assert.Equal(t, 1, sink.stops)
}

func TestQuitDuringEndHoldSkipsNavigation(t *testing.T) {
	d := newFakeDriver()
	d.heights["a"] = 50
	q := input.NewQueue()
	sink := &fakeSink{}
	c := newController(t, d, sink, q, Options{
		Sleep: func(_ context.Context, dur time.Duration) {
			if dur == 2*time.Second {
				q.Push(input.Command{Kind: input.Quit})
			}
		},
	})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b"}))
	assert.Equal(t, []string{"a"}, d.navs)
	assert.Equal(t, []string{"a"}, recordURLs(sink.summaries[0]))
}

func TestCommandsApplyInArrivalOrder(t *testing.T) {
	d := newFakeDriver()
	d.heights["a"] = 150
	d.heights["b"] = 150
	src := &scripted{batches: map[int][]input.Command{
		// drain 0 happens before navigating to a
		1: {{Kind: input.SetSpeed, Level: scroll.Fast}, {Kind: input.TogglePause}},
		3: {{Kind: input.TogglePause}},
	}}
	sink := &fakeSink{}
	c := newController(t, d, sink, src, Options{StartSpeed: scroll.Slow})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b"}))

	require.GreaterOrEqual(t, len(sink.statuses), 3)
	assert.Equal(t, PhasePaused, sink.statuses[0].Phase)
	assert.Equal(t, scroll.Fast, sink.statuses[0].Speed)
	assert.Equal(t, PhasePaused, sink.statuses[1].Phase)
	assert.Equal(t, PhaseScrolling, sink.statuses[2].Phase)

	assert.Equal(t, []int{15, 15, 15}, d.scrolls["a"])
	// speed carries over to the next site
	assert.Equal(t, []int{15, 15, 15}, d.scrolls["b"])
}

func TestLatestNavigationIntentWins(t *testing.T) {
	d := newFakeDriver()
	d.heights["b"] = 150
	src := &scripted{batches: map[int][]input.Command{
		1: {{Kind: input.Quit}, {Kind: input.Next}},
	}}
	sink := &fakeSink{}
	c := newController(t, d, sink, src, Options{})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, d.navs)
	assert.Empty(t, d.scrolls["a"])
}

func TestUnknownSpeedIsIgnored(t *testing.T) {
	d := newFakeDriver()
	d.heights["a"] = 120
	src := &scripted{batches: map[int][]input.Command{
		1: {{Kind: input.SetSpeed, Level: scroll.Level(9)}},
	}}
	sink := &fakeSink{}
	c := newController(t, d, sink, src, Options{StartSpeed: scroll.Medium})

	require.NoError(t, c.Run(context.Background(), []string{"a"}))
	assert.Equal(t, scroll.Medium, c.State().Speed)
	assert.Equal(t, []int{4, 4, 4}, d.scrolls["a"])
}

func TestNewRejectsUnknownStartSpeed(t *testing.T) {
	_, err := New(newFakeDriver(), &fakeSink{}, nil, nil, Options{StartSpeed: scroll.Level(5)})
	assert.ErrorIs(t, err, scroll.ErrUnknownLevel)
}

func TestNavigationFailureSkipsSite(t *testing.T) {
	d := newFakeDriver()
	d.badNav["a"] = true
	d.heights["b"] = 150
	sink := &fakeSink{}
	c := newController(t, d, sink, nil, Options{})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, d.navs)
	assert.Equal(t, []string{"b"}, recordURLs(sink.summaries[0]))
}

func TestRepeatedStepFailuresMoveOn(t *testing.T) {
	d := newFakeDriver()
	d.failScroll["a"] = true
	d.heights["b"] = 150
	sink := &fakeSink{}
	c := newController(t, d, sink, nil, Options{MaxStepFailures: 3})

	require.NoError(t, c.Run(context.Background(), []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, d.navs)
	assert.Equal(t, []string{"a", "b"}, recordURLs(sink.summaries[0]))
}

func TestCancelledContextActsAsQuit(t *testing.T) {
	d := newFakeDriver()
	ctx, cancel := context.WithCancel(context.Background())
	d.onScroll = func(url string, n int) {
		if n == 2 {
			cancel()
		}
	}
	sink := &fakeSink{}
	c := newController(t, d, sink, nil, Options{})

	require.NoError(t, c.Run(ctx, []string{"a", "b"}))
	assert.Equal(t, []string{"a"}, d.navs)
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, []string{"a"}, recordURLs(sink.summaries[0]))
}

func TestEmptyURLListStillSummarises(t *testing.T) {
	d := newFakeDriver()
	sink := &fakeSink{}
	c := newController(t, d, sink, nil, Options{})

	require.NoError(t, c.Run(context.Background(), nil))
	require.Len(t, sink.summaries, 1)
	assert.Empty(t, sink.summaries[0])
	assert.Empty(t, d.navs)
	assert.Equal(t, 1, d.shutdowns)
}

func TestTitleIsReportedAndRecorded(t *testing.T) {
	d := newFakeDriver()
	d.heights["a"] = 150
	d.titles["a"] = "Alpha"
	sink := &fakeSink{}
	c := newController(t, titledDriver{d}, sink, nil, Options{})

	require.NoError(t, c.Run(context.Background(), []string{"a"}))
	assert.Equal(t, "Alpha", sink.statuses[0].Title)
	assert.Equal(t, 2*time.Minute, sink.statuses[0].ReadingTime)
	assert.Equal(t, "Alpha", sink.summaries[0][0].Title)
}

func TestCleanupRunsBothStepsOnce(t *testing.T) {
	d := newFakeDriver()
	d.shutdownErr = errors.New("browser already gone")
	sink := &fakeSink{stopErr: errors.New("terminal closed")}
	c := newController(t, d, sink, nil, Options{})

	require.NoError(t, c.Run(context.Background(), nil))

	err := c.Cleanup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser already gone")
	assert.Contains(t, err.Error(), "terminal closed")
	assert.Equal(t, 1, d.shutdowns)
	assert.Equal(t, 1, sink.stops)
}

type panickyDriver struct {
	*fakeDriver
}

func (panickyDriver) Shutdown() error { panic("boom") }

func TestCleanupSurvivesPanickingShutdown(t *testing.T) {
	sink := &fakeSink{}
	c := newController(t, panickyDriver{newFakeDriver()}, sink, nil, Options{})

	err := c.Cleanup()
	require.Error(t, err)
	assert.Equal(t, 1, sink.stops)
}

func TestIntentForCommand(t *testing.T) {
	tests := []struct {
		kind input.Kind
		want Intent
		name string
	}{
		{input.Next, IntentNext, "next"},
		{input.Previous, IntentPrevious, "previous"},
		{input.Quit, IntentQuit, "quit"},
		{input.TogglePause, IntentNone, "none"},
	}
	for _, tt := range tests {
		got := intentFor(tt.kind)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.name, got.String())
	}
}
