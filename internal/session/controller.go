package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devbydaniel/assa/internal/input"
	"github.com/devbydaniel/assa/internal/reader"
	"github.com/devbydaniel/assa/internal/scroll"
	"github.com/devbydaniel/assa/internal/tracker"
)

// Options tunes the loop's suspension points. Zero values get defaults.
type Options struct {
	StartSpeed scroll.Level

	PauseIdle       time.Duration // sleep per tick while paused
	EndHold         time.Duration // how long END OF PAGE stays up
	Yield           time.Duration // sleep between scroll steps
	MaxStepFailures int           // consecutive step errors before giving up on a site

	// Sleep waits for d or until ctx is done.
	Sleep  func(ctx context.Context, d time.Duration)
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.PauseIdle <= 0 {
		o.PauseIdle = 100 * time.Millisecond
	}
	if o.EndHold <= 0 {
		o.EndHold = 2 * time.Second
	}
	if o.Yield <= 0 {
		o.Yield = 2 * time.Millisecond
	}
	if o.MaxStepFailures <= 0 {
		o.MaxStepFailures = 5
	}
	if o.Sleep == nil {
		o.Sleep = scroll.Sleep
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

type outcome int

const (
	advanceNext outcome = iota
	advancePrevious
	terminate
)

// Controller drives one session over a fixed list of URLs.
type Controller struct {
	driver  Driver
	sink    StatusSink
	input   CommandSource
	tracker *tracker.Tracker
	opts    Options
	log     *slog.Logger

	state State

	cleanupOnce sync.Once
	cleanupErr  error
}

// New wires a controller. A nil input means the session runs without live
// control.
func New(driver Driver, sink StatusSink, in CommandSource, tr *tracker.Tracker, opts Options) (*Controller, error) {
	opts = opts.withDefaults()
	if _, err := scroll.PresetFor(opts.StartSpeed); err != nil {
		return nil, fmt.Errorf("start speed: %w", err)
	}
	if in == nil {
		in = noCommands{}
	}
	if tr == nil {
		tr = tracker.New(opts.Logger)
	}
	return &Controller{
		driver:  driver,
		sink:    sink,
		input:   in,
		tracker: tr,
		opts:    opts,
		log:     opts.Logger.With("component", "session"),
		state:   State{Speed: opts.StartSpeed},
	}, nil
}

// State returns a copy of the controller state.
func (c *Controller) State() State { return c.state }

// Run visits urls in order until the list is exhausted or the operator
// quits, hands the summary to the sink and tears down. A cancelled ctx is
// treated like Quit.
func (c *Controller) Run(ctx context.Context, urls []string) error {
	defer func() {
		if err := c.Cleanup(); err != nil {
			c.log.Warn("cleanup incomplete", "err", err)
		}
	}()

	total := len(urls)
	c.log.Info("session started", "sites", total, "speed", c.state.Speed.String())

	for c.state.Index = 1; c.state.Index <= total; c.state.Index++ {
		if c.state.Intent == IntentQuit {
			break
		}
		switch c.visit(ctx, urls[c.state.Index-1], total) {
		case terminate:
			c.state.Intent = IntentQuit
		case advancePrevious:
			// the loop adds one back, so this lands on the previous site,
			// or on the first one again when already there
			c.state.Index = max(0, c.state.Index-2)
		}
	}

	summary := c.tracker.Summary()
	c.log.Info("session finished", "visited", len(summary), "total_time", tracker.FormatDuration(c.tracker.Total()))
	c.sink.OnSummary(summary)
	return nil
}

func (c *Controller) visit(ctx context.Context, url string, total int) outcome {
	log := c.log.With("index", c.state.Index, "url", url)

	// quit pressed during the previous end-of-page hold must not wait for
	// another navigation
	c.poll(ctx, nil)
	if c.state.Intent == IntentQuit {
		return terminate
	}

	if err := c.driver.Navigate(ctx, url); err != nil {
		c.poll(ctx, nil)
		if c.state.Intent == IntentQuit {
			return terminate
		}
		log.Warn("navigation failed, skipping site", "err", err)
		if c.state.Intent == IntentPrevious {
			c.state.Intent = IntentNone
			return advancePrevious
		}
		c.state.Intent = IntentNone
		return advanceNext
	}

	c.tracker.StartSite(url)
	defer c.tracker.EndSite()

	page := c.describe(ctx, log)
	c.tracker.SetTitle(page.Title)

	engine, err := scroll.New(c.driver, c.state.Speed, scroll.WithSleep(c.opts.Sleep))
	if err != nil {
		log.Error("cannot scroll site", "err", err)
		return advanceNext
	}
	engine.SetPaused(c.state.Paused)

	status := Status{
		Index:       c.state.Index,
		Total:       total,
		URL:         url,
		Title:       page.Title,
		ReadingTime: page.ReadingTime,
	}
	failures := 0
	for {
		c.poll(ctx, engine)
		c.publish(status, c.phase())

		switch c.state.Intent {
		case IntentQuit:
			log.Info("quit requested")
			return terminate
		case IntentNext:
			c.state.Intent = IntentNone
			log.Debug("skipping to next site")
			return advanceNext
		case IntentPrevious:
			c.state.Intent = IntentNone
			log.Debug("going back to previous site")
			return advancePrevious
		}

		if c.state.Paused {
			c.opts.Sleep(ctx, c.opts.PauseIdle)
			continue
		}

		res, err := engine.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			failures++
			log.Warn("scroll step failed", "err", err, "failures", failures)
			if failures >= c.opts.MaxStepFailures {
				log.Warn("too many scroll failures, moving on")
				return advanceNext
			}
			c.opts.Sleep(ctx, c.opts.Yield)
			continue
		}
		failures = 0

		if res == scroll.ReachedEnd {
			c.publish(status, PhaseEndOfPage)
			log.Debug("end of page")
			c.opts.Sleep(ctx, c.opts.EndHold)
			return advanceNext
		}
		c.opts.Sleep(ctx, c.opts.Yield)
	}
}

// poll drains queued commands and applies them in arrival order. engine is
// nil between sites.
func (c *Controller) poll(ctx context.Context, engine *scroll.Engine) {
	for _, cmd := range c.input.Drain() {
		c.apply(cmd, engine)
	}
	if ctx.Err() != nil && c.state.Intent != IntentQuit {
		c.log.Info("interrupted, stopping session", "err", ctx.Err())
		c.state.Intent = IntentQuit
	}
}

func (c *Controller) apply(cmd input.Command, engine *scroll.Engine) {
	switch cmd.Kind {
	case input.SetSpeed:
		if _, err := scroll.PresetFor(cmd.Level); err != nil {
			c.log.Warn("ignoring speed change", "err", err, "speed", c.state.Speed.String())
			return
		}
		c.state.Speed = cmd.Level
		if engine != nil {
			_ = engine.ChangeSpeed(cmd.Level)
			c.log.Debug("speed changed", "speed", cmd.Level.String(), "step_px", engine.Preset().Step)
		}
	case input.TogglePause:
		c.state.Paused = !c.state.Paused
		if engine != nil {
			engine.SetPaused(c.state.Paused)
		}
	case input.Next, input.Previous, input.Quit:
		c.state.Intent = intentFor(cmd.Kind)
		c.log.Debug("navigation requested", "intent", c.state.Intent.String())
	default:
		c.log.Warn("unknown command", "command", cmd.String())
	}
}

func intentFor(k input.Kind) Intent {
	switch k {
	case input.Next:
		return IntentNext
	case input.Previous:
		return IntentPrevious
	case input.Quit:
		return IntentQuit
	}
	return IntentNone
}

func (c *Controller) phase() Phase {
	if c.state.Paused {
		return PhasePaused
	}
	return PhaseScrolling
}

func (c *Controller) publish(s Status, phase Phase) {
	s.Speed = c.state.Speed
	s.Phase = phase
	c.sink.OnStatus(s)
}

func (c *Controller) describe(ctx context.Context, log *slog.Logger) reader.Summary {
	d, ok := c.driver.(Describer)
	if !ok {
		return reader.Summary{}
	}
	summary, err := d.Describe(ctx)
	if err != nil {
		log.Debug("page not described", "err", err)
		return reader.Summary{}
	}
	return summary
}

// Cleanup shuts the browser down and stops the sink. It runs once; later
// calls return the first result. Both steps are attempted even if one fails.
func (c *Controller) Cleanup() error {
	c.cleanupOnce.Do(func() {
		var errs []error
		if err := guard(c.driver.Shutdown); err != nil {
			errs = append(errs, fmt.Errorf("shutdown browser: %w", err))
		}
		if err := guard(c.sink.Stop); err != nil {
			errs = append(errs, fmt.Errorf("stop dashboard: %w", err))
		}
		c.cleanupErr = errors.Join(errs...)
	})
	return c.cleanupErr
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
