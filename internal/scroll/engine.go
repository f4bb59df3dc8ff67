// Package scroll steps a page downwards at one of three fixed speeds and
// reports when the bottom of the content has been reached.
package scroll

import (
	"context"
	"fmt"
	"time"
)

// Tolerance is how close to the bottom, in pixels, counts as the end of the page.
const Tolerance = 10

// Page is the part of the browser the engine needs. Every call may fail.
type Page interface {
	ScrollOffset(ctx context.Context) (float64, error)
	ContentHeight(ctx context.Context) (float64, error)
	ViewportHeight(ctx context.Context) (float64, error)
	ScrollBy(ctx context.Context, px int) error
}

// Result is the outcome of a single Step.
type Result int

const (
	Continuing Result = iota
	ReachedEnd
)

func (r Result) String() string {
	if r == ReachedEnd {
		return "reached end"
	}
	return "continuing"
}

// Engine holds the scroll state for one site visit. Create a new one per site.
type Engine struct {
	page     Page
	level    Level
	preset   Preset
	paused   bool
	position float64
	sleep    func(context.Context, time.Duration)
}

// Option configures an Engine.
type Option func(*Engine)

// WithSleep replaces the delay used after each step. Tests use it to avoid
// real waits.
func WithSleep(fn func(context.Context, time.Duration)) Option {
	return func(e *Engine) { e.sleep = fn }
}

// New returns an engine for page at the given level.
func New(page Page, level Level, opts ...Option) (*Engine, error) {
	preset, err := PresetFor(level)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		page:   page,
		level:  level,
		preset: preset,
		sleep:  Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Step advances the page by the current preset's step and waits its delay.
// It reports ReachedEnd, without scrolling, once the viewport touches the
// bottom of the content. Heights are re-read on every call because pages
// load content lazily. A paused engine does nothing and reports Continuing.
func (e *Engine) Step(ctx context.Context) (Result, error) {
	if e.paused {
		return Continuing, nil
	}

	offset, err := e.page.ScrollOffset(ctx)
	if err != nil {
		return Continuing, fmt.Errorf("read scroll offset: %w", err)
	}
	height, err := e.page.ContentHeight(ctx)
	if err != nil {
		return Continuing, fmt.Errorf("read content height: %w", err)
	}
	viewport, err := e.page.ViewportHeight(ctx)
	if err != nil {
		return Continuing, fmt.Errorf("read viewport height: %w", err)
	}
	e.position = offset

	if offset+viewport >= height-Tolerance {
		return ReachedEnd, nil
	}

	preset := e.preset
	if err := e.page.ScrollBy(ctx, preset.Step); err != nil {
		return Continuing, fmt.Errorf("scroll by %dpx: %w", preset.Step, err)
	}
	e.position = offset + float64(preset.Step)
	e.sleep(ctx, preset.Delay)
	return Continuing, nil
}

// ChangeSpeed switches presets for subsequent steps. An unknown level is
// rejected and the current preset kept.
func (e *Engine) ChangeSpeed(level Level) error {
	preset, err := PresetFor(level)
	if err != nil {
		return err
	}
	e.level = level
	e.preset = preset
	return nil
}

func (e *Engine) SetPaused(paused bool) { e.paused = paused }

func (e *Engine) Level() Level { return e.level }

func (e *Engine) Preset() Preset { return e.preset }

// Position is the last known scroll offset, including the most recent step.
func (e *Engine) Position() float64 { return e.position }

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
