// Package session runs the interactive visit loop: it opens each URL,
// scrolls it, applies operator commands between steps and reports status.
package session

import (
	"context"
	"time"

	"github.com/devbydaniel/assa/internal/input"
	"github.com/devbydaniel/assa/internal/reader"
	"github.com/devbydaniel/assa/internal/scroll"
	"github.com/devbydaniel/assa/internal/tracker"
)

// Driver is the browser as seen by the controller.
type Driver interface {
	scroll.Page
	Navigate(ctx context.Context, url string) error
	Shutdown() error
}

// Describer is implemented by drivers that can summarise the loaded page.
type Describer interface {
	Describe(ctx context.Context) (reader.Summary, error)
}

// CommandSource hands over everything the operator queued since the last call.
type CommandSource interface {
	Drain() []input.Command
}

// StatusSink receives a status snapshot every tick and the summary once.
type StatusSink interface {
	OnStatus(Status)
	OnSummary([]tracker.Record)
	Stop() error
}

// Phase is the status word shown to the operator.
type Phase string

const (
	PhaseScrolling Phase = "SCROLLING"
	PhasePaused    Phase = "PAUSED"
	PhaseEndOfPage Phase = "END OF PAGE"
)

// Status is an immutable snapshot of the current visit.
type Status struct {
	Index       int // 1-based
	Total       int
	URL         string
	Title       string
	ReadingTime time.Duration // estimate, zero when unknown
	Speed       scroll.Level
	Phase       Phase
}

// Intent is a pending navigation request.
type Intent int

const (
	IntentNone Intent = iota
	IntentNext
	IntentPrevious
	IntentQuit
)

func (i Intent) String() string {
	switch i {
	case IntentNext:
		return "next"
	case IntentPrevious:
		return "previous"
	case IntentQuit:
		return "quit"
	}
	return "none"
}

// State is owned by the controller. Nothing else writes it.
type State struct {
	Index  int
	Speed  scroll.Level
	Paused bool
	Intent Intent
}

type noCommands struct{}

func (noCommands) Drain() []input.Command { return nil }
