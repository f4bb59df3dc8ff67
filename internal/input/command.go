// Package input turns operator key presses into session commands.
//
// A Keyboard reads the terminal on its own goroutine and pushes commands
// onto a Queue; the session controller drains the queue once per tick.
// The queue is the only state the two sides share.
package input

import (
	"fmt"

	"github.com/devbydaniel/assa/internal/scroll"
)

// Kind tags a Command.
type Kind int

const (
	SetSpeed Kind = iota
	TogglePause
	Next
	Previous
	Quit
)

func (k Kind) String() string {
	switch k {
	case SetSpeed:
		return "set-speed"
	case TogglePause:
		return "toggle-pause"
	case Next:
		return "next"
	case Previous:
		return "previous"
	case Quit:
		return "quit"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Command is one operator request. Level is only meaningful for SetSpeed.
type Command struct {
	Kind  Kind
	Level scroll.Level
}

func (c Command) String() string {
	if c.Kind == SetSpeed {
		return "set-speed(" + c.Level.String() + ")"
	}
	return c.Kind.String()
}

const ctrlC = 0x03

// MapKey translates a single key byte. Ctrl-C maps to Quit because raw
// mode stops the terminal from raising SIGINT.
func MapKey(b byte) (Command, bool) {
	switch b {
	case '1':
		return Command{Kind: SetSpeed, Level: scroll.Slow}, true
	case '2':
		return Command{Kind: SetSpeed, Level: scroll.Medium}, true
	case '3':
		return Command{Kind: SetSpeed, Level: scroll.Fast}, true
	case 'p', 'P':
		return Command{Kind: TogglePause}, true
	case 'n', 'N':
		return Command{Kind: Next}, true
	case 'b', 'B':
		return Command{Kind: Previous}, true
	case 'q', 'Q', ctrlC:
		return Command{Kind: Quit}, true
	}
	return Command{}, false
}
