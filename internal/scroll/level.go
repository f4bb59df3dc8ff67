package scroll

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownLevel is returned for speed levels outside Slow, Medium and Fast.
var ErrUnknownLevel = errors.New("unknown speed level")

// Level selects one of the fixed scroll speed presets.
type Level int

const (
	Slow Level = iota
	Medium
	Fast
)

// Preset is the pixel step and the delay after each step for a Level.
type Preset struct {
	Step  int
	Delay time.Duration
}

var presets = map[Level]Preset{
	Slow:   {Step: 1, Delay: 25 * time.Millisecond}, // ~40px/s
	Medium: {Step: 4, Delay: 18 * time.Millisecond}, // ~220px/s
	Fast:   {Step: 15, Delay: 8 * time.Millisecond}, // ~1900px/s
}

// PresetFor resolves a level to its preset.
func PresetFor(l Level) (Preset, error) {
	p, ok := presets[l]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %d", ErrUnknownLevel, int(l))
	}
	return p, nil
}

// ParseLevel accepts "slow", "medium" or "fast" in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slow":
		return Slow, nil
	case "medium":
		return Medium, nil
	case "fast":
		return Fast, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

func (l Level) String() string {
	switch l {
	case Slow:
		return "slow"
	case Medium:
		return "medium"
	case Fast:
		return "fast"
	}
	return fmt.Sprintf("level(%d)", int(l))
}
