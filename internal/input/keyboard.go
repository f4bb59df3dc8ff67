package input

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/term"
)

// ErrUnavailable means key capture could not be set up. The session can
// still run, it just cannot be steered.
var ErrUnavailable = errors.New("keyboard input unavailable")

// RawModeFunc switches fd to raw mode and returns a function restoring it.
type RawModeFunc func(fd int) (restore func() error, err error)

func terminalRawMode(fd int) (func() error, error) {
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("fd %d is not a terminal", fd)
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enable raw mode: %w", err)
	}
	return func() error { return term.Restore(fd, old) }, nil
}

// Keyboard reads key bytes from a terminal and queues the mapped commands.
type Keyboard struct {
	r       io.Reader
	fd      int
	queue   *Queue
	filter  *EdgeFilter
	rawMode RawModeFunc
	log     *slog.Logger

	restore   func() error
	done      chan struct{}
	closeOnce sync.Once

	// escape sequence state, so arrow keys don't register as letters
	inEscape bool
	inCSI    bool
	lastRead time.Time
}

// escapeGap is how long an escape sequence split across reads may pause
// before the pending Esc is taken as a lone key press.
const escapeGap = 25 * time.Millisecond

type KeyboardOption func(*Keyboard)

func WithHoldWindow(d time.Duration) KeyboardOption {
	return func(k *Keyboard) { k.filter = NewEdgeFilter(d, k.filter.now) }
}

func WithClock(now func() time.Time) KeyboardOption {
	return func(k *Keyboard) { k.filter = NewEdgeFilter(k.filter.window, now) }
}

func WithRawMode(fn RawModeFunc) KeyboardOption {
	return func(k *Keyboard) { k.rawMode = fn }
}

func WithLogger(log *slog.Logger) KeyboardOption {
	return func(k *Keyboard) {
		if log == nil {
			log = slog.New(slog.DiscardHandler)
		}
		k.log = log.With("component", "input")
	}
}

// NewKeyboard listens on r, which must be the terminal behind fd.
func NewKeyboard(r io.Reader, fd int, q *Queue, opts ...KeyboardOption) *Keyboard {
	k := &Keyboard{
		r:       r,
		fd:      fd,
		queue:   q,
		filter:  NewEdgeFilter(DefaultHoldWindow, time.Now),
		rawMode: terminalRawMode,
		log:     slog.New(slog.DiscardHandler),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Start enables raw mode and begins reading on a background goroutine.
func (k *Keyboard) Start() error {
	restore, err := k.rawMode(k.fd)
	if err != nil {
		close(k.done)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	k.restore = restore
	go k.read()
	return nil
}

// Done is closed when the reader goroutine exits.
func (k *Keyboard) Done() <-chan struct{} { return k.done }

// Close restores the terminal. A read blocked on the terminal is left
// behind; it ends with the process.
func (k *Keyboard) Close() error {
	var err error
	k.closeOnce.Do(func() {
		if k.restore != nil {
			err = k.restore()
		}
	})
	return err
}

func (k *Keyboard) read() {
	defer close(k.done)
	buf := make([]byte, 64)
	for {
		n, err := k.r.Read(buf)
		if n > 0 {
			k.chunk(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				k.log.Warn("keyboard read failed", "err", err)
			}
			return
		}
	}
}

// chunk handles the bytes of one read. Terminals write an escape sequence
// in one go, so a sequence left open by the previous read only continues
// if this read follows within escapeGap.
func (k *Keyboard) chunk(p []byte) {
	now := time.Now()
	if now.Sub(k.lastRead) > escapeGap {
		k.inEscape = false
		k.inCSI = false
	}
	k.lastRead = now
	for _, b := range p {
		k.handle(b)
	}
}

func (k *Keyboard) handle(b byte) {
	switch {
	case k.inCSI:
		// parameters until a final byte in 0x40..0x7e
		if b >= 0x40 && b <= 0x7e {
			k.inCSI = false
		}
		return
	case k.inEscape:
		k.inEscape = false
		if b == '[' || b == 'O' {
			k.inCSI = true
			return
		}
		// Esc followed by an ordinary key: the key still counts
	}
	if b == 0x1b {
		k.inEscape = true
		return
	}

	cmd, ok := MapKey(b)
	if !ok {
		return
	}
	if !k.filter.Pressed(b) {
		return
	}
	k.log.Debug("key", "command", cmd.String())
	k.queue.Push(cmd)
}
