// Package browser drives a single Chrome tab through go-rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/devbydaniel/assa/internal/reader"
)

// Error is a failed driver operation. The session treats it as recoverable.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("browser %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("browser %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures Launch.
type Options struct {
	Headless  bool
	ChromeBin string
	Timeout   time.Duration // per driver call
	Logger    *slog.Logger
}

// Driver owns the browser process and the one page the session uses.
type Driver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	dataDir  string
	timeout  time.Duration
	log      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Chrome and opens a stealth page.
func Launch(opts Options) (*Driver, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "browser")

	dataDir, err := os.MkdirTemp("", "assa-chrome-*")
	if err != nil {
		return nil, &Error{Op: "launch", Err: err}
	}

	l := launcher.New().
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-notifications").
		Set("mute-audio").
		Set("start-maximized").
		Set("password-store", "basic").
		Headless(opts.Headless).
		Leakless(false).
		UserDataDir(dataDir)

	if opts.ChromeBin != "" {
		l = l.Bin(opts.ChromeBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		_ = os.RemoveAll(dataDir)
		return nil, &Error{Op: "launch", Err: err}
	}
	log.Info("chrome started", "pid", l.PID(), "headless", opts.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		_ = os.RemoveAll(dataDir)
		return nil, &Error{Op: "connect", Err: err}
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		_ = os.RemoveAll(dataDir)
		return nil, &Error{Op: "open page", Err: err}
	}

	return &Driver{
		launcher: l,
		browser:  browser,
		page:     page,
		dataDir:  dataDir,
		timeout:  opts.Timeout,
		log:      log,
	}, nil
}

// scoped binds a driver call to ctx and the per-call timeout.
func (d *Driver) scoped(ctx context.Context) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	return d.page.Context(ctx), cancel
}

// Navigate loads url and waits for the load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	p, cancel := d.scoped(ctx)
	defer cancel()
	if err := p.Navigate(url); err != nil {
		return &Error{Op: "navigate", URL: url, Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		return &Error{Op: "wait load", URL: url, Err: err}
	}
	d.log.Debug("page loaded", "url", url)
	return nil
}

func (d *Driver) evalNumber(ctx context.Context, op, js string) (float64, error) {
	p, cancel := d.scoped(ctx)
	defer cancel()
	res, err := p.Eval(js)
	if err != nil {
		return 0, &Error{Op: op, Err: err}
	}
	return res.Value.Num(), nil
}

func (d *Driver) ScrollOffset(ctx context.Context) (float64, error) {
	return d.evalNumber(ctx, "scroll offset", `() => window.pageYOffset`)
}

func (d *Driver) ContentHeight(ctx context.Context) (float64, error) {
	return d.evalNumber(ctx, "content height",
		`() => Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight)`)
}

func (d *Driver) ViewportHeight(ctx context.Context) (float64, error) {
	return d.evalNumber(ctx, "viewport height", `() => window.innerHeight`)
}

func (d *Driver) ScrollBy(ctx context.Context, px int) error {
	p, cancel := d.scoped(ctx)
	defer cancel()
	if _, err := p.Eval(`(px) => window.scrollBy(0, px)`, px); err != nil {
		return &Error{Op: "scroll", Err: err}
	}
	return nil
}

// HTML returns the current document's outer HTML.
func (d *Driver) HTML(ctx context.Context) (string, error) {
	p, cancel := d.scoped(ctx)
	defer cancel()
	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", &Error{Op: "html", Err: err}
	}
	return res.Value.Str(), nil
}

// Describe summarises the loaded page with readability, falling back to the
// document title when no article can be extracted.
func (d *Driver) Describe(ctx context.Context) (reader.Summary, error) {
	p, cancel := d.scoped(ctx)
	info, err := p.Info()
	cancel()
	if err != nil {
		return reader.Summary{}, &Error{Op: "page info", Err: err}
	}

	html, err := d.HTML(ctx)
	if err != nil {
		return reader.Summary{Title: info.Title}, nil
	}
	summary, err := reader.Extract(html, info.URL)
	if err != nil {
		d.log.Debug("readability failed", "url", info.URL, "err", err)
		return reader.Summary{Title: info.Title}, nil
	}
	if summary.Title == "" {
		summary.Title = info.Title
	}
	return summary, nil
}

// Shutdown closes the browser, kills the process and removes the profile.
// Safe to call more than once.
func (d *Driver) Shutdown() error {
	d.closeOnce.Do(func() {
		var errs []error
		if err := d.browser.Close(); err != nil {
			errs = append(errs, &Error{Op: "close", Err: err})
		}
		d.launcher.Kill()
		if err := os.RemoveAll(d.dataDir); err != nil {
			errs = append(errs, &Error{Op: "remove profile", Err: err})
		}
		d.closeErr = errors.Join(errs...)
		d.log.Info("browser closed")
	})
	return d.closeErr
}
