package main

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/devbydaniel/assa/internal/browser"
	"github.com/devbydaniel/assa/internal/config"
	"github.com/devbydaniel/assa/internal/dashboard"
	"github.com/devbydaniel/assa/internal/input"
	"github.com/devbydaniel/assa/internal/scroll"
	"github.com/devbydaniel/assa/internal/search"
	"github.com/devbydaniel/assa/internal/session"
	"github.com/devbydaniel/assa/internal/tracker"
)

//go:embed help.txt
var helpText string

func init() {
	signal.Ignore(syscall.SIGPIPE)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	fast       bool
	configPath string
	headless   bool
	speed      string
	debug      bool
}

func newRootCmd() *cobra.Command {
	var f cliFlags

	root := &cobra.Command{
		Use:           "assa [search term...]",
		Short:         "Search the web and auto-scroll the top results under live keyboard control",
		Long:          helpText,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			if query == "" {
				query, err = prompt(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}
			if query == "" && !f.fast {
				return errors.New("search term required")
			}
			return run(cmd.Context(), cfg, f.fast, query, cmd.OutOrStdout())
		},
	}
	root.Flags().BoolVarP(&f.fast, "fast", "f", false, "demo mode: skip the search and visit a fixed list of sites")
	root.Flags().StringVar(&f.configPath, "config", config.DefaultPath(), "config file")
	root.Flags().BoolVar(&f.headless, "headless", false, "run Chrome without a window")
	root.Flags().StringVar(&f.speed, "speed", "", "start speed: slow, medium or fast")
	root.Flags().BoolVar(&f.debug, "debug", false, "debug logging")
	return root
}

// loadConfig reads the config file and lets explicit flags win over it.
func loadConfig(cmd *cobra.Command, f cliFlags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = f.headless
	}
	if f.speed != "" {
		cfg.StartSpeed = f.speed
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

func prompt(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter search term: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read search term: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// openLogger writes structured logs to the configured file; the terminal
// belongs to the dashboard.
func openLogger(cfg config.Config) (*slog.Logger, func(), error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})).
		With("session_id", uuid.NewString())
	return log, func() { _ = f.Close() }, nil
}

func run(ctx context.Context, cfg config.Config, fast bool, query string, out io.Writer) error {
	log, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, strings.Repeat("=", 60))
	if fast {
		fmt.Fprintln(out, "         assa - fast demo mode")
	} else {
		fmt.Fprintln(out, "    automated scrolling search agent - initializing")
	}
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "[INFO] Search query: %q\n", query)
	fmt.Fprintln(out, "[INFO] Launching browser...")

	driver, err := browser.Launch(browser.Options{
		Headless:  cfg.Headless,
		ChromeBin: cfg.ChromeBin,
		Timeout:   cfg.Timeout,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	queue := input.NewQueue()
	ctrl, err := session.New(driver, dashboard.New(out), queue, tracker.New(log), session.Options{
		StartSpeed: cfg.Speed(),
		EndHold:    cfg.EndHold,
		Logger:     log,
	})
	if err != nil {
		_ = driver.Shutdown()
		return err
	}

	kb := input.NewKeyboard(os.Stdin, int(os.Stdin.Fd()), queue,
		input.WithHoldWindow(cfg.HoldWindow),
		input.WithLogger(log),
	)
	live := true
	if err := kb.Start(); err != nil {
		live = false
		log.Warn("live control disabled", "err", err)
		fmt.Fprintln(out, "[WARNING] Keyboard control unavailable, scrolling on autopilot")
	} else {
		defer kb.Close()
	}

	searchCtx, stopSearch := quitContext(ctx, queue)
	urls, err := resolveURLs(searchCtx, cfg, fast, query, driver, log)
	quitDuringSearch := err != nil && ctx.Err() == nil && searchCtx.Err() != nil
	stopSearch()
	switch {
	case quitDuringSearch:
		log.Info("quit during search")
		urls = nil
	case err != nil:
		_ = ctrl.Cleanup()
		return err
	}

	var keys <-chan struct{}
	if live {
		keys = kb.Done()
	}
	return supervise(ctx, log, keys, func(ctx context.Context) error {
		return ctrl.Run(ctx, urls)
	})
}

// quitContext is cancelled with ctx or as soon as a Quit is queued. In raw
// mode Ctrl-C arrives as a key, not as SIGINT.
func quitContext(ctx context.Context, q *input.Queue) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-q.QuitRequested():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// supervise runs session next to a watcher on the keyboard reader. A panic
// in session is returned as an error, so the caller's deferred terminal
// restore still runs. keys may be nil.
func supervise(ctx context.Context, log *slog.Logger, keys <-chan struct{}, session func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error("session panicked", "panic", r)
				err = fmt.Errorf("session panic: %v", r)
			}
		}()
		return session(ctx)
	})
	if keys != nil {
		g.Go(func() error {
			select {
			case <-keys:
				if ctx.Err() == nil {
					log.Warn("keyboard input closed, continuing on autopilot")
				}
			case <-ctx.Done():
			}
			return nil
		})
	}
	return g.Wait()
}

func resolveURLs(ctx context.Context, cfg config.Config, fast bool, query string, driver *browser.Driver, log *slog.Logger) ([]string, error) {
	if fast {
		if len(cfg.DemoLinks) > 0 {
			return cfg.DemoLinks, nil
		}
		return search.DemoLinks(), nil
	}
	s := search.New(driver,
		search.WithDemoLinks(cfg.DemoLinks),
		search.WithLogger(log),
	)
	urls, err := s.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return urls, nil
}

var _ session.Driver = (*browser.Driver)(nil)
var _ session.Describer = (*browser.Driver)(nil)
var _ scroll.Page = (*browser.Driver)(nil)
