// Package search finds the top result links for a query by driving the
// browser through a list of search engines until one returns something.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrExhausted means no engine produced any links.
var ErrExhausted = errors.New("all search engines returned no results")

// ErrBlocked means the engine served a CAPTCHA or similar.
var ErrBlocked = errors.New("search blocked")

// DefaultLimit is how many results a session visits.
const DefaultLimit = 5

// Fetcher loads a page and returns its HTML. *browser.Driver satisfies it.
type Fetcher interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
}

// Searcher runs the engine cascade.
type Searcher struct {
	fetch   Fetcher
	engines []Engine
	limit   int
	demo    []string
	poll    time.Duration
	log     *slog.Logger
}

type Option func(*Searcher)

func WithEngines(engines ...Engine) Option {
	return func(s *Searcher) { s.engines = engines }
}

func WithLimit(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithDemoLinks replaces the fallback list.
func WithDemoLinks(links []string) Option {
	return func(s *Searcher) {
		if len(links) > 0 {
			s.demo = links
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Searcher) { s.poll = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Searcher) { s.log = log }
}

func New(fetch Fetcher, opts ...Option) *Searcher {
	s := &Searcher{
		fetch:   fetch,
		engines: DefaultEngines(),
		limit:   DefaultLimit,
		demo:    DemoLinks(),
		poll:    500 * time.Millisecond,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "search")
	return s
}

// Search returns up to the limit of result URLs for query. When every engine
// comes back empty it returns the demo list instead; the only error is a
// done context.
func (s *Searcher) Search(ctx context.Context, query string) ([]string, error) {
	for _, e := range s.engines {
		links, err := s.query(ctx, e, query)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			s.log.Warn("engine failed", "engine", e.Name, "err", err)
			continue
		}
		if len(links) == 0 {
			s.log.Warn("engine returned no links", "engine", e.Name)
			continue
		}
		s.log.Info("search results", "engine", e.Name, "count", len(links))
		return links, nil
	}

	s.log.Warn("using demo links", "err", ErrExhausted, "count", len(s.demo))
	out := make([]string, len(s.demo))
	copy(out, s.demo)
	return out, nil
}

// query loads the engine's result page and polls its HTML until links show
// up or the engine's wait runs out.
func (s *Searcher) query(ctx context.Context, e Engine, query string) ([]string, error) {
	if err := s.fetch.Navigate(ctx, e.URL(query)); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(e.Wait)
	for {
		html, err := s.fetch.HTML(ctx)
		if err != nil {
			return nil, err
		}
		if e.Blocked != nil && e.Blocked(html) {
			return nil, fmt.Errorf("%s: %w", e.Name, ErrBlocked)
		}
		links, err := Extract(html, e, s.limit)
		if err != nil {
			return nil, err
		}
		if len(links) > 0 || !time.Now().Before(deadline) {
			return links, nil
		}

		t := time.NewTimer(s.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Extract pulls up to limit result links for engine e out of html. Only
// absolute http(s) links outside the engine's own domains are kept, each once.
func Extract(html string, e Engine, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s results: %w", e.Name, err)
	}

	var links []string
	seen := map[string]bool{}
	doc.Find(e.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if e.Anchor {
			sel = sel.Closest("a")
		}
		href, ok := sel.Attr("href")
		if !ok || seen[href] || !keep(href, e.Exclude) {
			return true
		}
		seen[href] = true
		links = append(links, href)
		return limit <= 0 || len(links) < limit
	})
	return links, nil
}

func keep(href string, exclude []string) bool {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, x := range exclude {
		if strings.Contains(host, x) {
			return false
		}
	}
	return true
}
