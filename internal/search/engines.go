package search

import (
	"net/url"
	"strings"
	"time"
)

// Engine describes how to query one search site and where its result
// links live in the page.
type Engine struct {
	Name string
	// Endpoint is the search URL; the query is appended URL-encoded.
	Endpoint string
	// Selector matches result links, or an element inside one when Anchor
	// is set.
	Selector string
	Anchor   bool
	// Exclude drops links whose host contains any of these.
	Exclude []string
	// Wait bounds how long to poll for results to render.
	Wait time.Duration
	// Blocked reports a CAPTCHA/interstitial page. Nil means never.
	Blocked func(html string) bool
}

// URL returns the search URL for query.
func (e Engine) URL(query string) string {
	return e.Endpoint + url.QueryEscape(strings.TrimSpace(query))
}

var DuckDuckGo = Engine{
	Name:     "duckduckgo",
	Endpoint: "https://duckduckgo.com/?ia=web&q=",
	Selector: "article h2 a",
	Exclude:  []string{"duckduckgo.com"},
	Wait:     10 * time.Second,
}

var Bing = Engine{
	Name:     "bing",
	Endpoint: "https://www.bing.com/search?q=",
	Selector: "h2 a",
	Exclude:  []string{"bing.com", "microsoft.com"},
	Wait:     10 * time.Second,
}

var Google = Engine{
	Name:     "google",
	Endpoint: "https://www.google.com/search?q=",
	Selector: "a h3",
	Anchor:   true,
	Exclude:  []string{"google.com"},
	Wait:     5 * time.Second,
	Blocked: func(html string) bool {
		lower := strings.ToLower(html)
		return strings.Contains(lower, "unusual traffic") || strings.Contains(lower, "captcha")
	},
}

// DefaultEngines is the fallback order: cheapest to block last.
func DefaultEngines() []Engine {
	return []Engine{DuckDuckGo, Bing, Google}
}

// DemoLinks is the fixed list used in demo mode and when every engine fails.
func DemoLinks() []string {
	return []string{
		"https://news.ycombinator.com",
		"https://www.bbc.com/news",
		"https://www.reddit.com",
		"https://stackoverflow.com",
		"https://www.wikipedia.org",
	}
}
