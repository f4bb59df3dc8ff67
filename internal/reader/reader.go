// Package reader pulls the readable article out of a page.
package reader

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// WordsPerMinute is the reading speed used for ReadingTime.
const WordsPerMinute = 230

// Timeout caps a single extraction; readability can be slow on large pages.
var Timeout = 10 * time.Second

// Summary describes a page's main content.
type Summary struct {
	Title       string
	Words       int
	ReadingTime time.Duration
}

// Extract runs readability over html. pageURL resolves relative links.
func Extract(html, pageURL string) (Summary, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Summary{}, err
	}

	type result struct {
		summary Summary
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		article, err := readability.FromReader(strings.NewReader(html), parsed)
		if err != nil {
			ch <- result{err: err}
			return
		}
		words := len(strings.Fields(article.TextContent))
		ch <- result{summary: Summary{
			Title:       strings.TrimSpace(article.Title),
			Words:       words,
			ReadingTime: readingTime(words),
		}}
	}()

	select {
	case r := <-ch:
		return r.summary, r.err
	case <-time.After(Timeout):
		return Summary{}, fmt.Errorf("readability extraction timed out")
	}
}

func readingTime(words int) time.Duration {
	if words == 0 {
		return 0
	}
	return time.Duration(words) * time.Minute / WordsPerMinute
}
