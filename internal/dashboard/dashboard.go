// Package dashboard renders the live session panel and the end-of-session
// summary to a terminal.
package dashboard

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/devbydaniel/assa/internal/session"
	"github.com/devbydaniel/assa/internal/tracker"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	hideCursor  = "\x1b[?25l"
	showCursor  = "\x1b[?25h"

	statusURLWidth  = 80
	summaryURLWidth = 60
)

// Dashboard is a session.StatusSink writing to a terminal. The panel is
// only redrawn when the snapshot changes.
type Dashboard struct {
	mu  sync.Mutex
	out io.Writer
	r   *lipgloss.Renderer

	last    session.Status
	drawn   bool
	stopped bool

	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	dim     lipgloss.Style
	panel   lipgloss.Style
	header  lipgloss.Style
	notice  lipgloss.Style
	border  lipgloss.Style
	success lipgloss.Style
}

func New(out io.Writer) *Dashboard {
	r := lipgloss.NewRenderer(out)
	return &Dashboard{
		out:   out,
		r:     r,
		title: r.NewStyle().Bold(true),
		label: r.NewStyle().Foreground(lipgloss.Color("7")).Width(10),
		value: r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#55CCFF"}),
		dim:   r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("7")).
			Padding(0, 1),
		header: r.NewStyle().
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}).
			Padding(0, 2),
		notice: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}).
			Padding(0, 1),
		border:  r.NewStyle().Foreground(lipgloss.Color("7")),
		success: r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
	}
}

// OnStatus redraws the live panel if s differs from what is on screen.
func (d *Dashboard) OnStatus(s session.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || (d.drawn && s == d.last) {
		return
	}
	prefix := clearScreen
	if !d.drawn {
		prefix = hideCursor + clearScreen
	}
	_ = d.write(prefix + d.renderStatus(s) + "\n")
	d.last = s
	d.drawn = true
}

func (d *Dashboard) renderStatus(s session.Status) string {
	row := func(k, v string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, d.label.Render(k), d.value.Render(v))
	}

	rows := []string{
		d.title.Render("ASSA"),
		"",
		row("SITE:", fmt.Sprintf("%d/%d", s.Index, s.Total)),
		row("URL:", truncate(s.URL, statusURLWidth)),
	}
	if s.Title != "" {
		rows = append(rows, row("TITLE:", truncate(s.Title, statusURLWidth)))
	}
	if s.ReadingTime > 0 {
		rows = append(rows, row("READ:", "~"+readTime(s.ReadingTime)))
	}
	rows = append(rows,
		row("SPEED:", strings.ToUpper(s.Speed.String())),
		row("STATUS:", strings.ToUpper(string(s.Phase))),
		"",
		d.dim.Render("KEY BINDINGS:"),
		d.dim.Render("[1] Slow   [2] Medium   [3] Fast"),
		d.dim.Render("[p] Pause/Resume   [n] Next   [b] Prev   [q] Quit"),
	)
	return d.panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// OnSummary replaces the live panel with the per-site table.
func (d *Dashboard) OnSummary(records []tracker.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	_ = d.write(clearScreen + d.renderSummary(records) + "\n")
}

func (d *Dashboard) renderSummary(records []tracker.Record) string {
	var b strings.Builder
	b.WriteString(d.header.Render("SESSION COMPLETED"))
	b.WriteString("\n\n")

	if len(records) == 0 {
		b.WriteString(d.notice.Render(d.dim.Render("No sites were visited during this session.")))
		return b.String()
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(d.border).
		Headers("#", "URL", "DURATION").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := d.r.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return s.Bold(true)
			case col == 2:
				return s.Inherit(d.success)
			}
			return s
		})

	var total time.Duration
	for i, r := range records {
		t.Row(strconv.Itoa(i+1), truncate(r.URL, summaryURLWidth), r.Duration())
		total += r.TimeSpent
	}

	b.WriteString("SESSION SUMMARY\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d sites, %s total\n\n", len(records), tracker.FormatDuration(total)))
	b.WriteString(d.dim.Render("thank you for using ASSA - automated search scrolling agent"))
	return b.String()
}

// Stop ends live drawing and restores the cursor. Idempotent.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	wasDrawn := d.drawn
	d.stopped = true
	d.drawn = false
	if wasDrawn {
		return d.write(showCursor)
	}
	return nil
}

// write emits s with CRLF line endings so the panel lines up while the
// terminal is in raw mode.
func (d *Dashboard) write(s string) error {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	_, err := io.WriteString(d.out, strings.ReplaceAll(s, "\n", "\r\n"))
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func readTime(d time.Duration) string {
	mins := int(d.Round(time.Minute) / time.Minute)
	if mins < 1 {
		return "<1 min"
	}
	return fmt.Sprintf("%d min", mins)
}
