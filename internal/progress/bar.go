// Package progress renders the single overwritten console status line.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const defaultWidth = 60

// Bar writes "\r[I hh:mm:ss] <phase> <bar> <pct>% (<done>/<total>) | New This Session: <n>".
// Styling is applied only when the writer supports color.
type Bar struct {
	mu     sync.Mutex
	out    io.Writer
	now    func() time.Time
	width  int
	filled lipgloss.Style
	empty  lipgloss.Style
	phase  string
	total  int
}

// Option customizes a Bar.
type Option func(*Bar)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bar) { b.now = now }
}

// WithWidth overrides the number of bar cells.
func WithWidth(width int) Option {
	return func(b *Bar) {
		if width > 0 {
			b.width = width
		}
	}
}

// New builds a Bar writing to out. A nil writer discards output.
func New(out io.Writer, opts ...Option) *Bar {
	if out == nil {
		out = io.Discard
	}
	r := lipgloss.NewRenderer(out)
	b := &Bar{
		out:    out,
		now:    time.Now,
		width:  defaultWidth,
		filled: r.NewStyle().Foreground(lipgloss.Color("#7C3AED")),
		empty:  r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start sets the phase label and total and draws the empty bar.
func (b *Bar) Start(phase string, total int) {
	b.mu.Lock()
	b.phase = phase
	b.total = total
	b.mu.Unlock()
	b.Update(0, 0)
}

// Update redraws the line.
func (b *Bar) Update(done, newItems int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draw(done, newItems)
}

// Finish draws the final line and ends it with a newline.
func (b *Bar) Finish(done, newItems int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = "Finished"
	b.draw(done, newItems)
	_, _ = io.WriteString(b.out, "\n")
}

func (b *Bar) draw(done, newItems int) {
	_, _ = io.WriteString(b.out, b.line(done, newItems))
}

func (b *Bar) line(done, newItems int) string {
	fraction := 1.0
	if b.total > 0 {
		fraction = float64(done) / float64(b.total)
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	filled := int(float64(b.width) * fraction)
	bar := b.filled.Render(strings.Repeat("█", filled)) +
		b.empty.Render(strings.Repeat("░", b.width-filled))
	return fmt.Sprintf("\r[I %s] %s %s %.2f%% (%d/%d) | New This Session: %d",
		b.now().Format("15:04:05"), b.phase, bar, fraction*100, done, b.total, newItems)
}
