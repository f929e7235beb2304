package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
}

func TestBarRendersLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	bar := New(&buf, WithClock(fixedClock), WithWidth(10))

	bar.Start("Scraping", 4)
	buf.Reset()
	bar.Update(1, 1)

	require.Equal(t,
		"\r[I 15:04:05] Scraping ██░░░░░░░░ 25.00% (1/4) | New This Session: 1",
		buf.String())
}

func TestBarFinishEndsLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	bar := New(&buf, WithClock(fixedClock), WithWidth(4))

	bar.Start("Scraping", 2)
	buf.Reset()
	bar.Finish(2, 2)

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	require.Contains(t, out, "Finished ████ 100.00% (2/2) | New This Session: 2")
}

func TestBarEmptyTotalIsComplete(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	bar := New(&buf, WithClock(fixedClock), WithWidth(3))

	bar.Start("Scraping", 0)
	require.Contains(t, buf.String(), "███ 100.00% (0/0)")
}

func TestBarDefaultWidth(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	New(&buf, WithClock(fixedClock)).Start("Scraping", 10)
	require.Contains(t, buf.String(), strings.Repeat("░", 60))
}
