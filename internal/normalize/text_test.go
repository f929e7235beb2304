package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
)

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"Great <b>game</b>!\n":        "Great  game !",
		"":                            "",
		"  Tom &amp; Jerry  ":         "Tom & Jerry",
		"line\r\nbreak":               "line  break",
		"bell\x07ring":                "bellring",
		"caf\xe9":                     "caf",
		"<p>&quot;Quoted&quot;</p>":   `"Quoted"`,
		"Pokémon ★":                   "Pokémon ★",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeText(in), "input %q", in)
	}
}

func TestParseReleaseDate(t *testing.T) {
	date := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	cases := []struct {
		in   string
		want *time.Time
	}{
		{"Mar 1, 2004", date(2004, time.March, 1)},
		{"1 Mar, 2004", date(2004, time.March, 1)},
		{"1st Mar, 2004", date(2004, time.March, 1)},
		{"22nd August, 2019", date(2019, time.August, 22)},
		{"2019-08-22", date(2019, time.August, 22)},
		{"Aug 2019", date(2019, time.August, 1)},
		{"2019", date(2019, time.January, 1)},
		{"coming_soon", nil},
		{"Coming soon", nil},
		{"", nil},
		{"1st", nil},
		{"To be announced", nil},
	}
	for _, tc := range cases {
		got := ParseReleaseDate(tc.in)
		if tc.want == nil {
			require.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		require.True(t, tc.want.Equal(*got), "input %q: got %v", tc.in, got)
	}
}

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"$19.99":       19.99,
		"Free to Play": 0,
		"":             0,
		"19,99€":       19.99,
		"1.299,99€":    1299.99,
		"$1,299.99":    1299.99,
		"Rp 1.299.000": 1299000,
		"1,234,567":    1234567,
		"CDN$ 5.":      5,
	}
	for in, want := range cases {
		require.InDelta(t, want, ParsePrice(in), 1e-9, "input %q", in)
	}
}

func TestSplitLanguages(t *testing.T) {
	raw := "English<strong>*</strong>, French, German<strong>*</strong>, French" +
		"<br><strong>*</strong>languages with full audio support"
	require.Equal(t, []catalog.Language{
		{Name: "English", HasAudio: true},
		{Name: "French"},
		{Name: "German", HasAudio: true},
	}, SplitLanguages(raw))
	require.Empty(t, SplitLanguages(""))
}
