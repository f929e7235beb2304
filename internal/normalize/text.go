package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
)

var (
	htmlTag     = regexp.MustCompile(`<[^>]*>`)
	ordinal     = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)
	numberToken = regexp.MustCompile(`[0-9][0-9.,]*`)

	entities = strings.NewReplacer(
		"&quot;", `"`,
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&#39;", "'",
		"&apos;", "'",
		"&nbsp;", " ",
	)
	lineBreaks = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
)

// releaseDateLayouts are tried in order after commas and ordinals are removed.
var releaseDateLayouts = []string{
	"2 Jan 2006",
	"Jan 2 2006",
	"2006-01-02",
	"2 January 2006",
	"January 2 2006",
	"Jan 2006",
	"January 2006",
	"2006",
}

// SanitizeText flattens free text to a single storage-safe line. Line breaks
// and tabs become spaces, tags become spaces, a fixed set of entities is
// decoded, the result is trimmed, and anything that is not printable UTF-8
// is dropped. Inner whitespace is left as is.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	s = lineBreaks.Replace(s)
	s = htmlTag.ReplaceAllString(s, " ")
	s = entities.Replace(s)
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar || (unicode.IsControl(r) && r != ' ') {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// ParseReleaseDate parses free-form release dates. It returns nil for empty,
// "coming soon" or unrecognized input and never fails.
func ParseReleaseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(strings.ToLower(strings.ReplaceAll(s, " ", "_")), "coming_soon") {
		return nil
	}
	s = strings.ReplaceAll(s, ",", " ")
	s = ordinal.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// ParsePrice extracts the first number from a localized price string. When
// both ',' and '.' appear the later one is the decimal separator; a single
// ',' is a decimal separator. Unparseable input yields 0.
func ParsePrice(s string) float64 {
	tok := strings.TrimRight(numberToken.FindString(s), ".,")
	if tok == "" {
		return 0
	}
	lastComma := strings.LastIndex(tok, ",")
	lastDot := strings.LastIndex(tok, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			tok = strings.ReplaceAll(tok, ".", "")
			tok = strings.Replace(tok, ",", ".", 1)
		} else {
			tok = strings.ReplaceAll(tok, ",", "")
		}
	case strings.Count(tok, ",") == 1:
		tok = strings.Replace(tok, ",", ".", 1)
	case lastComma >= 0:
		tok = strings.ReplaceAll(tok, ",", "")
	case strings.Count(tok, ".") > 1:
		tok = strings.ReplaceAll(tok, ".", "")
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

const audioFootnote = "languages with full audio support"

// SplitLanguages splits a supported-languages string. A trailing '*' marks
// full audio support; the footnote explaining the marker is removed.
func SplitLanguages(raw string) []catalog.Language {
	s := SanitizeText(raw)
	if i := strings.Index(strings.ToLower(s), audioFootnote); i >= 0 {
		s = s[:i]
	}
	var out []catalog.Language
	seen := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		audio := strings.HasSuffix(part, "*")
		name := strings.Join(strings.Fields(strings.ReplaceAll(part, "*", "")), " ")
		if name == "" {
			continue
		}
		if idx, dup := seen[name]; dup {
			out[idx].HasAudio = out[idx].HasAudio || audio
			continue
		}
		seen[name] = len(out)
		out = append(out, catalog.Language{Name: name, HasAudio: audio})
	}
	return out
}

// round rounds v to the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
