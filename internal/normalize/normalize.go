// Package normalize turns loosely typed upstream payloads into catalog
// records. Every function here is pure: no I/O and no shared state.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/steam"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/steamspy"
)

// Item builds the canonical record from the primary payload and, for games,
// the optional secondary payload. Each field is extracted independently;
// missing or malformed fields fall back to zero values.
func Item(primary steam.AppDetails, secondary *steamspy.AppDetails) catalog.Record {
	d := primary.Data
	rec := catalog.Record{
		ID:                  primary.ID,
		Type:                itemType(d.Get("type").String()),
		Name:                SanitizeText(d.Get("name").String()),
		ReleaseDate:         ParseReleaseDate(d.Get("release_date.date").String()),
		ComingSoon:          d.Get("release_date.coming_soon").Bool(),
		Price:               price(d.Get("price_overview")),
		Recommendations:     int(d.Get("recommendations.total").Int()),
		MetacriticScore:     int(d.Get("metacritic.score").Int()),
		MetacriticURL:       SanitizeText(d.Get("metacritic.url").String()),
		RequiredAge:         requiredAge(d.Get("required_age")),
		AchievementsCount:   int(d.Get("achievements.total").Int()),
		Windows:             d.Get("platforms.windows").Bool(),
		Mac:                 d.Get("platforms.mac").Bool(),
		Linux:               d.Get("platforms.linux").Bool(),
		HeaderImage:         SanitizeText(d.Get("header_image").String()),
		Website:             SanitizeText(d.Get("website").String()),
		SupportURL:          SanitizeText(d.Get("support_info.url").String()),
		SupportEmail:        SanitizeText(d.Get("support_info.email").String()),
		AboutTheGame:        SanitizeText(d.Get("about_the_game").String()),
		DetailedDescription: SanitizeText(d.Get("detailed_description").String()),
		ShortDescription:    SanitizeText(d.Get("short_description").String()),
		ReviewsSummary:      SanitizeText(d.Get("reviews").String()),
		BaseGameID:          baseGameID(primary.ID, d.Get("fullgame.appid")),
		Developers:          names(d.Get("developers"), ""),
		Publishers:          names(d.Get("publishers"), ""),
		Categories:          names(d.Get("categories"), "description"),
		Genres:              names(d.Get("genres"), "description"),
		Languages:           SplitLanguages(d.Get("supported_languages").String()),
	}
	if secondary != nil && rec.Type == catalog.TypeGame {
		mergeSecondary(&rec, secondary.Data)
	}
	return rec
}

func mergeSecondary(rec *catalog.Record, s gjson.Result) {
	rec.PositiveReviews = int(s.Get("positive").Int())
	rec.NegativeReviews = int(s.Get("negative").Int())
	rec.PeakCCU = int(s.Get("ccu").Int())
	rec.EstimatedOwners = strings.ReplaceAll(SanitizeText(s.Get("owners").String()), ",", "")
	rec.UserScore = int(s.Get("userscore").Int())
	rec.ScoreRank = SanitizeText(s.Get("score_rank").String())
	rec.AveragePlaytime = int(s.Get("average_forever").Int())
	rec.MedianPlaytime = int(s.Get("median_forever").Int())
	rec.Tags = tags(s.Get("tags"))
}

func itemType(s string) catalog.ItemType {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case "":
		return catalog.TypeUnknown
	default:
		return catalog.ItemType(t)
	}
}

// price prefers the formatted string and falls back to the integer amount
// in minor units.
func price(overview gjson.Result) float64 {
	if !overview.Exists() {
		return 0
	}
	if v := ParsePrice(overview.Get("final_formatted").String()); v > 0 {
		return v
	}
	if final := overview.Get("final"); final.Type == gjson.Number && final.Int() > 0 {
		return round(final.Float()/100, 2)
	}
	return 0
}

func requiredAge(v gjson.Result) int {
	if v.Type == gjson.Number {
		return int(v.Int())
	}
	s := strings.TrimSpace(strings.ReplaceAll(v.String(), "+", ""))
	age, err := strconv.Atoi(s)
	if err != nil || age < 0 {
		return 0
	}
	return age
}

func baseGameID(self int64, v gjson.Result) *int64 {
	if !v.Exists() {
		return nil
	}
	id := v.Int()
	if id <= 0 || id == self {
		return nil
	}
	return &id
}

// names reads a list of strings, or of objects when field is set, dropping
// blanks and duplicates.
func names(list gjson.Result, field string) []string {
	var out []string
	seen := map[string]struct{}{}
	list.ForEach(func(_, v gjson.Result) bool {
		if field != "" {
			v = v.Get(field)
		}
		name := SanitizeText(v.String())
		if name == "" {
			return true
		}
		if _, dup := seen[name]; dup {
			return true
		}
		seen[name] = struct{}{}
		out = append(out, name)
		return true
	})
	return out
}

// tags reads the name to vote-count object. The aggregator sends an empty
// array instead of an empty object, which yields no tags.
func tags(v gjson.Result) []catalog.Tag {
	if !v.IsObject() {
		return nil
	}
	var out []catalog.Tag
	v.ForEach(func(key, value gjson.Result) bool {
		if name := SanitizeText(key.String()); name != "" {
			out = append(out, catalog.Tag{Name: name, Value: int(value.Int())})
		}
		return true
	})
	return out
}

// Reviews converts a review page into reviews owned by itemID.
func Reviews(itemID int64, page steam.ReviewPage) []catalog.Review {
	var out []catalog.Review
	page.Reviews.ForEach(func(_, r gjson.Result) bool {
		id := r.Get("recommendationid").String()
		if id == "" {
			return true
		}
		review := catalog.Review{
			ID:          id,
			ItemID:      itemID,
			AuthorID:    r.Get("author.steamid").String(),
			Language:    r.Get("language").String(),
			Body:        SanitizeText(r.Get("review").String()),
			Recommended: r.Get("voted_up").Bool(),
			VotesUp:     int(r.Get("votes_up").Int()),
			VotesFunny:  int(r.Get("votes_funny").Int()),
		}
		if ts := r.Get("timestamp_created").Int(); ts > 0 {
			review.CreatedAt = time.Unix(ts, 0).UTC()
		}
		out = append(out, review)
		return true
	})
	return out
}

// Achievements converts the schema plus percentages into achievements.
// Completion rate is the percentage as a fraction, clamped to [0, 1] and
// rounded to four decimals.
func Achievements(itemID int64, a steam.Achievements) []catalog.Achievement {
	var out []catalog.Achievement
	a.Schema.ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name").String()
		if name == "" {
			return true
		}
		rate := a.Percentages[name] / 100
		switch {
		case rate < 0:
			rate = 0
		case rate > 1:
			rate = 1
		}
		out = append(out, catalog.Achievement{
			ItemID:         itemID,
			APIName:        name,
			DisplayName:    SanitizeText(v.Get("displayName").String()),
			Description:    SanitizeText(v.Get("description").String()),
			CompletionRate: round(rate, 4),
		})
		return true
	})
	return out
}
