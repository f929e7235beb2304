// Package steam is the client for the primary catalog API.
package steam

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/endpoints"
	collyfetcher "github.com/JakeFAU/game-catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/game-catalog-crawler/internal/source"
)

// Config carries the request parameters sent to the catalog API.
type Config struct {
	APIKey         string
	CountryCode    string
	Language       string
	ReviewLanguage string
	ReviewPageSize int
	// AppListPageSize bounds each page of the paginated app list.
	AppListPageSize int
}

// AppDetails is the `data` object of an app details response.
type AppDetails struct {
	ID   int64
	Data gjson.Result
}

// Type returns the item type string reported by the catalog.
func (d AppDetails) Type() string {
	return d.Data.Get("type").String()
}

// ReviewPage is one page of the review endpoint.
type ReviewPage struct {
	ItemID  int64
	Reviews gjson.Result
}

// Achievements pairs the achievement schema with global unlock percentages.
type Achievements struct {
	ItemID int64
	// Schema is the array of achievement definitions.
	Schema gjson.Result
	// Percentages maps api name to percent in [0, 100].
	Percentages map[string]float64
}

// Client fetches catalog data.
type Client struct {
	cfg       Config
	endpoints endpoints.SteamEndpoints
	requester source.Requester
	logger    *zap.Logger
}

// New builds a Client.
func New(cfg Config, eps endpoints.SteamEndpoints, requester source.Requester, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReviewPageSize <= 0 {
		cfg.ReviewPageSize = 20
	}
	if cfg.ReviewLanguage == "" {
		cfg.ReviewLanguage = "english"
	}
	if cfg.AppListPageSize <= 0 {
		cfg.AppListPageSize = 50000
	}
	return &Client{cfg: cfg, endpoints: eps, requester: requester, logger: logger}
}

// getJSON performs a GET and returns the parsed body, or false on any failure.
func (c *Client) getJSON(ctx context.Context, op, rawURL string, query url.Values) (gjson.Result, bool) {
	resp, err := c.requester.Do(ctx, collyfetcher.Request{Method: http.MethodGet, URL: rawURL, Query: query})
	if err != nil {
		c.logger.Warn("steam request failed", zap.String("op", op), zap.Error(err))
		return gjson.Result{}, false
	}
	if len(resp.Body) == 0 || !gjson.ValidBytes(resp.Body) {
		c.logger.Warn("steam returned malformed json", zap.String("op", op), zap.Int("bytes", len(resp.Body)))
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(resp.Body), true
}

// AppList fetches every item id in the catalog. Both the legacy
// `applist.apps` shape and the paginated `response.apps` shape are accepted.
// complete is false when any page failed or ctx ended before the last page;
// ids then holds only what was collected.
func (c *Client) AppList(ctx context.Context) (ids []int64, complete bool) {
	var lastID int64
	for page := 0; ; page++ {
		query := url.Values{}
		if c.cfg.APIKey != "" {
			query.Set("key", c.cfg.APIKey)
		}
		query.Set("max_results", strconv.Itoa(c.cfg.AppListPageSize))
		if lastID > 0 {
			query.Set("last_appid", strconv.FormatInt(lastID, 10))
		}
		doc, ok := c.getJSON(ctx, "app_list", c.endpoints.AppList, query)
		if !ok {
			if page > 0 {
				c.logger.Warn("app list pagination stopped early", zap.Int("pages", page), zap.Int("ids", len(ids)))
			}
			return ids, false
		}
		if legacy := doc.Get("applist.apps"); legacy.Exists() {
			return appendIDs(ids, legacy), ctx.Err() == nil
		}
		ids = appendIDs(ids, doc.Get("response.apps"))
		if !doc.Get("response.have_more_results").Bool() {
			return ids, ctx.Err() == nil
		}
		next := doc.Get("response.last_appid").Int()
		if next <= lastID {
			c.logger.Warn("app list cursor did not advance", zap.Int64("last_appid", next), zap.Int("ids", len(ids)))
			return ids, false
		}
		lastID = next
	}
}

func appendIDs(ids []int64, apps gjson.Result) []int64 {
	apps.ForEach(func(_, app gjson.Result) bool {
		if id := app.Get("appid").Int(); id > 0 {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// AppDetails fetches one item. It is absent when the catalog reports
// success=false or the call fails.
func (c *Client) AppDetails(ctx context.Context, id int64) (AppDetails, bool) {
	key := strconv.FormatInt(id, 10)
	query := url.Values{"appids": {key}}
	if c.cfg.CountryCode != "" {
		query.Set("cc", c.cfg.CountryCode)
	}
	if c.cfg.Language != "" {
		query.Set("l", c.cfg.Language)
	}
	doc, ok := c.getJSON(ctx, "app_details", endpoints.Expand(c.endpoints.AppDetails, id), query)
	if !ok {
		return AppDetails{}, false
	}
	entry := doc.Get(key)
	if !entry.Get("success").Bool() {
		return AppDetails{}, false
	}
	data := entry.Get("data")
	if !data.IsObject() {
		return AppDetails{}, false
	}
	return AppDetails{ID: id, Data: data}, true
}

// Reviews fetches the first page of reviews.
func (c *Client) Reviews(ctx context.Context, id int64) (ReviewPage, bool) {
	query := url.Values{
		"json":                          {"1"},
		"num_per_page":                  {strconv.Itoa(c.cfg.ReviewPageSize)},
		"language":                      {c.cfg.ReviewLanguage},
		"filter_offtopic_activity":      {"1"},
		"filter_user_generated_content": {"1"},
	}
	doc, ok := c.getJSON(ctx, "reviews", endpoints.Expand(c.endpoints.Reviews, id), query)
	if !ok || doc.Get("success").Int() != 1 {
		return ReviewPage{}, false
	}
	reviews := doc.Get("reviews")
	if !reviews.IsArray() {
		return ReviewPage{}, false
	}
	return ReviewPage{ItemID: id, Reviews: reviews}, true
}

// Achievements fetches the achievement schema and global percentages. A
// missing percentages response degrades every rate to zero.
func (c *Client) Achievements(ctx context.Context, id int64) (Achievements, bool) {
	key := strconv.FormatInt(id, 10)
	query := url.Values{"appid": {key}}
	if c.cfg.APIKey != "" {
		query.Set("key", c.cfg.APIKey)
	}
	if c.cfg.Language != "" {
		query.Set("l", c.cfg.Language)
	}
	doc, ok := c.getJSON(ctx, "achievement_schema", endpoints.Expand(c.endpoints.AchievementSchema, id), query)
	if !ok {
		return Achievements{}, false
	}
	schema := doc.Get("game.availableGameStats.achievements")
	if !schema.IsArray() || len(schema.Array()) == 0 {
		return Achievements{}, false
	}

	out := Achievements{ItemID: id, Schema: schema, Percentages: map[string]float64{}}
	pct, ok := c.getJSON(ctx, "achievement_percentages",
		endpoints.Expand(c.endpoints.AchievementPercentages, id), url.Values{"gameid": {key}})
	if ok {
		pct.Get("achievementpercentages.achievements").ForEach(func(_, a gjson.Result) bool {
			out.Percentages[a.Get("name").String()] = a.Get("percent").Float()
			return true
		})
	}
	return out, true
}
