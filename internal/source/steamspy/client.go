// Package steamspy is the client for the secondary aggregator API.
package steamspy

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

// AppDetails is the aggregator payload for one item.
type AppDetails struct {
	ID   int64
	Data gjson.Result
}

// Client fetches aggregator data.
type Client struct {
	endpoints endpoints.SteamSpyEndpoints
	requester source.Requester
	logger    *zap.Logger
}

// New builds a Client.
func New(eps endpoints.SteamSpyEndpoints, requester source.Requester, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{endpoints: eps, requester: requester, logger: logger}
}

// AppDetails fetches one item. Payloads without a developer are treated as
// absent; the aggregator answers unknown ids with an empty shell.
func (c *Client) AppDetails(ctx context.Context, id int64) (AppDetails, bool) {
	resp, err := c.requester.Do(ctx, collyfetcher.Request{
		Method: http.MethodGet,
		URL:    endpoints.Expand(c.endpoints.AppDetails, id),
		Query:  url.Values{"request": {"appdetails"}, "appid": {strconv.FormatInt(id, 10)}},
	})
	if err != nil {
		c.logger.Warn("steamspy request failed", zap.Int64("item_id", id), zap.Error(err))
		return AppDetails{}, false
	}
	if !gjson.ValidBytes(resp.Body) {
		c.logger.Warn("steamspy returned malformed json", zap.Int64("item_id", id))
		return AppDetails{}, false
	}
	doc := gjson.ParseBytes(resp.Body)
	if doc.Get("developer").String() == "" {
		return AppDetails{}, false
	}
	return AppDetails{ID: id, Data: doc}, true
}
