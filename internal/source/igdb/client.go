// Package igdb is the token-gated client for completion-time estimates.
package igdb

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/game-catalog-crawler/internal/endpoints"
	collyfetcher "github.com/JakeFAU/game-catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/game-catalog-crawler/internal/source"
)

// Credentials are the Twitch application credentials.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client queries IGDB. It is disabled when no token could be acquired.
type Client struct {
	twitch    endpoints.TwitchEndpoints
	igdb      endpoints.IGDBEndpoints
	requester source.Requester
	logger    *zap.Logger
	clientID  string
	token     string
}

// New exchanges the credentials for an access token once. A failed exchange
// leaves the client disabled rather than returning an error.
func New(
	ctx context.Context,
	creds Credentials,
	twitch endpoints.TwitchEndpoints,
	igdb endpoints.IGDBEndpoints,
	requester source.Requester,
	logger *zap.Logger,
) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		twitch:    twitch,
		igdb:      igdb,
		requester: requester,
		logger:    logger,
		clientID:  creds.ClientID,
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		logger.Warn("igdb disabled: missing twitch credentials")
		return c
	}
	c.token = c.exchange(ctx, creds)
	if c.token == "" {
		logger.Warn("igdb disabled: token exchange failed")
	} else {
		logger.Info("igdb access token acquired")
	}
	return c
}

// Enabled reports whether a token is available.
func (c *Client) Enabled() bool {
	return c != nil && c.token != ""
}

func (c *Client) exchange(ctx context.Context, creds Credentials) string {
	resp, err := c.requester.Do(ctx, collyfetcher.Request{
		Method: http.MethodPost,
		URL:    c.twitch.Token,
		Query: url.Values{
			"client_id":     {creds.ClientID},
			"client_secret": {creds.ClientSecret},
			"grant_type":    {"client_credentials"},
		},
	})
	if err != nil {
		c.logger.Error("twitch token request failed", zap.Error(err))
		return ""
	}
	return gjson.GetBytes(resp.Body, "access_token").String()
}

func (c *Client) query(ctx context.Context, endpoint, body string) (gjson.Result, bool) {
	resp, err := c.requester.Do(ctx, collyfetcher.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: http.Header{
			"Client-ID":     {c.clientID},
			"Authorization": {"Bearer " + c.token},
			"Accept":        {"application/json"},
		},
		Body: []byte(body),
	})
	if err != nil {
		c.logger.Warn("igdb request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return gjson.Result{}, false
	}
	if !gjson.ValidBytes(resp.Body) {
		c.logger.Warn("igdb returned malformed json", zap.String("endpoint", endpoint))
		return gjson.Result{}, false
	}
	first := gjson.ParseBytes(resp.Body).Get("0")
	return first, first.Exists()
}

// TimeToBeat looks a game up by exact name and returns its completion times.
func (c *Client) TimeToBeat(ctx context.Context, name string) (catalog.TimeToBeat, bool) {
	if !c.Enabled() || strings.TrimSpace(name) == "" {
		return catalog.TimeToBeat{}, false
	}
	game, ok := c.query(ctx, c.igdb.Games, fmt.Sprintf("fields id; where name = %s; limit 1;", quote(name)))
	if !ok {
		c.logger.Debug("igdb game not found", zap.String("name", name))
		return catalog.TimeToBeat{}, false
	}
	ttb, ok := c.query(ctx, c.igdb.TimeToBeat,
		fmt.Sprintf("fields hastily,normally,completely; where game_id = %d; limit 1;", game.Get("id").Int()))
	if !ok {
		return catalog.TimeToBeat{}, false
	}
	out := catalog.TimeToBeat{
		Hastily:    hours(ttb.Get("hastily")),
		Normally:   hours(ttb.Get("normally")),
		Completely: hours(ttb.Get("completely")),
	}
	return out, !out.Empty()
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// hours converts seconds to hours rounded to two decimals.
func hours(seconds gjson.Result) *float64 {
	if !seconds.Exists() || seconds.Float() <= 0 {
		return nil
	}
	h := math.Round(seconds.Float()/3600*100) / 100
	return &h
}
