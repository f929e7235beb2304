package steam

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/game-catalog-crawler/internal/endpoints"
	collyfetcher "github.com/JakeFAU/game-catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/game-catalog-crawler/internal/universe"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	eps := endpoints.SteamEndpoints{
		AppList:                srv.URL + "/applist",
		AppDetails:             srv.URL + "/appdetails",
		Reviews:                srv.URL + "/appreviews/{appid}",
		AchievementSchema:      srv.URL + "/schema",
		AchievementPercentages: srv.URL + "/percentages",
	}
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	return New(Config{APIKey: "key", CountryCode: "us", Language: "english"}, eps, fetcher, nil)
}

func TestAppListPaginates(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/applist", r.URL.Path)
		require.Equal(t, "key", r.URL.Query().Get("key"))
		switch r.URL.Query().Get("last_appid") {
		case "":
			_, _ = io.WriteString(w, `{"response":{"apps":[{"appid":10},{"appid":20}],"have_more_results":true,"last_appid":20}}`)
		case "20":
			_, _ = io.WriteString(w, `{"response":{"apps":[{"appid":30}]}}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	ids, complete := c.AppList(context.Background())
	require.True(t, complete)
	require.Equal(t, []int64{10, 20, 30}, ids)
}

func TestAppListLegacyShape(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"applist":{"apps":[{"appid":1,"name":"a"},{"appid":2,"name":"b"}]}}`)
	})
	ids, complete := c.AppList(context.Background())
	require.True(t, complete)
	require.Equal(t, []int64{1, 2}, ids)
}

func TestAppListLaterPageFailureIsIncomplete(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("last_appid") == "" {
			_, _ = io.WriteString(w, `{"response":{"apps":[{"appid":10},{"appid":20}],"have_more_results":true,"last_appid":20}}`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ids, complete := c.AppList(context.Background())
	require.False(t, complete)
	require.Equal(t, []int64{10, 20}, ids)
}

func TestPartialAppListIsNotCachedAsUniverse(t *testing.T) {
	t.Parallel()

	var complete atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("last_appid") {
		case "":
			_, _ = io.WriteString(w, `{"response":{"apps":[{"appid":10},{"appid":20}],"have_more_results":true,"last_appid":20}}`)
		default:
			if !complete.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, `{"response":{"apps":[{"appid":30}]}}`)
		}
	})

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "applist.json")
	cache, closeFn, err := universe.Open(ctx, path, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	ids, err := cache.Resolve(ctx, c.AppList)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 20}, ids)
	_, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	complete.Store(true)
	ids, err = cache.Resolve(ctx, c.AppList)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 20, 30}, ids)
	cached, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int64{10, 20, 30}, cached)
}

func TestAppListStalledCursorIsIncomplete(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"response":{"apps":[{"appid":5}],"have_more_results":true,"last_appid":0}}`)
	})
	ids, complete := c.AppList(context.Background())
	require.False(t, complete)
	require.Equal(t, []int64{5}, ids)
}

func TestAppListFailureIsEmpty(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ids, complete := c.AppList(context.Background())
	require.False(t, complete)
	require.Empty(t, ids)
}

func TestAppDetails(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "us", q.Get("cc"))
		switch q.Get("appids") {
		case "730":
			_, _ = io.WriteString(w, `{"730":{"success":true,"data":{"type":"game","name":"Counter-Strike 2"}}}`)
		case "5":
			_, _ = io.WriteString(w, `{"5":{"success":false}}`)
		case "6":
			_, _ = io.WriteString(w, `{"6":{"success":true,`)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	})
	ctx := context.Background()

	details, ok := c.AppDetails(ctx, 730)
	require.True(t, ok)
	require.Equal(t, int64(730), details.ID)
	require.Equal(t, "game", details.Type())
	require.Equal(t, "Counter-Strike 2", details.Data.Get("name").String())

	for _, id := range []int64{5, 6, 7} {
		_, ok := c.AppDetails(ctx, id)
		require.False(t, ok, id)
	}
}

func TestReviews(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "/appreviews/730", r.URL.Path)
		require.Equal(t, "20", q.Get("num_per_page"))
		require.Equal(t, "english", q.Get("language"))
		require.Equal(t, "1", q.Get("filter_offtopic_activity"))
		_, _ = io.WriteString(w, `{"success":1,"reviews":[{"recommendationid":"1"},{"recommendationid":"2"}]}`)
	})
	page, ok := c.Reviews(context.Background(), 730)
	require.True(t, ok)
	require.Len(t, page.Reviews.Array(), 2)
}

func TestAchievementsMergesPercentages(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/schema":
			require.Equal(t, "730", r.URL.Query().Get("appid"))
			_, _ = io.WriteString(w, `{"game":{"availableGameStats":{"achievements":[{"name":"WIN","displayName":"Win"}]}}}`)
		case "/percentages":
			require.Equal(t, "730", r.URL.Query().Get("gameid"))
			_, _ = io.WriteString(w, `{"achievementpercentages":{"achievements":[{"name":"WIN","percent":"42.5"}]}}`)
		}
	})
	ach, ok := c.Achievements(context.Background(), 730)
	require.True(t, ok)
	require.Len(t, ach.Schema.Array(), 1)
	require.InDelta(t, 42.5, ach.Percentages["WIN"], 1e-9)
}

func TestAchievementsWithoutPercentages(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/schema" {
			_, _ = io.WriteString(w, `{"game":{"availableGameStats":{"achievements":[{"name":"WIN"}]}}}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})
	ach, ok := c.Achievements(context.Background(), 730)
	require.True(t, ok)
	require.Empty(t, ach.Percentages)
}

func TestAchievementsEmptySchemaIsAbsent(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"game":{}}`)
	})
	_, ok := c.Achievements(context.Background(), 730)
	require.False(t, ok)
}
