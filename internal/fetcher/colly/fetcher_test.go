package collyfetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/game-catalog-crawler/internal/policy/retry"
)

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}

type countingLimiter struct{ calls atomic.Int32 }

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return nil
}

func TestDoGetWithQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "730", r.URL.Query().Get("appids"))
		require.Equal(t, "catalog-agent", r.UserAgent())
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	f := New(Config{UserAgent: "catalog-agent", Timeout: time.Second}, WithLimiter(limiter))
	resp, err := f.Get(context.Background(), srv.URL+"/api", url.Values{"appids": {"730"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(resp.Body))
	require.Equal(t, int32(1), limiter.calls.Load())
}

func TestDoPostBodyAndHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "client", r.Header.Get("Client-ID"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := New(Config{})
	resp, err := f.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Header: http.Header{"Client-ID": {"client"}},
		Body:   []byte("fields id; limit 1;"),
	})
	require.NoError(t, err)
	require.Equal(t, "fields id; limit 1;", string(resp.Body))
}

func TestDoReturnsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{}, WithRetryPolicy(retry.NewExponentialPolicy(3, time.Millisecond, time.Millisecond)), WithPauser(noPause{}))
	_, err := f.Get(context.Background(), srv.URL, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestDoRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "done")
	}))
	defer srv.Close()

	f := New(Config{}, WithRetryPolicy(retry.NewExponentialPolicy(3, time.Millisecond, time.Millisecond)), WithPauser(noPause{}))
	resp, err := f.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, "done", string(resp.Body))
	require.Equal(t, int32(3), hits.Load())
}

func TestDoHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{Timeout: 5 * time.Second}).Get(ctx, srv.URL, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := Request{URL: "https://example.com", Header: http.Header{"X-Trace": {"yes"}}}
	var (
		result   Response
		fetchErr error
	)
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	target, err := url.Parse("https://example.com")
	require.NoError(t, err)
	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: target},
	})
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "ok", result.Header.Get("X-Resp"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func TestFullURLMergesQuery(t *testing.T) {
	t.Parallel()

	got, err := Request{URL: "https://example.com/api?json=1", Query: url.Values{"appid": {"5"}}}.fullURL()
	require.NoError(t, err)
	require.Equal(t, "https://example.com/api?appid=5&json=1", got)
}
