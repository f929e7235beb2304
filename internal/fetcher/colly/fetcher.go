// Package collyfetcher implements the request helper every source client is
// composed with. Requests run through a gocolly collector.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/game-catalog-crawler/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize caps response bodies in bytes; zero means unlimited.
	MaxBodySize int
}

// Request describes a single upstream call.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a completed upstream call.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// HTTPStatus exposes the status code to retry policies.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// RetryPolicy decides whether a failed attempt is repeated.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Pauser sleeps between retries.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter installs a per-host limiter.
func WithLimiter(l Limiter) Option { return func(f *Fetcher) { f.limiter = l } }

// WithRetryPolicy installs a retry policy. Without one every request is tried once.
func WithRetryPolicy(p RetryPolicy) Option { return func(f *Fetcher) { f.retry = p } }

// WithPauser replaces the timer used between retries.
func WithPauser(p Pauser) Option { return func(f *Fetcher) { f.pauser = p } }

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Collectors) Option { return func(f *Fetcher) { f.metrics = m } }

// Fetcher executes API requests using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	limiter       Limiter
	retry         RetryPolicy
	pauser        Pauser
	metrics       *metrics.Collectors
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	transport := newHTTPTransport()
	c.WithTransport(transport)

	f := &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		pauser:        timerPauser{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do executes req, retrying per the configured policy.
func (f *Fetcher) Do(ctx context.Context, req Request) (Response, error) {
	target, err := req.fullURL()
	if err != nil {
		return Response{}, err
	}
	for attempt := 1; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, target); err != nil {
				return Response{}, err
			}
		}
		resp, err := f.once(ctx, req, target)
		f.metrics.ObserveRequest(target, outcomeOf(err), resp.Duration)
		if err == nil {
			return resp, nil
		}
		if f.retry == nil || !f.retry.ShouldRetry(err, attempt) {
			return resp, err
		}
		f.pauser.Pause(ctx, f.retry.Backoff(attempt-1))
		if ctx.Err() != nil {
			return resp, fmt.Errorf("retry canceled: %w", ctx.Err())
		}
	}
}

// Get is Do for a GET with query parameters.
func (f *Fetcher) Get(ctx context.Context, rawURL string, query url.Values) (Response, error) {
	return f.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query})
}

func (f *Fetcher) once(ctx context.Context, req Request, target string) (Response, error) {
	var (
		result   Response
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(req, start, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, req, target, &fetchErr); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}
	if result.StatusCode < 200 || result.StatusCode > 299 {
		return result, &StatusError{URL: target, StatusCode: result.StatusCode}
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	req Request,
	start time.Time,
	result *Response,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = f.cfg.MaxBodySize
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	transport := f.transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	collector.WithTransport(transport)

	f.configureCollectorHooks(collector, req, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	req Request,
	start time.Time,
	result *Response,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(req.Header, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		var header http.Header
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		*result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Header:     header,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	req Request,
	target string,
	fetchErr *error,
) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	done := make(chan error, 1)
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	go func() {
		done <- collector.Request(method, target, body, nil, nil)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil && *fetchErr == nil {
			return fmt.Errorf("colly request failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (r Request) fullURL() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for key, values := range r.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func copyHeaders(h http.Header, r *colly.Request) {
	if h == nil {
		return
	}
	for key, values := range h {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func outcomeOf(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &statusErr):
		return metrics.OutcomeHTTPError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeNetwork
	}
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
}
