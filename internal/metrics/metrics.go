// Package metrics exposes Prometheus collectors for the catalog crawler.
package metrics

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded per upstream host.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeNetwork   = "network_error"
	OutcomeCanceled  = "canceled"
)

// Collectors owns every crawler metric. A nil *Collectors is a valid no-op.
type Collectors struct {
	itemsTotal        *prometheus.CounterVec
	itemDuration      prometheus.Histogram
	upstreamRequests  *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	rateLimitDelay    *prometheus.HistogramVec
	crossRefsResolved prometheus.Counter
	universeSize      prometheus.Gauge
	newItemsThisEpoch prometheus.Gauge
	httpRequests      *prometheus.HistogramVec
}

// New registers the collectors against reg (the default registerer when nil).
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamecrawler_items_total",
			Help: "Items handled, labeled by checkpoint status.",
		}, []string{"status"}),
		itemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamecrawler_item_duration_seconds",
			Help:    "Wall time spent per item, pacing included.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamecrawler_upstream_requests_total",
			Help: "Upstream API requests, labeled by host and outcome.",
		}, []string{"host", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gamecrawler_upstream_request_duration_seconds",
			Help:    "Upstream API latency by host.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		}, []string{"host"}),
		rateLimitDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gamecrawler_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the per-host rate limiter.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"host"}),
		crossRefsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamecrawler_cross_references_resolved_total",
			Help: "Pending DLC to base game links resolved by the sweep.",
		}),
		universeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamecrawler_universe_size",
			Help: "Item ids remaining in the current epoch at start.",
		}),
		newItemsThisEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamecrawler_epoch_new_items",
			Help: "Items persisted successfully in the current epoch.",
		}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gamecrawler_http_request_duration_seconds",
			Help:    "Status API latency by method, route and code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	for _, collector := range []prometheus.Collector{
		c.itemsTotal,
		c.itemDuration,
		c.upstreamRequests,
		c.upstreamDuration,
		c.rateLimitDelay,
		c.crossRefsResolved,
		c.universeSize,
		c.newItemsThisEpoch,
		c.httpRequests,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
}

// ObserveItem records one item outcome and its duration.
func (c *Collectors) ObserveItem(status string, d time.Duration) {
	if c == nil {
		return
	}
	if i := strings.IndexByte(status, ':'); i > 0 {
		status = status[:i]
	}
	c.itemsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		c.newItemsThisEpoch.Inc()
	}
	if d > 0 {
		c.itemDuration.Observe(d.Seconds())
	}
}

// ObserveRequest records one upstream request.
func (c *Collectors) ObserveRequest(rawURL, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	host := SanitizeSite(rawURL)
	c.upstreamRequests.WithLabelValues(host, outcome).Inc()
	if d > 0 {
		c.upstreamDuration.WithLabelValues(host).Observe(d.Seconds())
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func (c *Collectors) ObserveRateLimitDelay(host string, d time.Duration) {
	if c == nil {
		return
	}
	c.rateLimitDelay.WithLabelValues(host).Observe(d.Seconds())
}

// AddResolved counts cross references resolved by a sweep.
func (c *Collectors) AddResolved(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.crossRefsResolved.Add(float64(n))
}

// StartEpoch resets the per-epoch gauges.
func (c *Collectors) StartEpoch(remaining int) {
	if c == nil {
		return
	}
	c.universeSize.Set(float64(remaining))
	c.newItemsThisEpoch.Set(0)
}

// ObserveHTTPRequest records one request served by the status API.
func (c *Collectors) ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
