// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/api"
	"github.com/JakeFAU/game-catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/game-catalog-crawler/internal/config"
	"github.com/JakeFAU/game-catalog-crawler/internal/crawler"
	"github.com/JakeFAU/game-catalog-crawler/internal/endpoints"
	collyfetcher "github.com/JakeFAU/game-catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/game-catalog-crawler/internal/metrics"
	"github.com/JakeFAU/game-catalog-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/game-catalog-crawler/internal/policy/retry"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/igdb"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/steam"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/steamspy"
	"github.com/JakeFAU/game-catalog-crawler/internal/storage/memory"
	"github.com/JakeFAU/game-catalog-crawler/internal/storage/postgres"
	"github.com/JakeFAU/game-catalog-crawler/internal/store"
	"github.com/JakeFAU/game-catalog-crawler/internal/universe"
)

const shutdownTimeout = 5 * time.Second

// Options selects how services are built.
type Options struct {
	// DryRun swaps the configured database for the in-memory store.
	DryRun bool
}

// CrawlOptions are per-invocation crawl overrides.
type CrawlOptions struct {
	// PreFilter forces pre-filtering on top of crawler.pre_filter.
	PreFilter bool
	Progress  crawler.Progress
}

// App holds the shared, long-lived services for one process. It is built
// once at startup and closed by the command that created it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    store.Store
	registry *prometheus.Registry
	metrics  *metrics.Collectors
	server   *metrics.Server
	closers  []func() error
}

// New connects the store and, when metrics.addr is set, starts the status
// endpoint. Upstream clients are built on demand by NewCrawler.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	collectors, err := metrics.New(a.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a.metrics = collectors

	switch {
	case opts.DryRun || cfg.DB.Driver == config.DriverMemory:
		logger.Info("using in-memory store; nothing will be persisted")
		a.store = memory.NewCatalogStore()
	default:
		logger.Info("connecting to postgres", zap.String("host", cfg.DB.Host), zap.String("database", cfg.DB.Name))
		pg, err := postgres.New(ctx, postgres.Config{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			Name:     cfg.DB.Name,
			SSLMode:  cfg.DB.SSLMode,
			MaxConns: cfg.DB.MaxConns,
		}, logger.Named("store"))
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.store = pg
	}

	if cfg.Metrics.Addr != "" {
		status := api.NewServer(a.store, a.registry, a.metrics, logger.Named("api"))
		a.server = metrics.NewServer(cfg.Metrics.Addr, status.Handler(), logger.Named("http"))
		a.server.Start()
	}
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the persistence layer.
func (a *App) Store() store.Store { return a.store }

// Registry returns the Prometheus registry the collectors are bound to.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// NewCrawler builds the upstream clients and the orchestrator.
func (a *App) NewCrawler(ctx context.Context, opts CrawlOptions) (*crawler.Crawler, error) {
	if err := a.cfg.ValidateCrawl(); err != nil {
		return nil, err
	}
	eps, err := endpoints.Load(a.cfg.EndpointsFile)
	if err != nil {
		return nil, fmt.Errorf("load endpoints: %w", err)
	}

	clock := system.New()
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.HTTP.RequestsPerSecond,
		DefaultBurst: a.cfg.HTTP.Burst,
		HostRPS:      a.cfg.HTTP.HostRates(),
		OnDelay:      a.metrics.ObserveRateLimitDelay,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   a.cfg.HTTP.UserAgent,
		Timeout:     a.cfg.HTTP.Timeout,
		MaxBodySize: a.cfg.HTTP.MaxBodyBytes,
	},
		collyfetcher.WithLimiter(limiter),
		collyfetcher.WithRetryPolicy(retry.NewExponentialPolicy(
			a.cfg.HTTP.MaxAttempts, a.cfg.HTTP.BackoffInitial, a.cfg.HTTP.BackoffMax,
		)),
		collyfetcher.WithPauser(clock),
		collyfetcher.WithMetrics(a.metrics),
	)

	catalogClient := steam.New(steam.Config{
		APIKey:         a.cfg.Steam.APIKey,
		CountryCode:    a.cfg.Crawler.CountryCode,
		Language:       a.cfg.Crawler.Language,
		ReviewLanguage: a.cfg.Crawler.ReviewLanguage,
		ReviewPageSize: a.cfg.Crawler.ReviewPageSize,
	}, eps.Steam, fetcher, a.logger.Named("steam"))

	deps := crawler.Deps{
		Store:    a.store,
		Catalog:  catalogClient,
		Clock:    clock,
		Progress: opts.Progress,
		Metrics:  a.metrics,
	}
	if a.cfg.Crawler.UseSteamSpy {
		deps.Aggregator = steamspy.New(eps.SteamSpy, fetcher, a.logger.Named("steamspy"))
	}
	if a.cfg.Crawler.UseIGDB {
		deps.TimeToBeat = igdb.New(ctx, igdb.Credentials{
			ClientID:     a.cfg.Twitch.ClientID,
			ClientSecret: a.cfg.Twitch.ClientSecret,
		}, eps.Twitch, eps.IGDB, fetcher, a.logger.Named("igdb"))
	}

	cache, closeCache, err := universe.Open(ctx, a.cfg.Crawler.CacheURI, a.logger.Named("universe"))
	if err != nil {
		return nil, fmt.Errorf("open universe cache: %w", err)
	}
	a.closers = append(a.closers, closeCache)
	deps.Universe = cache

	return crawler.New(crawler.Config{
		Delay:          a.cfg.Crawler.Delay,
		UseSecondary:   a.cfg.Crawler.UseSteamSpy,
		UseTimeToBeat:  a.cfg.Crawler.UseIGDB,
		CrawlableTypes: a.cfg.Crawler.CrawlableTypes,
		PreFilter:      a.cfg.Crawler.PreFilter || opts.PreFilter,
		ShuffleSeed:    a.cfg.Crawler.ShuffleSeed,
		SweepTimeout:   a.cfg.Crawler.SweepTimeout,
	}, deps, a.logger.Named("crawler"))
}

// Close gracefully shuts down every service in the container.
func (a *App) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("status server shutdown", zap.Error(err))
		}
		cancel()
	}
	var errs []error
	for _, closer := range a.closers {
		errs = append(errs, closer())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("close universe cache", zap.Error(err))
	}
	if a.store != nil {
		a.store.Close()
	}
}
