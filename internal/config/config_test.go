package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setDatabaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "crawler")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "catalog")
}

func TestLoadDefaults(t *testing.T) {
	setDatabaseEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 1500*time.Millisecond, cfg.Crawler.Delay)
	require.True(t, cfg.Crawler.UseSteamSpy)
	require.False(t, cfg.Crawler.UseIGDB)
	require.Equal(t, []string{"game", "dlc"}, cfg.Crawler.CrawlableTypes)
	require.Equal(t, 20, cfg.Crawler.ReviewPageSize)
	require.Equal(t, "applist.json", cfg.Crawler.CacheURI)
	require.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, 2, cfg.HTTP.MaxAttempts)
	require.Equal(t, DriverPostgres, cfg.DB.Driver)
	require.Equal(t, 5432, cfg.DB.Port)
	require.Equal(t, "disable", cfg.DB.SSLMode)
	require.EqualValues(t, 1, cfg.DB.MaxConns)
	require.Equal(t, "db.internal", cfg.DB.Host)
	require.Equal(t, "catalog", cfg.DB.Name)
	require.True(t, cfg.Logging.Development)
}

func TestLoadWithFileOverrides(t *testing.T) {
	setDatabaseEnv(t)
	t.Setenv("STEAM_API_KEY", "steam-key")
	t.Setenv("CRAWLER_CRAWLER_PRE_FILTER", "true")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
endpoints_file: /etc/gamecrawler/endpoints.yaml
crawler:
  delay: 3s
  use_steamspy: false
  crawlable_types: [game]
  review_page_size: 50
  cache_uri: gs://bucket/applist.json
  shuffle_seed: 99
http:
  timeout: 30s
  requests_per_second: 1.5
  host_rps:
    - host: steamspy.com
      rps: 0.25
  max_attempts: 4
db:
  port: 6543
  max_conns: 2
logging:
  development: false
  dir: /var/log/gamecrawler
metrics:
  addr: ":9100"
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/etc/gamecrawler/endpoints.yaml", cfg.EndpointsFile)
	require.Equal(t, 3*time.Second, cfg.Crawler.Delay)
	require.False(t, cfg.Crawler.UseSteamSpy)
	require.True(t, cfg.Crawler.PreFilter)
	require.Equal(t, []string{"game"}, cfg.Crawler.CrawlableTypes)
	require.Equal(t, "gs://bucket/applist.json", cfg.Crawler.CacheURI)
	require.EqualValues(t, 99, cfg.Crawler.ShuffleSeed)
	require.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	require.InDelta(t, 1.5, cfg.HTTP.RequestsPerSecond, 1e-9)
	require.InDelta(t, 0.25, cfg.HTTP.HostRates()["steamspy.com"], 1e-9)
	require.Equal(t, 6543, cfg.DB.Port)
	require.EqualValues(t, 2, cfg.DB.MaxConns)
	require.Equal(t, "/var/log/gamecrawler", cfg.Logging.Dir)
	require.Equal(t, ":9100", cfg.Metrics.Addr)
	require.Equal(t, "steam-key", cfg.Steam.APIKey)
	require.NoError(t, cfg.ValidateCrawl())
}

func TestLoadNamesMissingEnvironmentVariable(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("CRAWLER_DB_HOST", "")

	_, err := Load("")
	require.Error(t, err)
	require.ErrorContains(t, err, "missing required environment variable DB_HOST (db.host)")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestMemoryDriverNeedsNoDatabaseCredentials(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("CRAWLER_DB_DRIVER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.DB.Driver)
}

func validConfig() Config {
	return Config{
		Crawler: CrawlerConfig{
			Delay:          time.Second,
			CrawlableTypes: []string{"game"},
			ReviewPageSize: 20,
			CacheURI:       "applist.json",
		},
		HTTP: HTTPConfig{Timeout: time.Second, MaxAttempts: 1},
		DB:   DBConfig{Driver: DriverMemory},
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative delay", func(c *Config) { c.Crawler.Delay = -time.Second }, "crawler.delay"},
		{"no crawlable types", func(c *Config) { c.Crawler.CrawlableTypes = nil }, "crawler.crawlable_types"},
		{"review page too large", func(c *Config) { c.Crawler.ReviewPageSize = 500 }, "crawler.review_page_size"},
		{"empty cache uri", func(c *Config) { c.Crawler.CacheURI = " " }, "crawler.cache_uri"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"zero attempts", func(c *Config) { c.HTTP.MaxAttempts = 0 }, "http.max_attempts"},
		{"unknown driver", func(c *Config) { c.DB.Driver = "sqlite" }, "db.driver"},
		{"postgres without port", func(c *Config) { c.DB.Driver = DriverPostgres }, "db.port"},
		{"postgres without user", func(c *Config) {
			c.DB = DBConfig{Driver: DriverPostgres, Port: 5432, Host: "db"}
		}, "DB_USER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCrawlCredentials(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.ErrorContains(t, cfg.ValidateCrawl(), "STEAM_API_KEY")

	cfg.Steam.APIKey = "key"
	require.NoError(t, cfg.ValidateCrawl())

	cfg.Crawler.UseIGDB = true
	require.ErrorContains(t, cfg.ValidateCrawl(), "TWITCH_CLIENT_ID")

	cfg.Twitch = TwitchConfig{ClientID: "id", ClientSecret: "secret"}
	require.NoError(t, cfg.ValidateCrawl())
}
