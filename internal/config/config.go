// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers accepted by db.driver.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	EndpointsFile string        `mapstructure:"endpoints_file"`
	Crawler       CrawlerConfig `mapstructure:"crawler"`
	HTTP          HTTPConfig    `mapstructure:"http"`
	DB            DBConfig      `mapstructure:"db"`
	Steam         SteamConfig   `mapstructure:"steam"`
	Twitch        TwitchConfig  `mapstructure:"twitch"`
	Logging       LoggingConfig `mapstructure:"logging"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
}

// CrawlerConfig governs the crawl loop.
type CrawlerConfig struct {
	Delay          time.Duration `mapstructure:"delay"`
	UseSteamSpy    bool          `mapstructure:"use_steamspy"`
	UseIGDB        bool          `mapstructure:"use_igdb"`
	CrawlableTypes []string      `mapstructure:"crawlable_types"`
	ReviewPageSize int           `mapstructure:"review_page_size"`
	ReviewLanguage string        `mapstructure:"review_language"`
	CountryCode    string        `mapstructure:"country_code"`
	Language       string        `mapstructure:"language"`
	// CacheURI locates the item-universe cache: a path, gs://bucket/object
	// or memory://name.
	CacheURI     string        `mapstructure:"cache_uri"`
	PreFilter    bool          `mapstructure:"pre_filter"`
	ShuffleSeed  uint64        `mapstructure:"shuffle_seed"`
	SweepTimeout time.Duration `mapstructure:"sweep_timeout"`
}

// HTTPConfig configures the upstream request helper.
type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	// HostRPS is a list because viper splits map keys on dots.
	HostRPS        []HostRate    `mapstructure:"host_rps"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
}

// HostRate overrides the request rate for one upstream host.
type HostRate struct {
	Host string  `mapstructure:"host"`
	RPS  float64 `mapstructure:"rps"`
}

// HostRates flattens HostRPS into a host to rate map.
func (h HTTPConfig) HostRates() map[string]float64 {
	out := make(map[string]float64, len(h.HostRPS))
	for _, r := range h.HostRPS {
		out[r.Host] = r.RPS
	}
	return out
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SteamConfig holds the primary catalog credentials.
type SteamConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// TwitchConfig holds the credentials exchanged for an IGDB token.
type TwitchConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// LoggingConfig toggles zap development features and the per-run log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Dir         string `mapstructure:"dir"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// envBindings maps config keys to the un-prefixed process environment
// variables operators already use.
var envBindings = []struct{ key, env string }{
	{"db.host", "DB_HOST"},
	{"db.port", "DB_PORT"},
	{"db.user", "DB_USER"},
	{"db.password", "DB_PASSWORD"},
	{"db.name", "DB_NAME"},
	{"db.sslmode", "DB_SSLMODE"},
	{"steam.api_key", "STEAM_API_KEY"},
	{"twitch.client_id", "TWITCH_CLIENT_ID"},
	{"twitch.client_secret", "TWITCH_CLIENT_SECRET"},
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, b := range envBindings {
		if err := v.BindEnv(b.key, "CRAWLER_"+strings.ToUpper(strings.ReplaceAll(b.key, ".", "_")), b.env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", b.env, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoints_file", "configs/endpoints.yaml")
	v.SetDefault("crawler.delay", "1.5s")
	v.SetDefault("crawler.use_steamspy", true)
	v.SetDefault("crawler.use_igdb", false)
	v.SetDefault("crawler.crawlable_types", []string{"game", "dlc"})
	v.SetDefault("crawler.review_page_size", 20)
	v.SetDefault("crawler.review_language", "english")
	v.SetDefault("crawler.country_code", "us")
	v.SetDefault("crawler.language", "english")
	v.SetDefault("crawler.cache_uri", "applist.json")
	v.SetDefault("crawler.pre_filter", false)
	v.SetDefault("crawler.shuffle_seed", 0)
	v.SetDefault("crawler.sweep_timeout", "30s")
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.user_agent", "game-catalog-crawler/1.0 (+https://github.com/JakeFAU/game-catalog-crawler)")
	v.SetDefault("http.requests_per_second", 4)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.max_attempts", 2)
	v.SetDefault("http.backoff_initial", "250ms")
	v.SetDefault("http.backoff_max", "2s")
	v.SetDefault("http.max_body_bytes", 16*1024*1024)
	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 1)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.dir", "")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits. Database
// credentials are required unless the memory driver is selected.
func (c Config) Validate() error {
	if c.Crawler.Delay < 0 {
		return fmt.Errorf("crawler.delay must be >= 0")
	}
	if len(c.Crawler.CrawlableTypes) == 0 {
		return fmt.Errorf("crawler.crawlable_types must not be empty")
	}
	if c.Crawler.ReviewPageSize <= 0 || c.Crawler.ReviewPageSize > 100 {
		return fmt.Errorf("crawler.review_page_size must be in [1, 100]")
	}
	if strings.TrimSpace(c.Crawler.CacheURI) == "" {
		return fmt.Errorf("crawler.cache_uri must be set")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	switch c.DB.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("db.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.DB.Driver)
	}
	if c.DB.Port <= 0 {
		return fmt.Errorf("db.port must be > 0")
	}
	return requireEnv(
		[2]string{c.DB.Host, "db.host"},
		[2]string{c.DB.User, "db.user"},
		[2]string{c.DB.Password, "db.password"},
		[2]string{c.DB.Name, "db.name"},
	)
}

// ValidateCrawl checks the upstream credentials a crawl needs on top of
// Validate. Twitch credentials are only required when IGDB is enabled.
func (c Config) ValidateCrawl() error {
	if err := requireEnv([2]string{c.Steam.APIKey, "steam.api_key"}); err != nil {
		return err
	}
	if c.Crawler.UseIGDB {
		return requireEnv(
			[2]string{c.Twitch.ClientID, "twitch.client_id"},
			[2]string{c.Twitch.ClientSecret, "twitch.client_secret"},
		)
	}
	return nil
}

// requireEnv reports the first empty value as a missing environment variable.
func requireEnv(values ...[2]string) error {
	for _, pair := range values {
		if strings.TrimSpace(pair[0]) != "" {
			continue
		}
		return fmt.Errorf("missing required environment variable %s (%s)", envFor(pair[1]), pair[1])
	}
	return nil
}

func envFor(key string) string {
	for _, b := range envBindings {
		if b.key == key {
			return b.env
		}
	}
	return "CRAWLER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
