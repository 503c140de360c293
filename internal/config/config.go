package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"RateSentinel/internal/model"
	"RateSentinel/internal/provider"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
		File   string `yaml:"file" env:"LOG_FILE"`
	} `yaml:"log"`
	Engine struct {
		RefreshInterval    time.Duration `yaml:"refresh_interval" env:"RATES_REFRESH_INTERVAL"`
		CacheTTL           time.Duration `yaml:"cache_ttl" env:"RATES_CACHE_TTL"`
		Concurrency        int           `yaml:"concurrency" env:"RATES_CONCURRENCY"`
		ScaleFactor        float64       `yaml:"scale_factor" env:"RATES_SCALE_FACTOR"`
		SmoothingThreshold float64       `yaml:"smoothing_threshold"`
		SmoothingWeight    float64       `yaml:"smoothing_weight"`
	} `yaml:"engine"`
	Resolver struct {
		AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"RESOLVER_ATTEMPT_TIMEOUT"`
		MaxFeedAge     time.Duration `yaml:"max_feed_age"`
		RatePerSecond  float64       `yaml:"rate_per_second"`
		Burst          int           `yaml:"burst"`
	} `yaml:"resolver"`
	Cache struct {
		Backend       string `yaml:"backend" env:"CACHE_BACKEND"`
		RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
		RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
		RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
		Prefix        string `yaml:"prefix"`
	} `yaml:"cache"`
	Providers struct {
		HTTP struct {
			APIKey string              `yaml:"api_key" env:"HTTP_FEED_API_KEY"`
			Feeds  map[string]HTTPFeed `yaml:"feeds"`
		} `yaml:"http"`
		Yahoo struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"yahoo"`
		Oracle struct {
			// RPC maps a network identifier to its JSON-RPC endpoint.
			RPC map[string]string `yaml:"rpc"`
		} `yaml:"oracle"`
	} `yaml:"providers"`
	Tokens   []model.TokenFeedConfig `yaml:"tokens"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron" env:"CRON_REFRESH"`
		ReportCron  string `yaml:"report_cron" env:"CRON_REPORT"`
	} `yaml:"schedule"`
	API struct {
		Addr string `yaml:"addr" env:"API_ADDR"`
	} `yaml:"api"`
	State struct {
		File string `yaml:"file" env:"STATE_FILE"`
	} `yaml:"state"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	} `yaml:"telegram"`
	Kafka struct {
		Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
		Topic   string   `yaml:"topic" env:"KAFKA_TOPIC"`
	} `yaml:"kafka"`
	Proxy string `yaml:"proxy" env:"HTTPS_PROXY"`
}

// HTTPFeed maps a named REST feed to a URL and the gjson paths of its fields.
type HTTPFeed struct {
	URL       string `yaml:"url"`
	PricePath string `yaml:"price_path"`
	TimePath  string `yaml:"time_path"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults and env still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Engine.RefreshInterval == 0 {
		c.Engine.RefreshInterval = time.Hour
	}
	if c.Engine.CacheTTL == 0 {
		c.Engine.CacheTTL = 24 * time.Hour
	}
	if c.Engine.Concurrency == 0 {
		c.Engine.Concurrency = 8
	}
	if c.Engine.ScaleFactor == 0 {
		c.Engine.ScaleFactor = 1.5
	}
	if c.Engine.SmoothingThreshold == 0 {
		c.Engine.SmoothingThreshold = 0.02
	}
	if c.Engine.SmoothingWeight == 0 {
		c.Engine.SmoothingWeight = 0.3
	}
	if c.Resolver.AttemptTimeout == 0 {
		c.Resolver.AttemptTimeout = 5 * time.Second
	}
	if c.Resolver.RatePerSecond == 0 {
		c.Resolver.RatePerSecond = 10
	}
	if c.Resolver.Burst == 0 {
		c.Resolver.Burst = 5
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "ratesentinel:sample:"
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 */15 * * * *"
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 0 9 * * *"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "reference-rate"
	}
	for i := range c.Tokens {
		c.Tokens[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Tokens[i].Symbol))
		if c.Tokens[i].TargetCurrency == "" {
			c.Tokens[i].TargetCurrency = c.Tokens[i].Symbol
		}
	}
}

// Validate checks the settings and the token registry.
func (c *Config) Validate() error {
	if c.Engine.RefreshInterval < 0 {
		return fmt.Errorf("engine.refresh_interval must not be negative")
	}
	if c.Engine.CacheTTL <= 0 {
		return fmt.Errorf("engine.cache_ttl must be positive")
	}
	if c.Engine.ScaleFactor <= 0 {
		return fmt.Errorf("engine.scale_factor must be positive")
	}
	if c.Engine.SmoothingThreshold < 0 {
		return fmt.Errorf("engine.smoothing_threshold must not be negative")
	}
	if c.Engine.SmoothingWeight <= 0 || c.Engine.SmoothingWeight > 1 {
		return fmt.Errorf("engine.smoothing_weight must be in (0, 1]")
	}
	if c.Engine.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be at least 1")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend)
	}

	seen := make(map[string]bool, len(c.Tokens))
	guards := make(map[string]*model.GuardBand, len(c.Tokens))
	for i, t := range c.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("tokens[%d]: symbol is required", i)
		}
		key := t.CacheKey()
		if seen[key] {
			return fmt.Errorf("tokens[%d]: duplicate symbol %s", i, key)
		}
		seen[key] = true
		if len(t.FeedIDs) == 0 {
			return fmt.Errorf("tokens[%d] %s: at least one feed is required", i, t.Symbol)
		}
		for _, id := range t.FeedIDs {
			if _, err := provider.ParseFeedID(id); err != nil {
				return fmt.Errorf("tokens[%d] %s: %w", i, t.Symbol, err)
			}
		}
		if g := t.Guard; g != nil {
			if g.Min <= 0 || g.Max < g.Min {
				return fmt.Errorf("tokens[%d] %s: guard band needs 0 < min <= max", i, t.Symbol)
			}
			if g.Fallback != nil && (*g.Fallback < g.Min || *g.Fallback > g.Max) {
				return fmt.Errorf("tokens[%d] %s: guard fallback must lie inside [min, max]", i, t.Symbol)
			}
		}
		// Bands apply per symbol, so every network listing must agree.
		if prev, ok := guards[t.Symbol]; ok && !sameBand(prev, t.Guard) {
			return fmt.Errorf("tokens[%d] %s: guard band differs from another listing of the symbol", i, t.Symbol)
		}
		guards[t.Symbol] = t.Guard
	}
	return nil
}

func sameBand(a, b *model.GuardBand) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Min != b.Min || a.Max != b.Max {
		return false
	}
	if a.Fallback == nil || b.Fallback == nil {
		return a.Fallback == b.Fallback
	}
	return *a.Fallback == *b.Fallback
}

// GuardBands collects the configured bands keyed by symbol.
func (c *Config) GuardBands() map[string]model.GuardBand {
	bands := make(map[string]model.GuardBand)
	for _, t := range c.Tokens {
		if t.Guard != nil {
			bands[t.Symbol] = *t.Guard
		}
	}
	return bands
}

// HTTPFeeds converts the configured REST feeds for the http provider.
func (c *Config) HTTPFeeds() map[string]provider.HTTPFeed {
	feeds := make(map[string]provider.HTTPFeed, len(c.Providers.HTTP.Feeds))
	for name, f := range c.Providers.HTTP.Feeds {
		feeds[name] = provider.HTTPFeed{URL: f.URL, PricePath: f.PricePath, TimePath: f.TimePath}
	}
	return feeds
}
