package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"BreakoutScreener/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Provider    ProviderConfig    `mapstructure:"provider"`
	Screener    ScreenerConfig    `mapstructure:"screener"`
	Session     SessionConfig     `mapstructure:"session"`
	Instruments InstrumentsConfig `mapstructure:"instruments"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ProviderConfig selects and configures the market data gateway.
type ProviderConfig struct {
	Name          string        `mapstructure:"name"` // upstox, yahoo or mock
	BaseURL       string        `mapstructure:"base_url"`
	AccessToken   string        `mapstructure:"access_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RateLimit     float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst         int           `mapstructure:"burst"`
	Proxy         string        `mapstructure:"proxy"`
	FeedURL       string        `mapstructure:"feed_url"`
	StreamEnabled bool          `mapstructure:"stream_enabled"`
}

// ScreenerConfig controls the refresh cycle and the breakout rule.
type ScreenerConfig struct {
	Cadence          time.Duration `mapstructure:"cadence"`
	CandleInterval   string        `mapstructure:"candle_interval"`
	Lookback         time.Duration `mapstructure:"lookback"`
	MaxConcurrency   int           `mapstructure:"max_concurrency"`
	CycleTimeout     time.Duration `mapstructure:"cycle_timeout"` // 0 = cadence
	Sector           string        `mapstructure:"sector"`
	Staleness        time.Duration `mapstructure:"staleness"`
	Tolerance        float64       `mapstructure:"tolerance"`
	RequireAboveVWAP bool          `mapstructure:"require_above_vwap"`
	RSIMin           float64       `mapstructure:"rsi_min"`
	RSIMax           float64       `mapstructure:"rsi_max"`
	RSIPeriod        int           `mapstructure:"rsi_period"`
	BreakoutsOnly    bool          `mapstructure:"breakouts_only"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

// SessionConfig is the exchange trading window.
type SessionConfig struct {
	Timezone string `mapstructure:"timezone"`
	Open     string `mapstructure:"open"`
	Close    string `mapstructure:"close"`
}

// InstrumentsConfig points at the universe file. Empty uses the built-in list.
type InstrumentsConfig struct {
	File string `mapstructure:"file"`
}

// RedisConfig configures the candle cache.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Namespace string `mapstructure:"namespace"`
}

// DatabaseConfig configures snapshot recording. Empty path disables it.
type DatabaseConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MetricsConfig configures the Prometheus endpoint. Empty addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from an optional YAML file, then applies SCREENER_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Screener.CycleTimeout <= 0 {
		cfg.Screener.CycleTimeout = cfg.Screener.Cadence
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", "upstox")
	v.SetDefault("provider.base_url", "https://api.upstox.com")
	v.SetDefault("provider.access_token", "")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.rate_limit", 20.0)
	v.SetDefault("provider.burst", 5)
	v.SetDefault("provider.proxy", "")
	v.SetDefault("provider.feed_url", "wss://api.upstox.com/v3/feed/market-data-feed")
	v.SetDefault("provider.stream_enabled", false)

	v.SetDefault("screener.cadence", "5m")
	v.SetDefault("screener.candle_interval", "5m")
	v.SetDefault("screener.lookback", "24h")
	v.SetDefault("screener.max_concurrency", 8)
	v.SetDefault("screener.cycle_timeout", "0s")
	v.SetDefault("screener.sector", model.SectorAll)
	v.SetDefault("screener.staleness", "2m")
	v.SetDefault("screener.tolerance", 1.0)
	v.SetDefault("screener.require_above_vwap", false)
	v.SetDefault("screener.rsi_min", 0.0)
	v.SetDefault("screener.rsi_max", 100.0)
	v.SetDefault("screener.rsi_period", 14)
	v.SetDefault("screener.breakouts_only", true)
	v.SetDefault("screener.failure_threshold", 3)

	v.SetDefault("session.timezone", "Asia/Kolkata")
	v.SetDefault("session.open", "09:15")
	v.SetDefault("session.close", "15:30")

	v.SetDefault("instruments.file", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.namespace", "screener:candles")

	v.SetDefault("database.sqlite_path", "")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func invalid(field, reason string) error {
	return &model.ConfigurationError{Field: field, Reason: reason}
}

// Validate checks that all configuration values are usable. Errors are *model.ConfigurationError.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "upstox":
		if c.Provider.AccessToken == "" {
			return invalid("provider.access_token", "required for the upstox provider")
		}
	case "yahoo", "mock":
	default:
		return invalid("provider.name", fmt.Sprintf("unknown provider %q, want upstox, yahoo or mock", c.Provider.Name))
	}
	if c.Provider.RateLimit < 0 {
		return invalid("provider.rate_limit", "must not be negative")
	}
	if c.Provider.StreamEnabled && c.Provider.Name != "upstox" {
		return invalid("provider.stream_enabled", "streaming requires the upstox provider")
	}

	s := c.Screener
	if s.Cadence < 10*time.Second {
		return invalid("screener.cadence", "must be at least 10s")
	}
	if _, err := model.ParseInterval(s.CandleInterval); err != nil {
		return invalid("screener.candle_interval", err.Error())
	}
	if s.Lookback <= 0 {
		return invalid("screener.lookback", "must be positive")
	}
	if s.MaxConcurrency < 1 {
		return invalid("screener.max_concurrency", "must be at least 1")
	}
	if s.CycleTimeout < 0 {
		return invalid("screener.cycle_timeout", "must not be negative")
	}
	if s.Staleness < 0 {
		return invalid("screener.staleness", "must not be negative")
	}
	if s.Tolerance <= 0 {
		return invalid("screener.tolerance", "must be positive")
	}
	if s.RSIMin < 0 || s.RSIMax > 100 || s.RSIMin > s.RSIMax {
		return invalid("screener.rsi_min", "rsi window must satisfy 0 <= rsi_min <= rsi_max <= 100")
	}
	if s.RSIPeriod < 1 {
		return invalid("screener.rsi_period", "must be at least 1")
	}
	if s.FailureThreshold < 1 {
		return invalid("screener.failure_threshold", "must be at least 1")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return invalid("redis.addr", "required when redis is enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return invalid("telegram.bot_token", "required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return invalid("telegram.chat_id", "required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return invalid("logging.level", "must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return invalid("logging.format", "must be one of: json, text")
	}
	return nil
}
