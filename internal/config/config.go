// Package config loads application configuration from environment variables.
// A .env file in the working directory is honoured when present; real
// environment variables always win over values from the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Nested groups share an
// environment prefix so that related settings stay together.
type Config struct {
	Env           string `env:"APP_ENV" envDefault:"dev"`
	Port          string `env:"APP_PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`

	DB         DBConfig         `envPrefix:"DB_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	StateCache StateCacheConfig `envPrefix:"STATE_CACHE_"`
	SumUp      SumUpConfig      `envPrefix:"SUMUP_"`
	AMQP       AMQPConfig       `envPrefix:"RABBITMQ_"`
	RateLimit  RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
	Log        LogConfig        `envPrefix:"LOG_"`
}

// DBConfig selects the storage driver. The sqlite3 driver uses Path; the
// mysql driver uses the connection parts.
type DBConfig struct {
	Driver string `env:"DRIVER" envDefault:"sqlite3"`
	Path   string `env:"PATH" envDefault:"auction.db"`
	User   string `env:"USER"`
	Pass   string `env:"PASS"`
	Host   string `env:"HOST" envDefault:"localhost"`
	Port   string `env:"PORT" envDefault:"3306"`
	Name   string `env:"NAME" envDefault:"auction"`
}

// StateCacheConfig controls the auction state cache. When Backend is
// "redis" and a Redis server is reachable, the cache is shared between
// processes; otherwise an in-process LRU is used.
type StateCacheConfig struct {
	Backend string        `env:"BACKEND" envDefault:"memory"`
	TTL     time.Duration `env:"TTL" envDefault:"5s"`
	Size    int           `env:"SIZE" envDefault:"256"`
	Prefix  string        `env:"PREFIX" envDefault:"auction_state"`
}

// SumUpConfig configures the card payment provider and which collection
// channels are offered.
type SumUpConfig struct {
	APIBase       string        `env:"API_BASE" envDefault:"https://api.sumup.com"`
	APIKey        string        `env:"API_KEY"`
	MerchantCode  string        `env:"MERCHANT_CODE"`
	AffiliateKey  string        `env:"AFFILIATE_KEY"`
	AppID         string        `env:"APP_ID"`
	Currency      string        `env:"CURRENCY" envDefault:"GBP"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"10s"`
	IntentTTL     time.Duration `env:"INTENT_TTL" envDefault:"15m"`
	HostedEnabled bool          `env:"HOSTED_ENABLED" envDefault:"false"`
	AppEnabled    bool          `env:"APP_ENABLED" envDefault:"false"`
	AppIndEnabled bool          `env:"APP_IND_ENABLED" envDefault:"false"`
}

// AMQPConfig points at the RabbitMQ broker used for ledger events. An
// empty URL disables publishing. Consume starts the in-process log
// consumer on Queue; leave it off when a downstream service reads the
// queue, since both would compete for the same messages.
type AMQPConfig struct {
	URL     string `env:"URL"`
	Queue   string `env:"QUEUE" envDefault:"auction.events"`
	Consume bool   `env:"CONSUME" envDefault:"false"`
}

// ConsumerEnabled reports whether the in-process event consumer runs.
func (c AMQPConfig) ConsumerEnabled() bool { return c.URL != "" && c.Consume }

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Parse reads the environment into a Config without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.RateLimit.normalize()
	if cfg.StateCache.TTL <= 0 {
		cfg.StateCache.TTL = 5 * time.Second
	}
	if cfg.StateCache.Size < 1 {
		cfg.StateCache.Size = 256
	}
	cfg.SumUp.Currency = strings.ToUpper(cfg.SumUp.Currency)
	return cfg, nil
}

// Load reads an optional .env file and then the environment. Invalid or
// missing required configuration terminates the process.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", slog.Any("error", err))
	}
	cfg, err := Parse()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}

// NewLogger builds the process logger from LogConfig.
func NewLogger(c LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
