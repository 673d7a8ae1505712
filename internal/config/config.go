package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/db"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	BotToken string `env:"BOT_TOKEN"`
	AdminID  int64  `env:"ADMIN_ID"`

	StoreDriver   string `env:"STORE_DRIVER"   envDefault:"sqlite"`
	DBPath        string `env:"DB_PATH"        envDefault:"onboarding.db"`
	MongoURL      string `env:"MONGODB_URL"`
	DatabaseName  string `env:"DATABASE_NAME"  envDefault:"minati_bot"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX"   envDefault:"onboarding"`

	RequiredChannel      string `env:"REQUIRED_CHANNEL"       envDefault:"@mntchkk"`
	CustomerCareUsername string `env:"CUSTOMER_CARE_USERNAME"`

	AppDownloadURL string `env:"APP_DOWNLOAD_URL" envDefault:"https://play.google.com/store/apps/details?id=com.app.minati_wallet"`
	TwitterURL     string `env:"TWITTER_URL"      envDefault:"https://x.com/minatifi"`
	InstagramURL   string `env:"INSTAGRAM_URL"    envDefault:"https://www.instagram.com/minativerse_edtech"`
	ChannelURL     string `env:"CHANNEL_URL"`
	WebsiteURL     string `env:"WEBSITE_URL"`

	// HTTPAddr enables the operator API. It serves user data without auth, so
	// it stays off unless set, e.g. to 127.0.0.1:8080.
	HTTPAddr          string        `env:"HTTP_ADDR"`
	HTTPCORSOrigins   []string      `env:"HTTP_CORS_ORIGINS"  envSeparator:","`
	EventTimeout      time.Duration `env:"EVENT_TIMEOUT"      envDefault:"15s"`
	MembershipTimeout time.Duration `env:"MEMBERSHIP_TIMEOUT" envDefault:"10s"`
}

// Load reads the environment. A .env file is picked up by the godotenv
// autoload import in the binaries.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ChannelURL == "" {
		cfg.ChannelURL = ChannelLink(cfg.RequiredChannel)
	}
	return &cfg, nil
}

// Validate checks the settings every binary needs to reach the store.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case db.DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
		}
	case db.DriverMongo:
		if c.MongoURL == "" {
			errs = append(errs, errors.New("MONGODB_URL is required for the mongo store"))
		}
		if c.DatabaseName == "" {
			errs = append(errs, errors.New("DATABASE_NAME is required for the mongo store"))
		}
	case db.DriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.EventTimeout <= 0 {
		errs = append(errs, errors.New("EVENT_TIMEOUT must be positive"))
	}
	if c.MembershipTimeout <= 0 {
		errs = append(errs, errors.New("MEMBERSHIP_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateBot additionally checks what the bot process needs.
func (c *Config) ValidateBot() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN environment variable is required"))
	}
	if c.RequiredChannel == "" {
		errs = append(errs, errors.New("REQUIRED_CHANNEL environment variable is required"))
	}
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) StoreOptions() db.OpenOptions {
	return db.OpenOptions{
		Driver:        c.StoreDriver,
		SQLitePath:    c.DBPath,
		MongoURL:      c.MongoURL,
		MongoDatabase: c.DatabaseName,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
	}
}

// ChannelLink turns "@name" into a t.me link. Numeric chat ids have no
// public link and yield an empty string.
func ChannelLink(channel string) string {
	name := strings.TrimPrefix(strings.TrimSpace(channel), "@")
	if name == "" || strings.HasPrefix(name, "-") {
		return ""
	}
	return "https://t.me/" + name
}
