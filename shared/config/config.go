// Package config loads settings for the planwatch client and the dev services.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// TOML file, a .env file in the working directory, and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Client ClientConfig `toml:"client"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

type ClientConfig struct {
	APIURL         string        `toml:"api_url"`
	FeedURL        string        `toml:"feed_url"`
	Token          string        `toml:"token"`
	PollInterval   time.Duration `toml:"poll_interval"`
	QuietThreshold time.Duration `toml:"quiet_threshold"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

type ServerConfig struct {
	Port         string        `toml:"port"`
	RedisAddr    string        `toml:"redis_addr"`
	KafkaBrokers string        `toml:"kafka_brokers"`
	JWTSecret    string        `toml:"jwt_secret"`
	StatusTTL    time.Duration `toml:"status_ttl"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() *Config {
	return &Config{
		Client: ClientConfig{
			APIURL:         "http://localhost:8086",
			FeedURL:        "ws://localhost:8085/ws",
			PollInterval:   5 * time.Second,
			QuietThreshold: 10 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			RedisAddr:    "redis:6379",
			KafkaBrokers: "kafka:29092",
			JWTSecret:    "your-secret-key-change-in-production",
			StatusTTL:    24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. An empty path skips the TOML file; a
// non-empty path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Client.APIURL = getEnv("MENTOR_API_URL", c.Client.APIURL)
	c.Client.FeedURL = getEnv("MENTOR_FEED_URL", c.Client.FeedURL)
	c.Client.Token = getEnv("MENTOR_TOKEN", c.Client.Token)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.RedisAddr = getEnv("REDIS_ADDR", c.Server.RedisAddr)
	c.Server.KafkaBrokers = getEnv("KAFKA_BROKERS", c.Server.KafkaBrokers)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	var err error
	if c.Client.PollInterval, err = getDurationEnv("POLL_INTERVAL", c.Client.PollInterval); err != nil {
		return err
	}
	if c.Client.QuietThreshold, err = getDurationEnv("QUIET_THRESHOLD", c.Client.QuietThreshold); err != nil {
		return err
	}
	if c.Client.RequestTimeout, err = getDurationEnv("REQUEST_TIMEOUT", c.Client.RequestTimeout); err != nil {
		return err
	}
	if c.Server.StatusTTL, err = getDurationEnv("STATUS_TTL", c.Server.StatusTTL); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Client.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Client.QuietThreshold < 0 {
		errs = append(errs, errors.New("quiet threshold must not be negative"))
	}
	if c.Client.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Server.StatusTTL <= 0 {
		errs = append(errs, errors.New("status ttl must be positive"))
	}
	return errors.Join(errs...)
}

// PortOr returns the configured port or the service's fallback.
func (s ServerConfig) PortOr(fallback string) string {
	if s.Port == "" {
		return fallback
	}
	return s.Port
}

// Brokers splits the comma separated broker list.
func (s ServerConfig) Brokers() string {
	parts := strings.Split(s.KafkaBrokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
