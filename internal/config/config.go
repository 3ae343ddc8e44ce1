package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Env         string `mapstructure:"ENV"`
	AppPort     string `mapstructure:"APP_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Owner auth.
	JWTSecret    string `mapstructure:"JWT_HMAC_SECRET"`
	StaticTokens string `mapstructure:"STATIC_TOKENS"`

	// Scheduling.
	SlotLengthMinutes    int `mapstructure:"SLOT_LENGTH_MINUTES"`
	DefaultBufferMinutes int `mapstructure:"DEFAULT_BUFFER_MINUTES"`
	ScheduleCacheSize    int `mapstructure:"SCHEDULE_CACHE_SIZE"`

	// HTTP edge.
	CORSOrigins       string `mapstructure:"CORS_ORIGINS"`
	BookingsPerMinute int    `mapstructure:"BOOKINGS_PER_MINUTE"`

	// Notification bus.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisChannel  string `mapstructure:"REDIS_CHANNEL"`
	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic    string `mapstructure:"KAFKA_TOPIC"`

	// Google Calendar mirror.
	GoogleServiceAccountEmail string        `mapstructure:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	GooglePrivateKey          string        `mapstructure:"GOOGLE_PRIVATE_KEY"`
	GoogleCalendarID          string        `mapstructure:"GOOGLE_CALENDAR_ID"`
	CalendarTimezone          string        `mapstructure:"CALENDAR_TIMEZONE"`
	CalendarSyncInterval      time.Duration `mapstructure:"CALENDAR_SYNC_INTERVAL"`
	CalendarSyncBatchSize     int           `mapstructure:"CALENDAR_SYNC_BATCH_SIZE"`
	CalendarSyncMaxAttempts   int           `mapstructure:"CALENDAR_SYNC_MAX_ATTEMPTS"`
	CalendarSyncBackoff       time.Duration `mapstructure:"CALENDAR_SYNC_BACKOFF"`
	CalendarSyncLease         time.Duration `mapstructure:"CALENDAR_SYNC_LEASE"`
}

var defaults = map[string]any{
	"ENV":                          "development",
	"APP_PORT":                     "8080",
	"DATABASE_URL":                 "",
	"LOG_LEVEL":                    "info",
	"JWT_HMAC_SECRET":              "",
	"STATIC_TOKENS":                "",
	"SLOT_LENGTH_MINUTES":          30,
	"DEFAULT_BUFFER_MINUTES":       15,
	"SCHEDULE_CACHE_SIZE":          64,
	"CORS_ORIGINS":                 "*",
	"BOOKINGS_PER_MINUTE":          20,
	"REDIS_ADDR":                   "",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"REDIS_CHANNEL":                "bookings",
	"KAFKA_BROKERS":                "",
	"KAFKA_TOPIC":                  "bookings.events",
	"GOOGLE_SERVICE_ACCOUNT_EMAIL": "",
	"GOOGLE_PRIVATE_KEY":           "",
	"GOOGLE_CALENDAR_ID":           "",
	"CALENDAR_TIMEZONE":            "UTC",
	"CALENDAR_SYNC_INTERVAL":       "5s",
	"CALENDAR_SYNC_BATCH_SIZE":     20,
	"CALENDAR_SYNC_MAX_ATTEMPTS":   8,
	"CALENDAR_SYNC_BACKOFF":        "30s",
	"CALENDAR_SYNC_LEASE":          "2m",
}

// Load reads .env (if present), an optional config.yaml and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.GooglePrivateKey = strings.ReplaceAll(cfg.GooglePrivateKey, `\n`, "\n")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail far from where they are read.
func (c *Config) Validate() error {
	if c.SlotLengthMinutes <= 0 || c.SlotLengthMinutes > 24*60 {
		return fmt.Errorf("SLOT_LENGTH_MINUTES must be in 1..1440 (got %d)", c.SlotLengthMinutes)
	}
	if c.DefaultBufferMinutes < 0 {
		return fmt.Errorf("DEFAULT_BUFFER_MINUTES must not be negative (got %d)", c.DefaultBufferMinutes)
	}
	if _, err := time.LoadLocation(c.CalendarTimezone); err != nil {
		return fmt.Errorf("invalid CALENDAR_TIMEZONE %q: %w", c.CalendarTimezone, err)
	}
	return nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CalendarEnabled reports whether Google Calendar credentials are present.
func (c *Config) CalendarEnabled() bool {
	return c.GoogleServiceAccountEmail != "" && c.GooglePrivateKey != "" && c.GoogleCalendarID != ""
}

// Tokens splits STATIC_TOKENS into trimmed, non-empty values.
func (c *Config) Tokens() []string {
	return splitList(c.StaticTokens)
}

// Origins splits CORS_ORIGINS.
func (c *Config) Origins() []string {
	return splitList(c.CORSOrigins)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
