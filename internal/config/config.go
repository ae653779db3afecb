package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port                   string        `mapstructure:"PORT"`
	Env                    string        `mapstructure:"ENV"`
	Store                  string        `mapstructure:"STORE"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBMaxConns             int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL               string        `mapstructure:"REDIS_URL"`
	SummaryCacheTTL        time.Duration `mapstructure:"SUMMARY_CACHE_TTL"`
	AuthIssuer             string        `mapstructure:"AUTH_ISSUER"`
	AuthSigningKey         string        `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultTenant          string        `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins            []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS           float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst         int           `mapstructure:"RATE_LIMIT_BURST"`
	Timezone               string        `mapstructure:"TIMEZONE"`
	ReminderCron           string        `mapstructure:"REMINDER_CRON"`
	ReminderTenants        []string      `mapstructure:"REMINDER_TENANTS"`
	WebhookURL             string        `mapstructure:"WEBHOOK_URL"`
	WebhookSecret          string        `mapstructure:"WEBHOOK_SECRET"`
	SeriesWriteConcurrency int           `mapstructure:"SERIES_WRITE_CONCURRENCY"`
	SeriesMaxDays          int           `mapstructure:"SERIES_MAX_DAYS"`
	SessionMinutes         int           `mapstructure:"SESSION_MINUTES"`
}

var keys = []string{
	"PORT", "ENV", "STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "SUMMARY_CACHE_TTL", "AUTH_ISSUER", "AUTH_SIGNING_KEY",
	"DEFAULT_TENANT", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"TIMEZONE", "REMINDER_CRON", "REMINDER_TENANTS", "WEBHOOK_URL", "WEBHOOK_SECRET",
	"SERIES_WRITE_CONCURRENCY", "SERIES_MAX_DAYS", "SESSION_MINUTES",
}

// Load reads the environment, falling back to an optional .env file in the
// working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SUMMARY_CACHE_TTL", "10m")
	v.SetDefault("AUTH_ISSUER", "agenda")
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("TIMEZONE", "America/Argentina/Buenos_Aires")
	v.SetDefault("REMINDER_CRON", "0 8 * * *")
	v.SetDefault("SERIES_WRITE_CONCURRENCY", 8)
	v.SetDefault("SERIES_MAX_DAYS", 731)
	v.SetDefault("SESSION_MINUTES", 45)

	// AutomaticEnv alone does not make Unmarshal see unset-default keys.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.ReminderTenants = splitList(v.GetString("REMINDER_TENANTS"))
	if len(cfg.ReminderTenants) == 0 {
		cfg.ReminderTenants = []string{cfg.DefaultTenant}
	}
	cfg.Store = strings.ToLower(cfg.Store)
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves TIMEZONE. Dates are stored without a zone; the location
// only decides what "today" is and where exported events sit.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionMinutes) * time.Minute
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key of at least 32 bytes is required.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE is %q", StorePostgres)
		}
	case StoreMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE=%s is not allowed in production", StoreMemory)
		}
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if !c.IsDev() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes outside development (ENV=%q)", c.Env)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.SeriesWriteConcurrency < 1 {
		return fmt.Errorf("SERIES_WRITE_CONCURRENCY must be at least 1, got %d", c.SeriesWriteConcurrency)
	}
	if c.SeriesMaxDays < 1 {
		return fmt.Errorf("SERIES_MAX_DAYS must be at least 1, got %d", c.SeriesMaxDays)
	}
	if c.SessionMinutes < 1 {
		return fmt.Errorf("SESSION_MINUTES must be at least 1, got %d", c.SessionMinutes)
	}
	if c.SummaryCacheTTL < 0 {
		return fmt.Errorf("SUMMARY_CACHE_TTL must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.ReminderCron); err != nil {
		return fmt.Errorf("REMINDER_CRON %q: %w", c.ReminderCron, err)
	}
	if c.WebhookSecret != "" && c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_SECRET is set but WEBHOOK_URL is empty")
	}
	return nil
}
