// Package config loads runtime settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.
type Config struct {
	Env         string // APP_ENV (dev, test, prod)
	Port        string // APP_PORT
	ServiceName string // OTEL_SERVICE_NAME
	LogLevel    slog.Level

	StoreDriver string // STORE_DRIVER: mysql or memory
	DBUser      string // DB_USER
	DBPass      string // DB_PASS (may be empty)
	DBHost      string // DB_HOST
	DBPort      string // DB_PORT
	DBName      string // DB_NAME
	AutoMigrate bool   // DB_AUTO_MIGRATE

	JWTSecret    string        // JWT_SECRET
	AccessTTL    time.Duration // ACCESS_TOKEN_TTL_MIN, used by the dev token tool
	FacilityTZ   *time.Location
	OTELEndpoint string // OTEL_EXPORTER_OTLP_ENDPOINT; empty disables tracing

	AMQPURL               string // AMQP_URL; empty disables publishing
	NotifyConsumerEnabled bool   // NOTIFY_CONSUMER_ENABLED
	NotifyLogDir          string // NOTIFY_LOG_DIR

	Sweep     SweepConfig
	RateLimit RateLimitConfig
	Cache     CatalogCacheConfig
}

// SweepConfig drives the periodic sweep job.
type SweepConfig struct {
	Enabled              bool
	Interval             time.Duration
	CheckedInGrace       time.Duration
	ReminderLead         time.Duration
	OverdueReminderEvery time.Duration
}

// Load reads the environment and reports every missing or invalid variable at once.
func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	must := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}

	cfg := Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        envStr("APP_PORT", "8080"),
		ServiceName: envStr("OTEL_SERVICE_NAME", "housing-reservations"),

		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		DBPass:      os.Getenv("DB_PASS"),
		AutoMigrate: envBool("DB_AUTO_MIGRATE", true),

		JWTSecret:    must("JWT_SECRET"),
		AccessTTL:    time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
		OTELEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		AMQPURL:               os.Getenv("AMQP_URL"),
		NotifyConsumerEnabled: envBool("NOTIFY_CONSUMER_ENABLED", false),
		NotifyLogDir:          envStr("NOTIFY_LOG_DIR", "logs"),

		Sweep: SweepConfig{
			Enabled:              envBool("SWEEP_ENABLED", true),
			Interval:             envDur("SWEEP_INTERVAL", time.Minute),
			CheckedInGrace:       envDur("SWEEP_CHECKED_IN_GRACE", 2*time.Hour),
			ReminderLead:         envDur("SWEEP_REMINDER_LEAD", time.Hour),
			OverdueReminderEvery: envDur("SWEEP_OVERDUE_REMINDER_EVERY", 24*time.Hour),
		},
		RateLimit: LoadRateLimitConfig(),
		Cache:     LoadCatalogCacheConfig(),
	}

	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver))
	}

	loc, err := time.LoadLocation(envStr("FACILITY_TZ", "UTC"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid FACILITY_TZ: %w", err))
		loc = time.UTC
	}
	cfg.FacilityTZ = loc

	if err := cfg.LogLevel.UnmarshalText([]byte(envStr("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}
	if cfg.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	return cfg, errors.Join(errs...)
}

func envStr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k))); err == nil {
		return dur
	}
	return d
}
