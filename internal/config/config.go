// Package config loads process configuration from the environment,
// with .env support for local development.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// DefaultDBConfig is the store configuration used when DB_CONFIG is
// unset: a local SQLite file, the original daemon's backing store.
const DefaultDBConfig = `{"db_type":"sqlite","extra_details":{"path":"/tmp/conference-mapper.db"}}`

// Config holds all process configuration.
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// DBConfig is the JSON store configuration consumed by the
	// mapstore factory.
	DBConfig string

	// ExpireSeconds is the retention window for mapping entries.
	ExpireSeconds int64

	// IDLength is the room code width in decimal digits.
	IDLength int

	// SweepIntervalSeconds enables a periodic expiry sweep when
	// positive; zero keeps the original startup-only sweep.
	SweepIntervalSeconds int64

	// PhoneNumbers is the static region-to-dial-in-numbers table
	// served on /phoneNumberList.
	PhoneNumbers map[string][]string

	RPSLimit float64
	RPSBurst int
}

// Retention returns the expiry window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.ExpireSeconds) * time.Second
}

// SweepInterval returns the periodic sweep interval; zero means
// startup-only sweeping.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8888"),
		Environment:          getEnv("ENVIRONMENT", "production"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DBConfig:             getEnv("DB_CONFIG", DefaultDBConfig),
		ExpireSeconds:        getEnvInt64(logger, "EXPIRE_SECONDS", 60*60*24*3),
		IDLength:             int(getEnvInt64(logger, "ID_LENGTH", 5)),
		SweepIntervalSeconds: getEnvInt64(logger, "SWEEP_INTERVAL_SECONDS", 0),
		PhoneNumbers:         getEnvNumbers(logger, "PHONE_NUMBERS"),
		RPSLimit:             getEnvFloat(logger, "RPS_LIMIT", 50),
		RPSBurst:             int(getEnvInt64(logger, "RPS_BURST", 100)),
	}

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.Int64("expire_seconds", cfg.ExpireSeconds),
		zap.Int("id_length", cfg.IDLength),
		zap.Int64("sweep_interval_seconds", cfg.SweepIntervalSeconds),
	)
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(logger *zap.Logger, key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logger.Warn("invalid integer in environment, using default",
			zap.String("key", key), zap.String("value", v), zap.Int64("default", fallback))
		return fallback
	}
	return n
}

func getEnvFloat(logger *zap.Logger, key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("invalid float in environment, using default",
			zap.String("key", key), zap.String("value", v), zap.Float64("default", fallback))
		return fallback
	}
	return f
}

func getEnvNumbers(logger *zap.Logger, key string) map[string][]string {
	fallback := map[string][]string{
		"DE": {"+49123456789"},
	}
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var numbers map[string][]string
	if err := json.Unmarshal([]byte(v), &numbers); err != nil {
		logger.Warn("invalid phone number table in environment, using default",
			zap.String("key", key), zap.Error(err))
		return fallback
	}
	return numbers
}
