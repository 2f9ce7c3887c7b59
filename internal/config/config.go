package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const devJWTSecret = "dev-secret-change-in-production"

// devEncryptionKey is base64 for 32 bytes of 0x42 ("B"). Never valid in production.
const devEncryptionKey = "QkJCQkJCQkJCQkJCQkJCQkJCQkJCQkJCQkJCQkJCQkI="

type Config struct {
	Port string
	Env  string

	StoreDriver   string
	DatabaseDSN   string
	MongoURI      string
	MongoDatabase string

	JWTSecret string
	JWTExpiry time.Duration

	EncryptionKey        string
	EncryptionPassphrase string
	EncryptionSalt       string

	Sync     SyncConfig
	Provider ProviderConfig
}

// SyncConfig tunes the synchronization engine. TriggerRPS and TriggerBurst
// limit synchronization requests per caller.
type SyncConfig struct {
	Lookback     time.Duration
	Concurrency  int
	TriggerRPS   float64
	TriggerBurst int
}

// ProviderConfig tunes outbound calls to CI backends.
type ProviderConfig struct {
	Timeout  time.Duration
	RPS      float64
	Burst    int
	PageSize int
}

func Load() Config {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		StoreDriver:   getEnv("STORE_DRIVER", "mysql"),
		DatabaseDSN:   getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/buildpulse?parseTime=true"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "buildpulse"),
		JWTSecret:     getEnv("JWT_SECRET", devJWTSecret),
		JWTExpiry:     getDuration("JWT_EXPIRY", 24*time.Hour),

		EncryptionKey:        getEnv("ENCRYPTION_KEY", ""),
		EncryptionPassphrase: getEnv("ENCRYPTION_PASSPHRASE", ""),
		EncryptionSalt:       getEnv("ENCRYPTION_SALT", ""),

		Sync: SyncConfig{
			Lookback:     getDuration("SYNC_LOOKBACK", 14*24*time.Hour),
			Concurrency:  getInt("SYNC_CONCURRENCY", 4),
			TriggerRPS:   getFloat("SYNC_TRIGGER_RPS", 0.2),
			TriggerBurst: getInt("SYNC_TRIGGER_BURST", 2),
		},
		Provider: ProviderConfig{
			Timeout:  getDuration("PROVIDER_TIMEOUT", 30*time.Second),
			RPS:      getFloat("PROVIDER_RPS", 10),
			Burst:    getInt("PROVIDER_BURST", 5),
			PageSize: getInt("PROVIDER_PAGE_SIZE", 25),
		},
	}

	if cfg.Env == "production" {
		if cfg.JWTSecret == devJWTSecret {
			slog.Error("JWT_SECRET must be set in production environment")
			os.Exit(1)
		}
		if cfg.EncryptionKey == "" && cfg.EncryptionPassphrase == "" {
			slog.Error("ENCRYPTION_KEY or ENCRYPTION_PASSPHRASE must be set in production environment")
			os.Exit(1)
		}
	}

	if cfg.EncryptionKey == "" && cfg.EncryptionPassphrase == "" {
		slog.Warn("no encryption key configured, using development key")
		cfg.EncryptionKey = devEncryptionKey
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		slog.Warn("invalid number in environment, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
