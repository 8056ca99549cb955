package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Web server
	HTTPBind    string
	CORSOrigins []string

	// Storage. Driver is "sqlite" or "mongo".
	StoreDriver string
	SQLitePath  string
	MongoURI    string
	MongoDB     string

	// Messaging
	NATSURL string

	// Auth
	JWTSecret string

	// Short links
	ShortLinkSecret string
	ShortLinkTTL    time.Duration
	AppBaseURL      string
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	ttlMinutes, err := intEnvDefault("SHORTLINK_EXP_MINUTES", 4320)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPBind:        getEnvDefault("HTTP_BIND", "0.0.0.0:8080"),
		CORSOrigins:     []string{getEnvDefault("CORS_ORIGIN", "*")},
		StoreDriver:     getEnvDefault("STORE_DRIVER", "sqlite"),
		SQLitePath:      getEnvDefault("SQLITE_PATH", "./data/splitbill.db"),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDB:         getEnvDefault("MONGODB_DATABASE", "splitbill"),
		NATSURL:         os.Getenv("NATS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		ShortLinkSecret: os.Getenv("SHORTLINK_SECRET"),
		ShortLinkTTL:    time.Duration(ttlMinutes) * time.Minute,
		AppBaseURL:      getEnvDefault("APP_BASE_URL", "http://localhost:8080"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.ShortLinkSecret == "" {
		return nil, fmt.Errorf("SHORTLINK_SECRET is required")
	}
	switch cfg.StoreDriver {
	case "sqlite":
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is required when STORE_DRIVER=mongo")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want sqlite or mongo)", cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnvDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
