package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is loaded once in main and
// passed explicitly to the constructors that need it; there is no package
// level cached instance.
type Config struct {
	// Server
	Env  string
	Port string

	// Tenant storage
	TenantDataDir string

	// Sync transport
	AMQPURL      string
	SyncExchange string
	SyncKey      string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration
}

// Load reads configuration from the environment, with a .env file as an
// optional source for local development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Missing .env is fine; environment variables still apply.
		fmt.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		TenantDataDir: getEnv("TENANT_DATA_DIR", "data/tenants"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		SyncExchange: getEnv("SYNC_EXCHANGE", "finwave.sync"),
		SyncKey:      getEnv("SYNC_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
	}

	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN value %q: %w", expStr, err)
	}
	cfg.JWTExpirationDur = expDur

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
