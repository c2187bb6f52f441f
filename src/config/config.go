package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Security settings
	JWTSecret        string
	AuthorityAccount string
	TokenExpiry      time.Duration

	// Protocol settings
	BuybackEscrowAccount  string
	DistributionBatchSize int
	StatsCacheTTL         time.Duration

	// Rate limiting
	RateLimitInterval time.Duration
	RateLimitBurst    int

	// Frontend URL for CORS
	FrontendBaseURL string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getRequiredEnv("JWT_SECRET")

	batchSize := getEnvAsInt("DISTRIBUTION_BATCH_SIZE", 100)
	if batchSize <= 0 {
		log.Printf("WARNING: DISTRIBUTION_BATCH_SIZE must be positive, got %d. Using default 100.", batchSize)
		batchSize = 100
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./soldrip.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		JWTSecret:        jwtSecret,
		AuthorityAccount: getEnv("AUTHORITY_ACCOUNT", ""),
		TokenExpiry:      getEnvAsDuration("TOKEN_EXPIRY", 15*time.Minute),

		BuybackEscrowAccount:  getEnv("BUYBACK_ESCROW_ACCOUNT", ""),
		DistributionBatchSize: batchSize,
		StatsCacheTTL:         getEnvAsDuration("STATS_CACHE_TTL", 30*time.Second),

		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 100*time.Millisecond),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 30),

		FrontendBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, BatchSize=%d",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.DistributionBatchSize)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start securely.", key)
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
