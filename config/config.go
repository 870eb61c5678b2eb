// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the service reads at startup.
type Config struct {
	App         AppConfig
	Model       ModelConfig
	Marketplace MarketplaceConfig
	Redis       RedisConfig
	Translation TranslationConfig
}

// AppConfig covers the HTTP surface and logging.
type AppConfig struct {
	Port               string
	CorsAllowedOrigins string
	LogLevel           string
}

// ModelConfig selects the chat model powering the agents and the translator.
type ModelConfig struct {
	Provider    string // "openai" or "anthropic"
	Name        string
	APIKey      string
	Temperature float64
}

// MarketplaceConfig points at the vendor API.
type MarketplaceConfig struct {
	BaseURL               string
	InsecureSkipTLSVerify bool
}

// RedisConfig enables the Redis session store when Addr is set; otherwise
// sessions stay in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TranslationConfig tunes the translation admission queue.
type TranslationConfig struct {
	QueueLimit  int
	QueueWindow time.Duration
}

// Load reads the environment. A missing .env file is not an error.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
		},
		Model: ModelConfig{
			Provider:    getEnv("MODEL_PROVIDER", "openai"),
			Name:        getEnv("MODEL_NAME", ""),
			APIKey:      getEnv("MODEL_API_KEY", ""),
			Temperature: getEnvAsFloat("MODEL_TEMPERATURE", 0.3),
		},
		Marketplace: MarketplaceConfig{
			BaseURL:               getEnv("MARKETPLACE_BASE_URL", "https://chemfalcon.com:2053"),
			InsecureSkipTLSVerify: getEnvAsBool("MARKETPLACE_INSECURE_SKIP_TLS_VERIFY", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Translation: TranslationConfig{
			QueueLimit:  getEnvAsInt("TRANSLATION_QUEUE_LIMIT", 25),
			QueueWindow: getEnvAsDuration("TRANSLATION_QUEUE_WINDOW", time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
