package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI     string
	TelegramToken   string
	OpenAIAPIKey    string
	AIBaseURL       string
	AIModel         string
	AITimeout       time.Duration
	EmbeddingModel  string
	DefaultTimezone string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	return &Config{
		DatabaseURI:     os.Getenv("DATABASE_URI"),
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AIBaseURL:       os.Getenv("AI_BASE_URL"),
		AIModel:         getEnvOrDefault("AI_MODEL", "gpt-4o-mini"),
		AITimeout:       getDurationOrDefault("AI_TIMEOUT", 15*time.Second),
		EmbeddingModel:  getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		DefaultTimezone: getEnvOrDefault("DEFAULT_TIMEZONE", "UTC"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
