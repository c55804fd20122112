package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	RiotAPIKey       string
	RiotPlatformBase string
	RiotRegionalBase string

	// StoreBackend is "sqlite" or "dynamodb".
	StoreBackend  string
	DBPath        string
	DynamoTable   string
	DynamoRegion  string
	DynamoLocal   bool
	DynamoBaseURL string

	ServerPort string
	LogLevel   string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		RiotAPIKey:       getEnv("RIOT_API_KEY", ""),
		RiotPlatformBase: getEnv("RIOT_BASE_URL_PLATFORM", "https://na1.api.riotgames.com"),
		RiotRegionalBase: getEnv("RIOT_BASE_URL_REGION", "https://americas.api.riotgames.com"),
		StoreBackend:     getEnv("STORE_BACKEND", "sqlite"),
		DBPath:           getEnv("DB_PATH", "sub2play.db"),
		DynamoTable:      getEnv("DYNAMO_TABLE", "sub2play"),
		DynamoRegion:     getEnv("AWS_REGION", "us-east-1"),
		DynamoLocal:      getEnv("DYNAMO_LOCAL", "") == "true",
		DynamoBaseURL:    getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if cfg.RiotAPIKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY is required")
	}
	if cfg.StoreBackend != BackendSQLite && cfg.StoreBackend != BackendDynamoDB {
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	logger.Info().
		Str("store_backend", cfg.StoreBackend).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("riot_platform_base", cfg.RiotPlatformBase).
		Str("riot_regional_base", cfg.RiotRegionalBase).
		Int("riot_key_length", len(cfg.RiotAPIKey)).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
