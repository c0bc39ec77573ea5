package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// StorageBackend selects the task store: "memory", "sqlite" or "firestore".
	StorageBackend string
	SQLitePath     string

	GCPProjectID string
	GCPLocation  string

	// ModelProvider selects the LLM adapter: "mock", "anthropic" or "vertex".
	ModelProvider string
	ModelName     string

	ProviderTimeout time.Duration
	MaxTurnSteps    int
	MaxTokens       int

	SessionCap int
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, v)
	}
	return n
}

// Load reads all env vars and builds the config.
func Load() *Config {
	cfg := &Config{
		Port: getEnv("TASKCHAT_PORT", "8080"),

		StorageBackend: getEnv("TASKCHAT_STORAGE_BACKEND", "memory"),
		SQLitePath:     getEnv("TASKCHAT_SQLITE_PATH", "taskchat.db"),

		GCPProjectID: getEnv("TASKCHAT_GCP_PROJECT", ""),
		GCPLocation:  getEnv("TASKCHAT_GCP_LOCATION", "us-central1"),

		ModelProvider: getEnv("TASKCHAT_MODEL_PROVIDER", "mock"),
		ModelName:     getEnv("TASKCHAT_MODEL_NAME", ""),

		ProviderTimeout: time.Duration(getIntEnv("TASKCHAT_PROVIDER_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxTurnSteps:    getIntEnv("TASKCHAT_MAX_TURN_STEPS", 5),
		MaxTokens:       getIntEnv("TASKCHAT_MAX_TOKENS", 1024),

		SessionCap: getIntEnv("TASKCHAT_SESSION_CAP", 1000),
	}

	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		log.Fatal("TASKCHAT_GCP_PROJECT must be set for the firestore backend")
	}
	if cfg.ModelProvider == "vertex" && cfg.GCPProjectID == "" {
		log.Fatal("TASKCHAT_GCP_PROJECT must be set for the vertex provider")
	}

	return cfg
}
