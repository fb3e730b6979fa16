package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// LLM completion service configuration
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeout     time.Duration

	// Parser tuning. The orchestrator consults the fallback parser below
	// FallbackThreshold and rescues high-confidence extractions when the
	// classifier stays under OverrideClassifierMax while the extractor is at
	// or above OverrideExtractorMin.
	FallbackThreshold     float64
	OverrideClassifierMax float64
	OverrideExtractorMin  float64

	// Session and context management
	SessionStoragePath string
	SessionMaxMessages int
	MessageTTL         time.Duration
	PendingCommandTTL  time.Duration
	SessionCleanupTick time.Duration
}

var AppConfig *Config

// Load loads configuration from environment variables
func Load() error {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	AppConfig = &Config{
		Port:                  getEnv("PORT", "8080"),
		Debug:                 getEnvBool("DEBUG", false),
		LLMAPIKey:             getEnv("LLM_API_KEY", ""),
		LLMBaseURL:            getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:              getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:          getEnvInt("LLM_MAX_TOKENS", 1000),
		LLMTemperature:        getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMTimeout:            time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
		FallbackThreshold:     getEnvFloat("PARSER_FALLBACK_THRESHOLD", 0.6),
		OverrideClassifierMax: getEnvFloat("PARSER_OVERRIDE_CLASSIFIER_MAX", 0.65),
		OverrideExtractorMin:  getEnvFloat("PARSER_OVERRIDE_EXTRACTOR_MIN", 0.8),
		SessionStoragePath:    getEnv("SESSION_STORAGE_PATH", "./data/sessions"),
		SessionMaxMessages:    getEnvInt("SESSION_MAX_MESSAGES", 10),
		MessageTTL:            time.Duration(getEnvInt("MESSAGE_TTL_MINUTES", 30)) * time.Minute,
		PendingCommandTTL:     time.Duration(getEnvInt("PENDING_TTL_SECONDS", 30)) * time.Second,
		SessionCleanupTick:    time.Duration(getEnvInt("SESSION_CLEANUP_MINUTES", 10)) * time.Minute,
	}

	// Validate threshold sanity
	if AppConfig.FallbackThreshold < 0 || AppConfig.FallbackThreshold > 1 {
		return fmt.Errorf("PARSER_FALLBACK_THRESHOLD must be within [0,1], got %v", AppConfig.FallbackThreshold)
	}
	if AppConfig.OverrideClassifierMax < 0 || AppConfig.OverrideClassifierMax > 1 {
		return fmt.Errorf("PARSER_OVERRIDE_CLASSIFIER_MAX must be within [0,1], got %v", AppConfig.OverrideClassifierMax)
	}
	if AppConfig.OverrideExtractorMin < 0 || AppConfig.OverrideExtractorMin > 1 {
		return fmt.Errorf("PARSER_OVERRIDE_EXTRACTOR_MIN must be within [0,1], got %v", AppConfig.OverrideExtractorMin)
	}

	// Ensure session storage directory exists
	if err := os.MkdirAll(AppConfig.SessionStoragePath, 0755); err != nil {
		return fmt.Errorf("failed to create session storage directory: %w", err)
	}

	return nil
}

// Helper functions for getting environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
