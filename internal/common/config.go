package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	LogLevel  string
	Server    ServerConfig
	LLM       LLMConfig
	Normalize NormalizeConfig
	Rules     RulesConfig
	Batch     BatchConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string
	HTTPAddr       string
	MetricsEnabled bool
	MaxImageMB     int
}

// LLMConfig holds configuration for the extraction service client
type LLMConfig struct {
	BaseURL           string
	Model             string
	APIKey            string
	Temperature       float32
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NormalizeConfig holds the normalization heuristics
type NormalizeConfig struct {
	RetailMarkup   float64
	MarginLowPct   float64
	MarginHighPct  float64
	MatchTolerance float64
	RetryEnabled   bool
}

// RulesConfig points at the optional vendor rule store
type RulesConfig struct {
	Driver string // "sqlite", "postgres" or empty for built-in rules only
	DSN    string
}

// BatchConfig holds worker queue settings for batch runs
type BatchConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:       getEnv("HTTP_ADDR", ":8081"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MaxImageMB:     getEnvAsInt("MAX_IMAGE_MB", 10),
		},
		LLM: LLMConfig{
			BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			Temperature:       getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:           getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			RequestsPerSecond: getEnvAsFloat64("OPENAI_RPS", 2),
		},
		Normalize: NormalizeConfig{
			RetailMarkup:   getEnvAsFloat64("RETAIL_MARKUP", 1.35),
			MarginLowPct:   getEnvAsFloat64("MARGIN_LOW_PCT", 10),
			MarginHighPct:  getEnvAsFloat64("MARGIN_HIGH_PCT", 80),
			MatchTolerance: getEnvAsFloat64("TOTAL_MATCH_TOLERANCE", 0.05),
			RetryEnabled:   getEnvAsBool("TOTAL_RETRY_ENABLED", true),
		},
		Rules: RulesConfig{
			Driver: strings.ToLower(getEnv("RULES_DB_DRIVER", "")),
			DSN:    getEnv("RULES_DB_DSN", ""),
		},
		Batch: BatchConfig{
			Workers:        getEnvAsInt("BATCH_WORKERS", 4),
			QueueSize:      getEnvAsInt("BATCH_QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("BATCH_PROCESS_TIMEOUT", 3*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration for the server
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	switch c.Rules.Driver {
	case "", "sqlite", "postgres":
	default:
		return NewAppError(CodeConfig, "RULES_DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Rules.Driver != "" && c.Rules.DSN == "" {
		return NewAppError(CodeConfig, "RULES_DB_DSN is required when RULES_DB_DRIVER is set", ErrInvalidInput)
	}
	if c.Normalize.MatchTolerance < 0 {
		return NewAppError(CodeConfig, "TOTAL_MATCH_TOLERANCE must not be negative", ErrInvalidInput)
	}
	return nil
}
