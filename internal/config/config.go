// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Agent       AgentConfig
	Transcript  TranscriptConfig
}

// AgentConfig holds settings for the reasoning service client.
type AgentConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// TranscriptConfig controls NDJSON session transcript logging.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	timeoutSec := getEnvInt("AGENT_TIMEOUT_SECONDS", 30)
	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/lookout.db"),
		Agent: AgentConfig{
			APIKey:      getEnv("AGENT_API_KEY", ""),
			BaseURL:     getEnv("AGENT_BASE_URL", ""),
			Model:       getEnv("AGENT_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("AGENT_MAX_TOKENS", 2048),
			Temperature: getEnvFloat32("AGENT_TEMPERATURE", 0.2),
			Timeout:     time.Duration(timeoutSec) * time.Second,
		},
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", true),
			Dir:       getEnv("TRANSCRIPT_DIR", "./data/logs/transcripts"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Agent.APIKey == "" {
		return fmt.Errorf("AGENT_API_KEY cannot be empty")
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("AGENT_MODEL cannot be empty")
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_DIR cannot be empty when transcripts are enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat32(key string, fallback float32) float32 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}
