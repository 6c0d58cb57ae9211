// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	DBPath             string
	LogLevel           slog.Level
	CORSAllowedOrigins []string

	Daily     DailyConfig
	Pipeline  PipelineConfig
	Mongo     MongoConfig
	Upstream  UpstreamConfig
	Session   SessionConfig
	RateLimit RateLimitConfig

	CallRetention time.Duration
}

// DailyConfig configures the rooms API.
type DailyConfig struct {
	APIKey  string
	BaseURL string
	RoomTTL time.Duration
}

// PipelineConfig configures the media pipeline and the model it runs.
type PipelineConfig struct {
	URL         string
	ModelID     string
	VoiceID     string
	Temperature float64
	ProjectID   string
	Location    string
}

// MongoConfig configures the user directory. An empty URI disables it.
type MongoConfig struct {
	URI                 string
	Database            string
	UsersCollection     string
	AnalyticsCollection string
	Timeout             time.Duration
}

// Enabled reports whether a directory store is configured.
func (m MongoConfig) Enabled() bool {
	return m.URI != ""
}

// UpstreamConfig configures the delivery and summarizer services.
type UpstreamConfig struct {
	DeliveryURL   string
	SummarizerURL string
	Timeout       time.Duration
}

// SessionConfig tunes call sessions.
type SessionConfig struct {
	AgentName        string
	BotName          string
	SettleDelay      time.Duration
	Timezone         string
	SystemPromptFile string
	GuardrailsFile   string
}

// RateLimitConfig limits /start per client.
type RateLimitConfig struct {
	StartPerMinute int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8001"),
		DBPath:             getEnv("DB_PATH", "./data/calls.db"),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Daily: DailyConfig{
			APIKey:  getEnv("DAILY_API_KEY", ""),
			BaseURL: getEnv("DAILY_API_URL", "https://api.daily.co/v1"),
			RoomTTL: getEnvDuration("ROOM_TTL", time.Hour),
		},
		Pipeline: PipelineConfig{
			URL:         getEnv("PIPELINE_URL", "ws://localhost:8765/sessions"),
			ModelID:     getEnv("MODEL_ID", "gemini-live-2.5-flash-preview-native-audio-09-2025"),
			VoiceID:     getEnv("VOICE_ID", "Aoede"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			ProjectID:   getEnv("GOOGLE_CLOUD_PROJECT_ID", ""),
			Location:    getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		},
		Mongo: MongoConfig{
			URI:                 getEnv("MONGODB_URI", ""),
			Database:            getEnv("MONGODB_DATABASE", "VIT"),
			UsersCollection:     getEnv("MONGODB_USERS_COLLECTION", "users"),
			AnalyticsCollection: getEnv("MONGODB_ANALYTICS_COLLECTION", "userAnalytics"),
			Timeout:             getEnvDuration("MONGODB_TIMEOUT", 5*time.Second),
		},
		Upstream: UpstreamConfig{
			DeliveryURL:   getEnv("DELIVERY_URL", "https://vitpreprocessor-739298578243.us-central1.run.app/query"),
			SummarizerURL: getEnv("SUMMARIZER_URL", "https://vitpostprocessor-739298578243.us-central1.run.app/process"),
			Timeout:       getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			AgentName:        getEnv("AGENT_NAME", "Natalie"),
			BotName:          getEnv("BOT_NAME", "Voice Bot"),
			SettleDelay:      getEnvDuration("SETTLE_DELAY", 500*time.Millisecond),
			Timezone:         getEnv("TIMEZONE", "Asia/Kolkata"),
			SystemPromptFile: getEnv("SYSTEM_PROMPT_FILE", ""),
			GuardrailsFile:   getEnv("GUARDRAILS_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			StartPerMinute: getEnvInt("START_RATE_LIMIT", 10),
		},
		CallRetention: getEnvDuration("CALL_RETENTION", 7*24*time.Hour),
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
	if c.Daily.APIKey == "" {
		return fmt.Errorf("DAILY_API_KEY is required")
	}
	if c.Daily.RoomTTL <= 0 {
		return fmt.Errorf("ROOM_TTL must be > 0")
	}
	if c.Pipeline.URL == "" {
		return fmt.Errorf("PIPELINE_URL cannot be empty")
	}
	if c.Upstream.DeliveryURL == "" || c.Upstream.SummarizerURL == "" {
		return fmt.Errorf("DELIVERY_URL and SUMMARIZER_URL cannot be empty")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0")
	}
	if c.Session.SettleDelay < 0 {
		return fmt.Errorf("SETTLE_DELAY cannot be negative")
	}
	if c.Mongo.Enabled() && c.Mongo.Timeout <= 0 {
		return fmt.Errorf("MONGODB_TIMEOUT must be > 0")
	}
	if c.RateLimit.StartPerMinute <= 0 {
		return fmt.Errorf("START_RATE_LIMIT must be > 0")
	}
	if c.CallRetention <= 0 {
		return fmt.Errorf("CALL_RETENTION must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
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

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
