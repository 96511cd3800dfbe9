// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	GenAI         GenAIConfig        `mapstructure:"genai"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Pipelines     PipelineConfig     `mapstructure:"pipelines"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	MaxUploadBytes  int64    `mapstructure:"max_upload_bytes"`
	ClientRateLimit string   `mapstructure:"client_rate_limit"` // ulule/limiter format, e.g. "100-M"
}

// GenAIConfig holds settings for the external generative inference API and
// the resilience layer wrapped around it.
type GenAIConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	APIKey               string `mapstructure:"api_key"`
	Model                string `mapstructure:"model"`
	Timeout              int    `mapstructure:"timeout"` // milliseconds, per call
	MaxOutputTokens      int    `mapstructure:"max_output_tokens"`
	MaxRequestsPerMinute int    `mapstructure:"max_requests_per_minute"`
	MaxTokensPerMinute   int    `mapstructure:"max_tokens_per_minute"`
	MaxRetries           int    `mapstructure:"max_retries"`
	EnablePromptCaching  bool   `mapstructure:"enable_prompt_caching"`
	CacheTTLSeconds      int    `mapstructure:"cache_ttl_seconds"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PipelineConfig holds the orchestration knobs shared by both pipelines.
type PipelineConfig struct {
	HistoryWindowDays int `mapstructure:"history_window_days"`
}

// NotificationConfig holds settings for the escalation notifier.
type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
	AWS     struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	Email struct {
		FromEmail string `mapstructure:"from_email"`
		CareTeam  string `mapstructure:"care_team"`
	} `mapstructure:"email"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
