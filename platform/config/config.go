// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// CompletionConfig provides settings for the text-completion collaborator.
type CompletionConfig interface {
	GetGeminiAPIKey() string
	GetCompletionModel() string
	GetCompletionTimeout() time.Duration
	IsCompletionEnabled() bool
}

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	JWTAccessSecret   string
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	RedisURL          string
	RedisTLSInsecure  bool
	AsynqQueueName    string
	AsynqConcurrency  int
	EmailEnabled      bool
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	EmailFromName     string
	EmailFromAddress  string
	GeminiAPIKey      string
	CompletionModel   string
	CompletionTimeout time.Duration
}

// Load reads configuration from the environment (and an optional .env file).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTAccessSecret:   getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:    getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:  mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		EmailEnabled:      strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true"),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "The AI Guy"),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		CompletionModel:   getEnv("COMPLETION_MODEL", "gemini-2.0-flash"),
		CompletionTimeout: mustDuration(getEnv("COMPLETION_TIMEOUT", "20s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string              { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string          { return c.JWTAccessSecret }
func (c *Config) GetHTTPAddr() string                 { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool               { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string            { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool             { return c.CORSAllowCreds }
func (c *Config) GetRedisURL() string                 { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool           { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string           { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int            { return c.AsynqConcurrency }
func (c *Config) GetEmailEnabled() bool               { return c.EmailEnabled && c.SMTPHost != "" }
func (c *Config) GetSMTPHost() string                 { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                    { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string             { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string             { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string            { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string         { return c.EmailFromAddress }
func (c *Config) GetGeminiAPIKey() string             { return c.GeminiAPIKey }
func (c *Config) GetCompletionModel() string          { return c.CompletionModel }
func (c *Config) GetCompletionTimeout() time.Duration { return c.CompletionTimeout }
func (c *Config) IsCompletionEnabled() bool           { return c.GeminiAPIKey != "" }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

func mustInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func mustDuration(value string) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}
