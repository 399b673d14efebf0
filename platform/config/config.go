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

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig provides settings for the asynq task queue and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetAsynqConcurrency() int
}

// DedupConfig provides settings for the company deduplicator.
type DedupConfig interface {
	GetSimilarityThreshold() float64
	GetAmbiguityBand() float64
}

// ScoringConfig provides settings for the ICP scoring engine.
type ScoringConfig interface {
	GetScoringWeightsFile() string
}

// OutreachConfig provides settings for the sequence scheduler and send admission.
type OutreachConfig interface {
	GetDailySendLimit() int
	GetMinSendDelay() time.Duration
	GetMaxSendDelay() time.Duration
	GetBusinessTimezone() string
	GetBusinessStartHour() int
	GetBusinessEndHour() int
	GetSequenceDayOffsets() []int
}

// SMTPConfig provides settings for the outbound mail adapter.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUser() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// IMAPConfig provides settings for the inbound reply poller.
type IMAPConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUser() string
	GetIMAPPassword() string
	GetIMAPFolder() string
	GetIMAPPollInterval() time.Duration
	IsIMAPEnabled() bool
}

// TrackingConfig provides settings for open/click tracking endpoints.
type TrackingConfig interface {
	GetTrackingBaseURL() string
	GetClickFallbackURL() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	RedisURL            string
	AsynqConcurrency    int
	CORSAllowAll        bool
	CORSOrigins         []string
	SimilarityThreshold float64
	AmbiguityBand       float64
	ScoringWeightsFile  string
	DailySendLimit      int
	MinSendDelay        time.Duration
	MaxSendDelay        time.Duration
	BusinessTimezone    string
	BusinessStartHour   int
	BusinessEndHour     int
	SequenceDayOffsets  []int
	TrackingBaseURL     string
	ClickFallbackURL    string
	EmailEnabled        bool
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPassword        string
	EmailFromName       string
	EmailFromAddress    string
	IMAPHost            string
	IMAPPort            int
	IMAPUser            string
	IMAPPassword        string
	IMAPFolder          string
	IMAPPollInterval    time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetAsynqConcurrency() int { return c.AsynqConcurrency }

// DedupConfig implementation
func (c *Config) GetSimilarityThreshold() float64 { return c.SimilarityThreshold }
func (c *Config) GetAmbiguityBand() float64       { return c.AmbiguityBand }

// ScoringConfig implementation
func (c *Config) GetScoringWeightsFile() string { return c.ScoringWeightsFile }

// OutreachConfig implementation
func (c *Config) GetDailySendLimit() int         { return c.DailySendLimit }
func (c *Config) GetMinSendDelay() time.Duration { return c.MinSendDelay }
func (c *Config) GetMaxSendDelay() time.Duration { return c.MaxSendDelay }
func (c *Config) GetBusinessTimezone() string    { return c.BusinessTimezone }
func (c *Config) GetBusinessStartHour() int      { return c.BusinessStartHour }
func (c *Config) GetBusinessEndHour() int        { return c.BusinessEndHour }
func (c *Config) GetSequenceDayOffsets() []int   { return c.SequenceDayOffsets }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUser() string         { return c.SMTPUser }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.EmailEnabled && c.SMTPHost != "" }

// IMAPConfig implementation
func (c *Config) GetIMAPHost() string                { return c.IMAPHost }
func (c *Config) GetIMAPPort() int                   { return c.IMAPPort }
func (c *Config) GetIMAPUser() string                { return c.IMAPUser }
func (c *Config) GetIMAPPassword() string            { return c.IMAPPassword }
func (c *Config) GetIMAPFolder() string              { return c.IMAPFolder }
func (c *Config) GetIMAPPollInterval() time.Duration { return c.IMAPPollInterval }
func (c *Config) IsIMAPEnabled() bool                { return c.IMAPHost != "" && c.IMAPUser != "" }

// TrackingConfig implementation
func (c *Config) GetTrackingBaseURL() string  { return c.TrackingBaseURL }
func (c *Config) GetClickFallbackURL() string { return c.ClickFallbackURL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AsynqConcurrency:    mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		SimilarityThreshold: mustFloat(getEnv("DEDUP_SIMILARITY_THRESHOLD", "0.85")),
		AmbiguityBand:       mustFloat(getEnv("DEDUP_AMBIGUITY_BAND", "0.05")),
		ScoringWeightsFile:  getEnv("SCORING_WEIGHTS_FILE", ""),
		DailySendLimit:      mustInt(getEnv("EMAIL_DAILY_LIMIT", "50")),
		MinSendDelay:        mustDuration(getEnv("EMAIL_MIN_DELAY", "2m")),
		MaxSendDelay:        mustDuration(getEnv("EMAIL_MAX_DELAY", "5m")),
		BusinessTimezone:    getEnv("BUSINESS_TIMEZONE", "Europe/Amsterdam"),
		BusinessStartHour:   mustInt(getEnv("BUSINESS_START_HOUR", "9")),
		BusinessEndHour:     mustInt(getEnv("BUSINESS_END_HOUR", "17")),
		SequenceDayOffsets:  mustIntList(getEnv("SEQUENCE_DAY_OFFSETS", "0,3,7,14")),
		TrackingBaseURL:     getEnv("TRACKING_BASE_URL", "http://localhost:8080"),
		ClickFallbackURL:    getEnv("CLICK_FALLBACK_URL", ""),
		EmailEnabled:        strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true"),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "LeadMachine"),
		EmailFromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
		IMAPHost:            getEnv("IMAP_HOST", ""),
		IMAPPort:            mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUser:            getEnv("IMAP_USER", ""),
		IMAPPassword:        getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:          getEnv("IMAP_FOLDER", "INBOX"),
		IMAPPollInterval:    mustDuration(getEnv("IMAP_POLL_INTERVAL", "2m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("DEDUP_SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if cfg.DailySendLimit < 1 {
		return nil, fmt.Errorf("EMAIL_DAILY_LIMIT must be at least 1")
	}
	if cfg.MinSendDelay <= 0 || cfg.MinSendDelay > cfg.MaxSendDelay {
		return nil, fmt.Errorf("EMAIL_MIN_DELAY must be positive and not exceed EMAIL_MAX_DELAY")
	}
	if cfg.BusinessStartHour < 0 || cfg.BusinessEndHour > 24 || cfg.BusinessStartHour >= cfg.BusinessEndHour {
		return nil, fmt.Errorf("business hours window is invalid")
	}
	if len(cfg.SequenceDayOffsets) == 0 {
		return nil, fmt.Errorf("SEQUENCE_DAY_OFFSETS must not be empty")
	}
	for i, offset := range cfg.SequenceDayOffsets {
		if offset < 0 || (i > 0 && offset <= cfg.SequenceDayOffsets[i-1]) {
			return nil, fmt.Errorf("SEQUENCE_DAY_OFFSETS must be non-negative and strictly increasing")
		}
	}
	if cfg.IsEmailEnabled() && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustIntList(value string) []int {
	parts := splitCSV(value)
	results := make([]int, 0, len(parts))
	for _, part := range parts {
		results = append(results, mustInt(part))
	}
	return results
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
