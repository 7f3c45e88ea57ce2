// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the process configuration. It is built once at startup and
// passed to the components that need it.
type Config struct {
	DatabasePath  string
	LogLevel      string
	HTTPAddr      string
	TriggerSecret string

	GSCCredentialsFile string
	GSCProperty        string

	DataForSEOLogin    string
	DataForSEOPassword string
	DataForSEOBaseURL  string

	TelegramBotToken string
	TelegramChatID   int64

	SourceTimeout   time.Duration
	SERPBatchPause  time.Duration
	CollectSchedule string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:       envOrDefault("DATABASE_PATH", "./data/tracker.db"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		TriggerSecret:      os.Getenv("TRIGGER_SECRET"),
		GSCCredentialsFile: os.Getenv("GSC_CREDENTIALS_FILE"),
		GSCProperty:        os.Getenv("GSC_PROPERTY"),
		DataForSEOLogin:    os.Getenv("DATAFORSEO_LOGIN"),
		DataForSEOPassword: os.Getenv("DATAFORSEO_PASSWORD"),
		DataForSEOBaseURL:  strings.TrimSuffix(envOrDefault("DATAFORSEO_BASE_URL", "https://api.dataforseo.com"), "/"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		CollectSchedule:    envOrDefault("COLLECT_SCHEDULE", "0 6 * * 1"),
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	var err error
	if cfg.SourceTimeout, err = durationEnv("SOURCE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SERPBatchPause, err = durationEnv("SERP_BATCH_PAUSE", 2*time.Second); err != nil {
		return nil, err
	}

	if _, err := cron.ParseStandard(cfg.CollectSchedule); err != nil {
		return nil, fmt.Errorf("invalid COLLECT_SCHEDULE %q: %w", cfg.CollectSchedule, err)
	}

	return cfg, nil
}

// SERPConfigured reports whether SERP API credentials are present.
func (c *Config) SERPConfigured() bool {
	return c.DataForSEOLogin != "" && c.DataForSEOPassword != ""
}

// NotificationsConfigured reports whether the Telegram sink has a destination.
func (c *Config) NotificationsConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative duration", key, raw)
	}
	return d, nil
}
