package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"DATABASE_PATH", "LOG_LEVEL", "HTTP_ADDR", "TRIGGER_SECRET",
	"GSC_CREDENTIALS_FILE", "GSC_PROPERTY",
	"DATAFORSEO_LOGIN", "DATAFORSEO_PASSWORD", "DATAFORSEO_BASE_URL",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	"SOURCE_TIMEOUT", "SERP_BATCH_PAUSE", "COLLECT_SCHEDULE",
}

func defaults() *Config {
	return &Config{
		DatabasePath:      "./data/tracker.db",
		LogLevel:          "info",
		HTTPAddr:          ":8080",
		DataForSEOBaseURL: "https://api.dataforseo.com",
		SourceTimeout:     60 * time.Second,
		SERPBatchPause:    2 * time.Second,
		CollectSchedule:   "0 6 * * 1",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name: "defaults applied",
			env:  map[string]string{},
			want: defaults(),
		},
		{
			name: "all values set",
			env: map[string]string{
				"DATABASE_PATH":        "/tmp/t.db",
				"LOG_LEVEL":            "debug",
				"HTTP_ADDR":            ":9090",
				"TRIGGER_SECRET":       "s3cret",
				"GSC_CREDENTIALS_FILE": "/etc/gsc.json",
				"GSC_PROPERTY":         "sc-domain:example.com",
				"DATAFORSEO_LOGIN":     "login",
				"DATAFORSEO_PASSWORD":  "pass",
				"DATAFORSEO_BASE_URL":  "https://sandbox.dataforseo.com/",
				"TELEGRAM_BOT_TOKEN":   "tok",
				"TELEGRAM_CHAT_ID":     "-100123",
				"SOURCE_TIMEOUT":       "15s",
				"SERP_BATCH_PAUSE":     "500ms",
				"COLLECT_SCHEDULE":     "30 5 * * 1",
			},
			want: &Config{
				DatabasePath:       "/tmp/t.db",
				LogLevel:           "debug",
				HTTPAddr:           ":9090",
				TriggerSecret:      "s3cret",
				GSCCredentialsFile: "/etc/gsc.json",
				GSCProperty:        "sc-domain:example.com",
				DataForSEOLogin:    "login",
				DataForSEOPassword: "pass",
				DataForSEOBaseURL:  "https://sandbox.dataforseo.com",
				TelegramBotToken:   "tok",
				TelegramChatID:     -100123,
				SourceTimeout:      15 * time.Second,
				SERPBatchPause:     500 * time.Millisecond,
				CollectSchedule:    "30 5 * * 1",
			},
		},
		{
			name:    "invalid chat id",
			env:     map[string]string{"TELEGRAM_CHAT_ID": "abc"},
			wantErr: true,
		},
		{
			name:    "invalid timeout",
			env:     map[string]string{"SOURCE_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "negative pause",
			env:     map[string]string{"SERP_BATCH_PAUSE": "-1s"},
			wantErr: true,
		},
		{
			name:    "invalid schedule",
			env:     map[string]string{"COLLECT_SCHEDULE": "every monday"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigured(t *testing.T) {
	cfg := &Config{DataForSEOLogin: "l"}
	if cfg.SERPConfigured() {
		t.Error("expected SERP unconfigured without password")
	}
	cfg.DataForSEOPassword = "p"
	if !cfg.SERPConfigured() {
		t.Error("expected SERP configured")
	}
	cfg.TelegramBotToken = "t"
	if cfg.NotificationsConfigured() {
		t.Error("expected notifications unconfigured without chat id")
	}
	cfg.TelegramChatID = 1
	if !cfg.NotificationsConfigured() {
		t.Error("expected notifications configured")
	}
}
