package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"rank_tracker/internal/config"
)

func TestNewWithoutSources(t *testing.T) {
	cfg := &config.Config{
		DatabasePath:      filepath.Join(t.TempDir(), "nested", "tracker.db"),
		DataForSEOBaseURL: "https://api.dataforseo.com",
		SourceTimeout:     time.Second,
	}
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	res := a.Pipeline.RunCollection(context.Background())
	if res.OK {
		t.Fatal("collection without target domain should fail")
	}
	runs, err := a.Store.ListRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != res.RunID {
		t.Errorf("runs = %+v, want the failed run recorded", runs)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	s, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	_ = s.Close()
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		log := NewLogger(tt.level)
		if !log.Enabled(context.Background(), tt.want) {
			t.Errorf("NewLogger(%q) disables %v", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && log.Enabled(context.Background(), tt.want-1) {
			t.Errorf("NewLogger(%q) enables below %v", tt.level, tt.want)
		}
	}
}
