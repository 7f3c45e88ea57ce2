package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"rank_tracker/internal/pipeline"
)

type mockCollector struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (m *mockCollector) RunCollection(_ context.Context) pipeline.Result {
	m.calls.Add(1)
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	return pipeline.Result{OK: true, RunID: "test"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewInvalidSpec(t *testing.T) {
	if _, err := New("every monday", &mockCollector{}, testLogger()); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if _, err := New("0 6 * * 1", &mockCollector{}, testLogger()); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
}

func TestCollectSkipsWhileRunning(t *testing.T) {
	m := &mockCollector{started: make(chan struct{}), release: make(chan struct{})}
	s, err := New("@weekly", m, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan bool)
	go func() { done <- s.collect(context.Background()) }()
	<-m.started

	if s.collect(context.Background()) {
		t.Error("second collection ran while the first was in progress")
	}

	close(m.release)
	if !<-done {
		t.Error("first collection did not run")
	}
	if got := m.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}

	m.started, m.release = nil, nil
	if !s.collect(context.Background()) {
		t.Error("collection after completion was skipped")
	}
}

func TestRunFiresAndStops(t *testing.T) {
	m := &mockCollector{}
	s, err := New("@every 1s", m, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	deadline := time.After(5 * time.Second)
	for m.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never fired")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
