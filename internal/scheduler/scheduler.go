// Package scheduler triggers the weekly collection on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"rank_tracker/internal/pipeline"
)

// Collector runs one collection over all tracked URLs.
type Collector interface {
	RunCollection(ctx context.Context) pipeline.Result
}

// Scheduler runs the collector whenever the schedule fires. A tick that
// arrives while a collection is still running is skipped.
type Scheduler struct {
	schedule  cron.Schedule
	spec      string
	collector Collector
	log       *slog.Logger
	running   atomic.Bool
}

// New creates a Scheduler for a standard five-field cron spec or a
// descriptor such as "@weekly".
func New(spec string, collector Collector, log *slog.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{
		schedule:  sched,
		spec:      spec,
		collector: collector,
		log:       log,
	}, nil
}

// Run starts the scheduler, blocking until ctx is cancelled and any running
// collection has returned.
func (s *Scheduler) Run(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{s.log})))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.collect(ctx) }))
	c.Start()
	s.log.Info("scheduler started", "schedule", s.spec)

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
}

// collect runs one collection unless one is already in progress. It
// reports whether a collection was run.
func (s *Scheduler) collect(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous collection still running, tick skipped")
		return false
	}
	defer s.running.Store(false)

	res := s.collector.RunCollection(ctx)
	if !res.OK {
		s.log.Error("scheduled collection failed", "run_id", res.RunID, "error", res.Error)
		return true
	}
	s.log.Info("scheduled collection done",
		"run_id", res.RunID,
		"duration_seconds", res.DurationSeconds,
		"snapshots_created", res.Counts.SnapshotsCreated,
		"alerts", res.Counts.Alerts,
	)
	return true
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
