package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"rank_tracker/internal/metrics"
	"rank_tracker/internal/notify"
)

// run is the mutable state of one pipeline execution.
type run struct {
	id     string
	plan   Plan
	log    *slog.Logger
	lines  []string
	counts Counts
	alerts []notify.AlertLine
}

func (r *run) info(msg string, args ...any) {
	r.lines = append(r.lines, logLine(msg, args))
	r.log.Info(msg, args...)
}

func (r *run) warn(msg string, args ...any) {
	r.lines = append(r.lines, logLine(msg, args))
	r.log.Warn(msg, args...)
}

func (r *run) fail(msg string, args ...any) {
	r.lines = append(r.lines, logLine(msg, args))
	r.log.Error(msg, args...)
}

func (r *run) sourceError(source string) {
	r.counts.SourceErrors++
	metrics.IncSourceError(source)
}

func (r *run) countSnapshot(o outcome) {
	switch o {
	case outcomeCreated:
		r.counts.SnapshotsCreated++
	case outcomeUpdated:
		r.counts.SnapshotsUpdated++
	case outcomeSkipped:
		r.counts.SnapshotsSkipped++
	}
}

// logLine renders a message and its key/value pairs as one human-readable
// line for the run result.
func logLine(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
