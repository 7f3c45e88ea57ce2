package pipeline

import (
	"context"
	"fmt"
	"time"

	"rank_tracker/internal/model"
)

// retentionCutoff is the oldest period start kept for the given horizon.
func retentionCutoff(now time.Time, archiveWeeks int) time.Time {
	return now.AddDate(0, 0, -7*archiveWeeks)
}

// sweep deletes snapshots older than the archive horizon.
func (p *Pipeline) sweep(ctx context.Context, archiveWeeks int) (int64, error) {
	return p.store.DeleteSnapshotsBefore(ctx, retentionCutoff(p.now(), archiveWeeks))
}

// Prune applies the archive horizon from settings outside of a run.
func (p *Pipeline) Prune(ctx context.Context) (int64, error) {
	raw, err := p.store.LoadSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}
	s, err := model.ParseSettings(raw)
	if err != nil {
		return 0, err
	}
	n, err := p.sweep(ctx, s.ArchiveWeeks)
	if err != nil {
		return 0, err
	}
	p.log.Info("snapshots pruned", "archive_weeks", s.ArchiveWeeks, "deleted", n)
	return n, nil
}
