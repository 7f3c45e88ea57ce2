package pipeline

import (
	"context"
	"errors"
	"fmt"

	"rank_tracker/internal/gsc"
	"rank_tracker/internal/model"
	"rank_tracker/internal/serp"
	"rank_tracker/internal/storage"
)

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// transition is a keyword's move between the previous and current period.
type transition struct {
	Keyword model.Keyword
	Prev    *int
	Current *int
}

// positionChange is prev-cur (positive is an improvement), or 0 when either
// side is unknown.
func positionChange(prev, cur *int) int {
	if prev == nil || cur == nil {
		return 0
	}
	return *prev - *cur
}

// buildSnapshot merges the source data for one keyword into a snapshot.
// A missing analytics row leaves the metrics at their null/zero defaults.
func buildSnapshot(kw model.Keyword, period Period, prev *int, row gsc.Row, hasRow bool, res serp.Result) *model.Snapshot {
	snap := &model.Snapshot{
		KeywordID:    kw.ID,
		PeriodStart:  period.Start,
		SERPPosition: res.Position,
		SERPFeatures: res.Features,
		FoundURL:     res.FoundURL,
		PrevPosition: prev,
		PosChange:    positionChange(prev, res.Position),
	}
	if hasRow {
		pos, ctr := row.Position, row.CTR
		snap.GSCPosition = &pos
		snap.GSCClicks = row.Clicks
		snap.GSCImpressions = row.Impressions
		snap.GSCCTR = &ctr
	}
	return snap
}

// reconcile writes the snapshot of kw for period and returns the transition
// it represents.
func (p *Pipeline) reconcile(ctx context.Context, kw model.Keyword, period Period, rows map[string]gsc.Row, results map[string]serp.Result, mode WriteMode) (transition, outcome, error) {
	var prev *int
	last, err := p.store.LatestSnapshotBefore(ctx, kw.ID, period.Start)
	switch {
	case err == nil:
		prev = last.SERPPosition
	case !errors.Is(err, storage.ErrNotFound):
		return transition{}, 0, fmt.Errorf("previous snapshot: %w", err)
	}

	key := model.NormalizeKeyword(kw.Text)
	row, hasRow := rows[key]
	snap := buildSnapshot(kw, period, prev, row, hasRow, results[key])
	tr := transition{Keyword: kw, Prev: prev, Current: snap.SERPPosition}

	switch mode {
	case WriteCreateOnly:
		created, err := p.store.InsertSnapshotIfAbsent(ctx, snap)
		if err != nil {
			return tr, 0, err
		}
		if !created {
			return tr, outcomeSkipped, nil
		}
		return tr, outcomeCreated, nil
	default:
		created, err := p.store.UpsertSnapshot(ctx, snap)
		if err != nil {
			return tr, 0, err
		}
		if !created {
			return tr, outcomeUpdated, nil
		}
		return tr, outcomeCreated, nil
	}
}
