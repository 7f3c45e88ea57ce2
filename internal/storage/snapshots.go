package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rank_tracker/internal/model"
)

const snapshotColumns = `id, keyword_id, period_start, gsc_position, gsc_clicks, gsc_impressions, gsc_ctr,
	serp_position, serp_features, found_url, prev_position, pos_change`

const insertSnapshot = `INSERT INTO snapshots (keyword_id, period_start, gsc_position, gsc_clicks, gsc_impressions,
	gsc_ctr, serp_position, serp_features, found_url, prev_position, pos_change)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// UpsertSnapshot writes a snapshot, overwriting every field of an existing
// row for the same keyword and period.
func (s *SQLite) UpsertSnapshot(ctx context.Context, snap *model.Snapshot) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	period := snap.PeriodStart.UTC().Format(timeLayout)
	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM snapshots WHERE keyword_id = ? AND period_start = ?`, snap.KeywordID, period,
	).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, insertSnapshot+`
		ON CONFLICT (keyword_id, period_start) DO UPDATE SET
			gsc_position = excluded.gsc_position,
			gsc_clicks = excluded.gsc_clicks,
			gsc_impressions = excluded.gsc_impressions,
			gsc_ctr = excluded.gsc_ctr,
			serp_position = excluded.serp_position,
			serp_features = excluded.serp_features,
			found_url = excluded.found_url,
			prev_position = excluded.prev_position,
			pos_change = excluded.pos_change`,
		snapshotArgs(snap)...,
	)
	if err != nil {
		return false, fmt.Errorf("upsert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit snapshot: %w", err)
	}
	return existing == 0, nil
}

// InsertSnapshotIfAbsent writes a snapshot only when no row exists for the
// keyword and period. It reports whether a row was created.
func (s *SQLite) InsertSnapshotIfAbsent(ctx context.Context, snap *model.Snapshot) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		strings.Replace(insertSnapshot, "INSERT INTO", "INSERT OR IGNORE INTO", 1),
		snapshotArgs(snap)...,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetSnapshot returns the snapshot of a keyword for one period.
func (s *SQLite) GetSnapshot(ctx context.Context, keywordID int64, periodStart time.Time) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE keyword_id = ? AND period_start = ?`,
		keywordID, periodStart.UTC().Format(timeLayout),
	)
	return scanSnapshot(row)
}

// LatestSnapshotBefore returns the most recent snapshot of a keyword dated
// strictly before the given time, or ErrNotFound.
func (s *SQLite) LatestSnapshotBefore(ctx context.Context, keywordID int64, before time.Time) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots
		 WHERE keyword_id = ? AND period_start < ?
		 ORDER BY period_start DESC LIMIT 1`,
		keywordID, before.UTC().Format(timeLayout),
	)
	return scanSnapshot(row)
}

// ListSnapshots returns all snapshots of a keyword, oldest first.
func (s *SQLite) ListSnapshots(ctx context.Context, keywordID int64) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE keyword_id = ? ORDER BY period_start`, keywordID,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// DeleteSnapshotsBefore removes snapshots whose period started before cutoff.
func (s *SQLite) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE period_start < ?`, cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

func snapshotArgs(snap *model.Snapshot) []any {
	return []any{
		snap.KeywordID,
		snap.PeriodStart.UTC().Format(timeLayout),
		nullFloat(snap.GSCPosition),
		snap.GSCClicks,
		snap.GSCImpressions,
		nullFloat(snap.GSCCTR),
		nullInt(snap.SERPPosition),
		strings.Join(snap.SERPFeatures, ","),
		snap.FoundURL,
		nullInt(snap.PrevPosition),
		snap.PosChange,
	}
}

func scanSnapshot(row scannable) (*model.Snapshot, error) {
	var snap model.Snapshot
	var period, features string
	var gscPos, ctr sql.NullFloat64
	var serpPos, prevPos sql.NullInt64
	err := row.Scan(&snap.ID, &snap.KeywordID, &period, &gscPos, &snap.GSCClicks, &snap.GSCImpressions, &ctr,
		&serpPos, &features, &snap.FoundURL, &prevPos, &snap.PosChange)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.PeriodStart, _ = time.Parse(timeLayout, period)
	if gscPos.Valid {
		snap.GSCPosition = &gscPos.Float64
	}
	if ctr.Valid {
		snap.GSCCTR = &ctr.Float64
	}
	if serpPos.Valid {
		v := int(serpPos.Int64)
		snap.SERPPosition = &v
	}
	if prevPos.Valid {
		v := int(prevPos.Int64)
		snap.PrevPosition = &v
	}
	if features != "" {
		snap.SERPFeatures = strings.Split(features, ",")
	}
	return &snap, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
