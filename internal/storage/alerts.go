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

// CreateAlert inserts an alert and populates its ID, status and CreatedAt.
func (s *SQLite) CreateAlert(ctx context.Context, a *model.Alert) error {
	if a.Status == "" {
		a.Status = model.AlertOpen
	}
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (keyword_id, type, severity, details, status, action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.KeywordID, string(a.Type), string(a.Severity), a.Details, string(a.Status), a.Action, now,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

const alertColumns = `a.id, a.keyword_id, a.type, a.severity, a.details, a.status, a.action, a.created_at, a.resolved_at`

// GetAlert returns a single alert by its ID.
func (s *SQLite) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts a WHERE a.id = ?`, id)
	return scanAlert(row)
}

// ListAlerts returns alerts joined with their keyword and URL, newest first.
func (s *SQLite) ListAlerts(ctx context.Context, f AlertFilter) ([]AlertView, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "a.status = ?")
		args = append(args, string(f.Status))
	}
	if f.URLID != 0 {
		where = append(where, "k.url_id = ?")
		args = append(args, f.URLID)
	}
	query := `SELECT ` + alertColumns + `, k.keyword, u.id, u.url
		FROM alerts a
		JOIN keywords k ON k.id = a.keyword_id
		JOIN tracked_urls u ON u.id = k.url_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY a.created_at DESC, a.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AlertView
	for rows.Next() {
		var v AlertView
		var typ, sev, status, created string
		var resolved sql.NullString
		err := rows.Scan(&v.ID, &v.KeywordID, &typ, &sev, &v.Details, &status, &v.Action, &created, &resolved,
			&v.Keyword, &v.URLID, &v.URL)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		fillAlert(&v.Alert, typ, sev, status, created, resolved)
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateAlert sets the workflow status and action note of an alert.
// Resolving stamps resolved_at; any other status clears it.
func (s *SQLite) UpdateAlert(ctx context.Context, id int64, status model.AlertStatus, action string) error {
	var resolved *string
	if status == model.AlertResolved {
		v := time.Now().UTC().Format(timeLayout)
		resolved = &v
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = ?, action = ?, resolved_at = ? WHERE id = ?`,
		string(status), action, resolved, id,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return expectRow(res)
}

// LoadSettings returns the whole settings table.
func (s *SQLite) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetSetting creates or replaces a setting.
func (s *SQLite) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// CreateRun stores the record of a finished pipeline run.
func (s *SQLite) CreateRun(ctx context.Context, r *model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, ok, error, started_at, duration_seconds, counts, log)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, boolToInt(r.OK), r.Error, r.StartedAt.UTC().Format(timeLayout),
		r.DurationSeconds, r.Counts, strings.Join(r.Log, "\n"),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, ok, error, started_at, duration_seconds, counts, log
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var ok int
		var started, log string
		if err := rows.Scan(&r.ID, &r.Kind, &ok, &r.Error, &started, &r.DurationSeconds, &r.Counts, &log); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.OK = ok == 1
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if log != "" {
			r.Log = strings.Split(log, "\n")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanAlert(row scannable) (*model.Alert, error) {
	var a model.Alert
	var typ, sev, status, created string
	var resolved sql.NullString
	err := row.Scan(&a.ID, &a.KeywordID, &typ, &sev, &a.Details, &status, &a.Action, &created, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	fillAlert(&a, typ, sev, status, created, resolved)
	return &a, nil
}

func fillAlert(a *model.Alert, typ, sev, status, created string, resolved sql.NullString) {
	a.Type = model.AlertType(typ)
	a.Severity = model.Severity(sev)
	a.Status = model.AlertStatus(status)
	a.CreatedAt, _ = time.Parse(timeLayout, created)
	if resolved.Valid {
		t, _ := time.Parse(timeLayout, resolved.String)
		a.ResolvedAt = &t
	}
}
