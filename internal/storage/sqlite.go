package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"rank_tracker/internal/model"
	"rank_tracker/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Open opens the database without migrating it.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: writes are serialized anyway, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateURL inserts a tracked URL and populates its ID and CreatedAt.
func (s *SQLite) CreateURL(ctx context.Context, u *model.TrackedURL) error {
	if u.Status == "" {
		u.Status = model.StatusActive
	}
	if u.Priority == "" {
		u.Priority = model.PriorityMedium
	}
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_urls (url, title, category, status, priority, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.URL, u.Title, u.Category, string(u.Status), string(u.Priority), now,
	)
	if err != nil {
		return fmt.Errorf("insert url: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

const urlColumns = `id, url, title, category, status, priority, created_at`

// GetURL returns a single tracked URL by its ID.
func (s *SQLite) GetURL(ctx context.Context, id int64) (*model.TrackedURL, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+urlColumns+` FROM tracked_urls WHERE id = ?`, id)
	return scanURL(row)
}

// FindURL returns the tracked URL with the given address.
func (s *SQLite) FindURL(ctx context.Context, rawURL string) (*model.TrackedURL, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+urlColumns+` FROM tracked_urls WHERE url = ?`, rawURL)
	return scanURL(row)
}

// ListURLs returns all tracked URLs ordered by ID.
func (s *SQLite) ListURLs(ctx context.Context) ([]model.TrackedURL, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+urlColumns+` FROM tracked_urls ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var urls []model.TrackedURL
	for rows.Next() {
		u, err := scanURL(rows)
		if err != nil {
			return nil, err
		}
		urls = append(urls, *u)
	}
	return urls, rows.Err()
}

// UpdateURL persists the editable fields of a tracked URL.
func (s *SQLite) UpdateURL(ctx context.Context, u *model.TrackedURL) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracked_urls SET url = ?, title = ?, category = ?, status = ?, priority = ? WHERE id = ?`,
		u.URL, u.Title, u.Category, string(u.Status), string(u.Priority), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update url: %w", err)
	}
	return expectRow(res)
}

// UpdateURLStatus sets only the trend status of a tracked URL.
func (s *SQLite) UpdateURLStatus(ctx context.Context, id int64, status model.URLStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tracked_urls SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update url status: %w", err)
	}
	return expectRow(res)
}

// DeleteURL removes a tracked URL with its keywords, their snapshots and
// alerts, and its notes.
func (s *SQLite) DeleteURL(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []struct {
		name  string
		query string
	}{
		{"alerts", `DELETE FROM alerts WHERE keyword_id IN (SELECT id FROM keywords WHERE url_id = ?)`},
		{"snapshots", `DELETE FROM snapshots WHERE keyword_id IN (SELECT id FROM keywords WHERE url_id = ?)`},
		{"keywords", `DELETE FROM keywords WHERE url_id = ?`},
		{"notes", `DELETE FROM notes WHERE url_id = ?`},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, id); err != nil {
			return fmt.Errorf("delete %s: %w", st.name, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tracked_urls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete url: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateKeyword inserts a keyword, lowercasing its text.
func (s *SQLite) CreateKeyword(ctx context.Context, kw *model.Keyword) error {
	return createKeyword(ctx, s.db, kw)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func createKeyword(ctx context.Context, db execer, kw *model.Keyword) error {
	kw.Text = model.NormalizeKeyword(kw.Text)
	if kw.Text == "" {
		return fmt.Errorf("keyword is empty")
	}
	if kw.Source == "" {
		kw.Source = model.SourceManual
	}
	if kw.Intent == "" {
		kw.Intent = model.IntentInformational
	}
	now := time.Now().UTC().Format(timeLayout)
	res, err := db.ExecContext(ctx,
		`INSERT INTO keywords (url_id, keyword, source, intent, tracked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		kw.URLID, kw.Text, string(kw.Source), string(kw.Intent), boolToInt(kw.Tracked), now,
	)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	kw.ID = id
	kw.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListKeywords returns the keywords of a URL, optionally only tracked ones.
func (s *SQLite) ListKeywords(ctx context.Context, urlID int64, trackedOnly bool) ([]model.Keyword, error) {
	query := `SELECT id, url_id, keyword, source, intent, tracked, created_at FROM keywords WHERE url_id = ?`
	if trackedOnly {
		query += ` AND tracked = 1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, urlID)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var kws []model.Keyword
	for rows.Next() {
		var kw model.Keyword
		var source, intent, created string
		var tracked int
		if err := rows.Scan(&kw.ID, &kw.URLID, &kw.Text, &source, &intent, &tracked, &created); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		kw.Source = model.KeywordSource(source)
		kw.Intent = model.Intent(intent)
		kw.Tracked = tracked == 1
		kw.CreatedAt, _ = time.Parse(timeLayout, created)
		kws = append(kws, kw)
	}
	return kws, rows.Err()
}

// SetKeywordTracked soft-enables or disables a keyword.
func (s *SQLite) SetKeywordTracked(ctx context.Context, id int64, tracked bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE keywords SET tracked = ? WHERE id = ?`, boolToInt(tracked), id)
	if err != nil {
		return fmt.Errorf("update keyword: %w", err)
	}
	return expectRow(res)
}

// SyncKeywords replaces the keyword set of a URL: keywords missing from the
// list are deleted with their snapshots and alerts, new ones are created as
// manual. Existing keywords keep their history.
func (s *SQLite) SyncKeywords(ctx context.Context, urlID int64, keywords []string) error {
	want := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		if k = model.NormalizeKeyword(k); k != "" {
			want[k] = true
		}
	}

	existing, err := s.ListKeywords(ctx, urlID, false)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	have := make(map[string]bool, len(existing))
	for _, kw := range existing {
		have[kw.Text] = true
		if want[kw.Text] {
			continue
		}
		for _, q := range []string{
			`DELETE FROM alerts WHERE keyword_id = ?`,
			`DELETE FROM snapshots WHERE keyword_id = ?`,
			`DELETE FROM keywords WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, kw.ID); err != nil {
				return fmt.Errorf("delete keyword %q: %w", kw.Text, err)
			}
		}
	}

	for _, k := range keywords {
		k = model.NormalizeKeyword(k)
		if k == "" || have[k] {
			continue
		}
		have[k] = true
		kw := &model.Keyword{URLID: urlID, Text: k, Source: model.SourceManual, Tracked: true}
		if err := createKeyword(ctx, tx, kw); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AddNote appends a changelog note to a URL.
func (s *SQLite) AddNote(ctx context.Context, n *model.Note) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (url_id, body, created_at) VALUES (?, ?, ?)`, n.URLID, n.Text, now,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListNotes returns the notes of a URL, newest first.
func (s *SQLite) ListNotes(ctx context.Context, urlID int64) ([]model.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url_id, body, created_at FROM notes WHERE url_id = ? ORDER BY created_at DESC, id DESC`, urlID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		var created string
		if err := rows.Scan(&n.ID, &n.URLID, &n.Text, &created); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt, _ = time.Parse(timeLayout, created)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanURL(row scannable) (*model.TrackedURL, error) {
	var u model.TrackedURL
	var status, priority, created string
	err := row.Scan(&u.ID, &u.URL, &u.Title, &u.Category, &status, &priority, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan url: %w", err)
	}
	u.Status = model.URLStatus(status)
	u.Priority = model.Priority(priority)
	u.CreatedAt, _ = time.Parse(timeLayout, created)
	return &u, nil
}
