// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"rank_tracker/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	Status model.AlertStatus
	URLID  int64
	Limit  int
}

// AlertView is an alert joined with its keyword and URL.
type AlertView struct {
	model.Alert
	Keyword string
	URLID   int64
	URL     string
}

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateURL(ctx context.Context, u *model.TrackedURL) error
	GetURL(ctx context.Context, id int64) (*model.TrackedURL, error)
	FindURL(ctx context.Context, rawURL string) (*model.TrackedURL, error)
	ListURLs(ctx context.Context) ([]model.TrackedURL, error)
	UpdateURL(ctx context.Context, u *model.TrackedURL) error
	UpdateURLStatus(ctx context.Context, id int64, status model.URLStatus) error
	DeleteURL(ctx context.Context, id int64) error

	CreateKeyword(ctx context.Context, kw *model.Keyword) error
	ListKeywords(ctx context.Context, urlID int64, trackedOnly bool) ([]model.Keyword, error)
	SetKeywordTracked(ctx context.Context, id int64, tracked bool) error
	SyncKeywords(ctx context.Context, urlID int64, keywords []string) error

	AddNote(ctx context.Context, n *model.Note) error
	ListNotes(ctx context.Context, urlID int64) ([]model.Note, error)

	UpsertSnapshot(ctx context.Context, s *model.Snapshot) (created bool, err error)
	InsertSnapshotIfAbsent(ctx context.Context, s *model.Snapshot) (created bool, err error)
	GetSnapshot(ctx context.Context, keywordID int64, periodStart time.Time) (*model.Snapshot, error)
	LatestSnapshotBefore(ctx context.Context, keywordID int64, before time.Time) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, keywordID int64) ([]model.Snapshot, error)
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreateAlert(ctx context.Context, a *model.Alert) error
	GetAlert(ctx context.Context, id int64) (*model.Alert, error)
	ListAlerts(ctx context.Context, f AlertFilter) ([]AlertView, error)
	UpdateAlert(ctx context.Context, id int64, status model.AlertStatus, action string) error

	LoadSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error

	CreateRun(ctx context.Context, r *model.Run) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	Close() error
}
