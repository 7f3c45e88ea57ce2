// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// URLStatus is the coarse ranking trend of a tracked URL.
type URLStatus string

// Supported URL statuses.
const (
	StatusActive     URLStatus = "active"
	StatusGrowing    URLStatus = "growing"
	StatusDeclining  URLStatus = "declining"
	StatusRecovering URLStatus = "recovering"
)

// Valid reports whether s is a known status.
func (s URLStatus) Valid() bool {
	switch s {
	case StatusActive, StatusGrowing, StatusDeclining, StatusRecovering:
		return true
	}
	return false
}

// Priority is the editorial priority of a tracked URL.
type Priority string

// Supported priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// KeywordSource records how a keyword came to be tracked.
type KeywordSource string

// Supported keyword sources.
const (
	SourceManual     KeywordSource = "manual"
	SourceDiscovered KeywordSource = "gsc-discovered"
)

// Intent is the search intent of a keyword.
type Intent string

// Supported intents.
const (
	IntentInformational Intent = "informational"
	IntentCommercial    Intent = "commercial"
	IntentTransactional Intent = "transactional"
)

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	switch i {
	case IntentInformational, IntentCommercial, IntentTransactional:
		return true
	}
	return false
}

// TrackedURL is a monitored page.
type TrackedURL struct {
	ID        int64
	URL       string
	Title     string
	Category  string
	Status    URLStatus
	Priority  Priority
	CreatedAt time.Time
}

// Keyword is a search term tracked for one URL.
type Keyword struct {
	ID        int64
	URLID     int64
	Text      string
	Source    KeywordSource
	Intent    Intent
	Tracked   bool
	CreatedAt time.Time
}

// Note is a free-text changelog entry attached to a tracked URL.
type Note struct {
	ID        int64
	URLID     int64
	Text      string
	CreatedAt time.Time
}

// Snapshot is the weekly record of one keyword's ranking data.
// The pair (KeywordID, PeriodStart) is unique.
type Snapshot struct {
	ID          int64
	KeywordID   int64
	PeriodStart time.Time

	GSCPosition    *float64
	GSCClicks      int
	GSCImpressions int
	GSCCTR         *float64

	SERPPosition *int
	SERPFeatures []string
	FoundURL     string
	PrevPosition *int
	// PosChange is PrevPosition - SERPPosition, or 0 when either is nil.
	PosChange int
}

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID              string
	Kind            string
	OK              bool
	Error           string
	StartedAt       time.Time
	DurationSeconds float64
	Counts          string
	Log             []string
}

// NormalizeKeyword returns the canonical stored form of a keyword.
func NormalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeDomain strips scheme, "www.", path and trailing slash from a
// domain or URL so it can be substring-matched against SERP result domains.
func NormalizeDomain(s string) string {
	d := strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, "/")
}

var (
	transactionalWords = []string{"buy", "price", "order", "cheap", "deal", "coupon", "discount", "shop"}
	commercialWords    = []string{"best", "review", "vs", "top", "compare", "alternative"}
)

// GuessIntent classifies a query by the words it contains.
func GuessIntent(keyword string) Intent {
	words := strings.Fields(NormalizeKeyword(keyword))
	has := func(set []string) bool {
		for _, w := range words {
			for _, s := range set {
				if w == s || strings.TrimSuffix(w, "s") == s {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has(transactionalWords):
		return IntentTransactional
	case has(commercialWords):
		return IntentCommercial
	default:
		return IntentInformational
	}
}
