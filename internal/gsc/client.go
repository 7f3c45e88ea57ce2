// Package gsc reads per-query search analytics from Google Search Console.
package gsc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"google.golang.org/api/option"
	searchconsole "google.golang.org/api/searchconsole/v1"

	"rank_tracker/internal/model"
)

// ErrNotConfigured is returned when no property or credentials are set.
var ErrNotConfigured = errors.New("analytics source not configured")

const (
	dateLayout = "2006-01-02"

	// Upper bound of rows per Search Analytics request.
	maxRowLimit = 25000
	// Rows requested by TopQueries when no limit is given.
	defaultTopLimit = 1000
)

// Row is the aggregated performance of one query over a date range.
type Row struct {
	Query       string
	Clicks      int
	Impressions int
	CTR         float64
	Position    float64
}

// Query selects rows for a page restricted to a set of keywords.
type Query struct {
	URL      string
	Start    time.Time
	End      time.Time
	Keywords []string
}

// TopQuery selects the best-performing queries for a page.
type TopQuery struct {
	URL            string
	Start          time.Time
	End            time.Time
	MinImpressions int
	Limit          int
}

// Client queries one Search Console property.
type Client struct {
	svc      *searchconsole.Service
	property string
}

// New creates a Client for property. Credentials come from opts, typically
// option.WithCredentialsFile.
func New(ctx context.Context, property string, opts ...option.ClientOption) (*Client, error) {
	if property == "" {
		return &Client{}, nil
	}
	svc, err := searchconsole.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create search console service: %w", err)
	}
	return &Client{svc: svc, property: property}, nil
}

// Configured reports whether the client can issue queries.
func (c *Client) Configured() bool {
	return c != nil && c.svc != nil
}

// QueryKeywords returns rows keyed by lowercased query, limited to the
// requested keywords.
func (c *Client) QueryKeywords(ctx context.Context, q Query) (map[string]Row, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	out := make(map[string]Row, len(q.Keywords))
	if len(q.Keywords) == 0 {
		return out, nil
	}

	wanted := make(map[string]bool, len(q.Keywords))
	for _, kw := range q.Keywords {
		wanted[model.NormalizeKeyword(kw)] = true
	}

	rows, err := c.query(ctx, q.URL, q.Start, q.End, maxRowLimit)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		key := model.NormalizeKeyword(r.Query)
		if wanted[key] {
			out[key] = r
		}
	}
	return out, nil
}

// TopQueries returns the page's queries with at least MinImpressions,
// ordered by impressions descending.
func (c *Client) TopQueries(ctx context.Context, q TopQuery) ([]Row, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultTopLimit
	}

	rows, err := c.query(ctx, q.URL, q.Start, q.End, limit)
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, r := range rows {
		if r.Impressions >= q.MinImpressions {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Impressions > out[j].Impressions
	})
	return out, nil
}

func (c *Client) query(ctx context.Context, page string, start, end time.Time, limit int) ([]Row, error) {
	req := &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  start.Format(dateLayout),
		EndDate:    end.Format(dateLayout),
		Dimensions: []string{"query"},
		DimensionFilterGroups: []*searchconsole.ApiDimensionFilterGroup{{
			Filters: []*searchconsole.ApiDimensionFilter{{
				Dimension:  "page",
				Operator:   "equals",
				Expression: page,
			}},
		}},
		RowLimit: int64(min(limit, maxRowLimit)),
	}

	resp, err := c.svc.Searchanalytics.Query(c.property, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search analytics query: %w", err)
	}

	rows := make([]Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.Keys) == 0 {
			continue
		}
		rows = append(rows, Row{
			Query:       r.Keys[0],
			Clicks:      int(math.Round(r.Clicks)),
			Impressions: int(math.Round(r.Impressions)),
			CTR:         r.Ctr,
			Position:    r.Position,
		})
	}
	return rows, nil
}
