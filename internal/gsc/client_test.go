package gsc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
)

type apiRow struct {
	Keys        []string `json:"keys"`
	Clicks      float64  `json:"clicks"`
	Impressions float64  `json:"impressions"`
	Ctr         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}

func newTestClient(t *testing.T, rows []apiRow, gotBody *map[string]any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/searchAnalytics/query") {
			http.NotFound(w, r)
			return
		}
		if gotBody != nil {
			_ = json.NewDecoder(r.Body).Decode(gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"rows": rows})
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "sc-domain:example.com",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

var (
	start = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
)

func TestQueryKeywords(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, []apiRow{
		{Keys: []string{"Running Shoes"}, Clicks: 12, Impressions: 340, Ctr: 0.035, Position: 4.6},
		{Keys: []string{"trail shoes"}, Clicks: 1, Impressions: 20, Ctr: 0.05, Position: 18},
		{Keys: []string{"unrelated"}, Clicks: 3, Impressions: 50, Ctr: 0.06, Position: 9},
	}, &body)

	got, err := c.QueryKeywords(context.Background(), Query{
		URL:      "https://example.com/shoes",
		Start:    start,
		End:      end,
		Keywords: []string{"running shoes", "trail shoes", "missing"},
	})
	if err != nil {
		t.Fatalf("QueryKeywords: %v", err)
	}

	want := map[string]Row{
		"running shoes": {Query: "Running Shoes", Clicks: 12, Impressions: 340, CTR: 0.035, Position: 4.6},
		"trail shoes":   {Query: "trail shoes", Clicks: 1, Impressions: 20, CTR: 0.05, Position: 18},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("QueryKeywords mismatch (-want +got):\n%s", diff)
	}

	if body["startDate"] != "2024-03-02" || body["endDate"] != "2024-03-08" {
		t.Errorf("unexpected date range in request: %v - %v", body["startDate"], body["endDate"])
	}
	groups, _ := body["dimensionFilterGroups"].([]any)
	if len(groups) != 1 {
		t.Fatalf("expected one filter group, got %v", body["dimensionFilterGroups"])
	}
	filters := groups[0].(map[string]any)["filters"].([]any)
	filter := filters[0].(map[string]any)
	if filter["dimension"] != "page" || filter["expression"] != "https://example.com/shoes" {
		t.Errorf("unexpected page filter: %v", filter)
	}
}

func TestQueryKeywordsEmpty(t *testing.T) {
	c := newTestClient(t, nil, nil)
	got, err := c.QueryKeywords(context.Background(), Query{URL: "https://example.com/"})
	if err != nil {
		t.Fatalf("QueryKeywords: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %v", got)
	}
}

func TestTopQueries(t *testing.T) {
	c := newTestClient(t, []apiRow{
		{Keys: []string{"low"}, Impressions: 5},
		{Keys: []string{"mid"}, Impressions: 40},
		{Keys: []string{"high"}, Impressions: 900},
		{Keys: []string{"floor"}, Impressions: 10},
	}, nil)

	got, err := c.TopQueries(context.Background(), TopQuery{
		URL: "https://example.com/", Start: start, End: end, MinImpressions: 10,
	})
	if err != nil {
		t.Fatalf("TopQueries: %v", err)
	}

	var queries []string
	for _, r := range got {
		queries = append(queries, r.Query)
	}
	if diff := cmp.Diff([]string{"high", "mid", "floor"}, queries); diff != "" {
		t.Errorf("TopQueries mismatch (-want +got):\n%s", diff)
	}
}

func TestNotConfigured(t *testing.T) {
	c, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if _, err := c.QueryKeywords(context.Background(), Query{Keywords: []string{"a"}}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("QueryKeywords: expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.TopQueries(context.Background(), TopQuery{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("TopQueries: expected ErrNotConfigured, got %v", err)
	}

	var nilClient *Client
	if nilClient.Configured() {
		t.Error("nil client must not be configured")
	}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(context.Background(), "sc-domain:example.com", option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.TopQueries(context.Background(), TopQuery{URL: "https://example.com/"}); err == nil {
		t.Error("expected error, got nil")
	}
}
