package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rank_tracker/internal/app"
	"rank_tracker/internal/config"
	"rank_tracker/internal/model"
	"rank_tracker/internal/pipeline"
	"rank_tracker/internal/storage"
)

// newTestEnv returns an env whose configuration has no external sources
// and points at a fresh database file.
func newTestEnv(t *testing.T) (*env, *bytes.Buffer, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "data", "tracker.db")
	out := &bytes.Buffer{}
	e := &env{
		globals: &GlobalFlags{},
		out:     out,
		loadCfg: func() (*config.Config, error) {
			return &config.Config{
				DatabasePath:      "unused.db",
				LogLevel:          "error",
				DataForSEOBaseURL: "http://127.0.0.1:1",
				SourceTimeout:     time.Second,
			}, nil
		},
		newApp: app.New,
	}
	return e, out, dbPath
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestMigrate(t *testing.T) {
	e, out, dbPath := newTestEnv(t)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		t.Fatal(err)
	}

	if err := e.run([]string{"--db", dbPath, "migrate", "up"}); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	var got migrateOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if got.Command != "up" || got.Version != 1 {
		t.Errorf("output = %+v, want up at version 1", got)
	}

	if err := e.run([]string{"--db", dbPath, "migrate", "sideways"}); err == nil {
		t.Error("expected error for unknown migration command")
	}
	if err := e.run([]string{"--db", dbPath, "migrate"}); err == nil {
		t.Error("expected error for missing migration command")
	}
}

func TestImport(t *testing.T) {
	e, out, dbPath := newTestEnv(t)
	file := writeFile(t, "urls.yaml", `
- url: https://example.com/guide
  title: Guide
  priority: high
  keywords: [SEO Guide, rank tracking]
- url: https://example.com/pricing
  keywords:
    - pricing
`)

	if err := e.run([]string{"--db", dbPath, "import", "--file", file}); err != nil {
		t.Fatalf("import: %v", err)
	}
	var got importOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if diff := cmp.Diff(importOutput{Created: 2, KeywordsAdded: 3}, got); diff != "" {
		t.Errorf("first import (-want +got):\n%s", diff)
	}

	more := writeFile(t, "more.yaml", `
- url: https://example.com/guide
  keywords: [seo guide, keyword research]
`)
	out.Reset()
	if err := e.run([]string{"--db", dbPath, "import", "-f", more}); err != nil {
		t.Fatalf("second import: %v", err)
	}
	got = importOutput{}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if diff := cmp.Diff(importOutput{Updated: 1, KeywordsAdded: 1}, got); diff != "" {
		t.Errorf("second import (-want +got):\n%s", diff)
	}

	store, err := storage.NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	u, err := store.FindURL(ctx, "https://example.com/guide")
	if err != nil {
		t.Fatalf("FindURL: %v", err)
	}
	if u.Priority != model.PriorityHigh || u.Title != "Guide" {
		t.Errorf("url = %+v", u)
	}
	kws, err := store.ListKeywords(ctx, u.ID, false)
	if err != nil {
		t.Fatalf("ListKeywords: %v", err)
	}
	var texts []string
	for _, kw := range kws {
		texts = append(texts, kw.Text)
	}
	if diff := cmp.Diff([]string{"seo guide", "rank tracking", "keyword research"}, texts); diff != "" {
		t.Errorf("keywords (-want +got):\n%s", diff)
	}
}

func TestImportRejectsBadFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "missing url", content: "- title: x\n", want: "url is required"},
		{name: "bad priority", content: "- url: https://a\n  priority: asap\n", want: "invalid priority"},
		{name: "not a list", content: "url: https://a\n", want: "parse import file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, dbPath := newTestEnv(t)
			file := writeFile(t, "urls.yaml", tt.content)
			err := e.run([]string{"--db", dbPath, "import", "--file", file})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCollectPrintsFailedResult(t *testing.T) {
	e, out, dbPath := newTestEnv(t)

	err := e.run([]string{"--db", dbPath, "collect"})
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("error = %v, want errRunFailed", err)
	}
	var res pipeline.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if res.OK || res.Kind != pipeline.KindCollect || !strings.Contains(res.Error, "target domain") {
		t.Errorf("result = %+v", res)
	}
}

func TestBackfillRequiresValidWeeks(t *testing.T) {
	e, out, dbPath := newTestEnv(t)

	if err := e.run([]string{"--db", dbPath, "backfill"}); err == nil {
		t.Error("expected error without --weeks")
	}

	out.Reset()
	err := e.run([]string{"--db", dbPath, "backfill", "--weeks", "200"})
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("error = %v, want errRunFailed", err)
	}
	var res pipeline.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if res.Kind != pipeline.KindBackfill || res.Error == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestPrune(t *testing.T) {
	e, out, dbPath := newTestEnv(t)

	if err := e.run([]string{"--db", dbPath, "prune"}); err != nil {
		t.Fatalf("prune: %v", err)
	}
	var got pruneOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if got.Deleted != 0 {
		t.Errorf("deleted = %d, want 0", got.Deleted)
	}
}

func TestHelp(t *testing.T) {
	e, out, _ := newTestEnv(t)
	if err := e.run([]string{"--help"}); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, cmd := range []string{"migrate", "collect", "backfill", "prune", "import"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}

func TestConfigError(t *testing.T) {
	e, _, _ := newTestEnv(t)
	e.loadCfg = func() (*config.Config, error) { return nil, errors.New("boom") }
	if err := e.run([]string{"prune"}); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %v, want load config failure", err)
	}
}
