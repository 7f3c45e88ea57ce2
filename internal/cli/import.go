package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rank_tracker/internal/app"
	"rank_tracker/internal/model"
	"rank_tracker/internal/storage"
)

// importURL is one entry of the import file:
//
//	- url: https://example.com/guide
//	  title: Guide
//	  priority: high
//	  keywords: [seo guide, rank tracking]
type importURL struct {
	URL      string   `yaml:"url"`
	Title    string   `yaml:"title"`
	Category string   `yaml:"category"`
	Priority string   `yaml:"priority"`
	Keywords []string `yaml:"keywords"`
}

type importOutput struct {
	Created       int `json:"created"`
	Updated       int `json:"updated"`
	KeywordsAdded int `json:"keywords_added"`
}

func readImportFile(path string) ([]importURL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	var entries []importURL
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.URL) == "" {
			return nil, fmt.Errorf("entry %d: url is required", i+1)
		}
		if e.Priority != "" && !model.Priority(e.Priority).Valid() {
			return nil, fmt.Errorf("entry %d: invalid priority %q", i+1, e.Priority)
		}
	}
	return entries, nil
}

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(_ []string) error {
	entries, err := readImportFile(c.File)
	if err != nil {
		return err
	}
	return c.env.withApp(func(ctx context.Context, a *app.App) error {
		var out importOutput
		for _, e := range entries {
			if err := importEntry(ctx, a.Store, e, &out); err != nil {
				return err
			}
		}
		return c.env.printJSON(out)
	})
}

func importEntry(ctx context.Context, store storage.Storage, e importURL, out *importOutput) error {
	raw := strings.TrimSpace(e.URL)
	u, err := store.FindURL(ctx, raw)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		u = &model.TrackedURL{
			URL:      raw,
			Title:    e.Title,
			Category: e.Category,
			Priority: model.Priority(e.Priority),
		}
		if err := store.CreateURL(ctx, u); err != nil {
			return err
		}
		out.Created++
	case err != nil:
		return err
	default:
		out.Updated++
	}

	existing, err := store.ListKeywords(ctx, u.ID, false)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(e.Keywords))
	for _, kw := range existing {
		have[kw.Text] = true
		merged = append(merged, kw.Text)
	}
	for _, k := range e.Keywords {
		k = model.NormalizeKeyword(k)
		if k == "" || have[k] {
			continue
		}
		have[k] = true
		merged = append(merged, k)
		out.KeywordsAdded++
	}
	if len(merged) == len(existing) {
		return nil
	}
	if err := store.SyncKeywords(ctx, u.ID, merged); err != nil {
		return fmt.Errorf("import keywords for %s: %w", raw, err)
	}
	return nil
}
