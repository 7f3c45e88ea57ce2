package pipeline

import (
	"context"
	"fmt"
	"sort"

	"rank_tracker/internal/filter"
	"rank_tracker/internal/gsc"
	"rank_tracker/internal/model"
)

// discoveryRoom is how many keywords a URL with tracked keywords may gain
// in one run.
func discoveryRoom(s model.Settings, tracked int) int {
	return max(0, min(s.MaxKeywordsPerURL-tracked, s.DiscoveryMaxPerRun))
}

// selectCandidates returns up to room queries, highest impressions first,
// that are neither existing keywords nor excluded by rules.
func selectCandidates(rows []gsc.Row, existing map[string]bool, rules []filter.Rule, room int) []gsc.Row {
	if room <= 0 {
		return nil
	}
	sorted := append([]gsc.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Impressions > sorted[j].Impressions
	})

	var out []gsc.Row
	seen := make(map[string]bool)
	for _, r := range sorted {
		q := model.NormalizeKeyword(r.Query)
		if q == "" || existing[q] || seen[q] || filter.Excluded(q, rules) {
			continue
		}
		seen[q] = true
		r.Query = q
		out = append(out, r)
		if len(out) == room {
			break
		}
	}
	return out
}

// discover promotes top analytics queries of u into tracked keywords.
func (p *Pipeline) discover(ctx context.Context, u model.TrackedURL, tracked int, period Period, s model.Settings, rules []filter.Rule) ([]string, error) {
	room := discoveryRoom(s, tracked)
	if room == 0 {
		return nil, nil
	}

	qctx, cancel := p.sourceContext(ctx)
	rows, err := p.analytics.TopQueries(qctx, gsc.TopQuery{
		URL:            u.URL,
		Start:          period.RangeStart,
		End:            period.RangeEnd,
		MinImpressions: s.DiscoveryMinImpressions,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("top queries: %w", err)
	}

	all, err := p.store.ListKeywords(ctx, u.ID, false)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(all))
	for _, kw := range all {
		existing[model.NormalizeKeyword(kw.Text)] = true
	}

	var added []string
	for _, r := range selectCandidates(rows, existing, rules, room) {
		kw := &model.Keyword{
			URLID:   u.ID,
			Text:    r.Query,
			Source:  model.SourceDiscovered,
			Intent:  model.GuessIntent(r.Query),
			Tracked: true,
		}
		if err := p.store.CreateKeyword(ctx, kw); err != nil {
			return added, fmt.Errorf("create keyword %q: %w", r.Query, err)
		}
		added = append(added, kw.Text)
	}
	return added, nil
}
