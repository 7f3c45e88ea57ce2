package serp

import (
	"strings"

	"rank_tracker/internal/model"
)

type liveTask struct {
	Keyword      string `json:"keyword"`
	LocationCode int    `json:"location_code"`
	LanguageCode string `json:"language_code"`
	Depth        int    `json:"depth,omitempty"`
}

type historicalTask struct {
	Keyword      string `json:"keyword"`
	LocationCode int    `json:"location_code"`
	LanguageCode string `json:"language_code"`
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
}

type apiResponse struct {
	StatusCode    int       `json:"status_code"`
	StatusMessage string    `json:"status_message"`
	Tasks         []apiTask `json:"tasks"`
}

type apiTask struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Data          struct {
		Keyword string `json:"keyword"`
	} `json:"data"`
	Result []apiResult `json:"result"`
}

// apiResult covers both endpoint shapes: live results carry organic items
// directly, historical results carry one entry per recorded SERP.
type apiResult struct {
	Keyword   string      `json:"keyword"`
	ItemTypes []string    `json:"item_types"`
	Items     []serpEntry `json:"items"`
}

type serpEntry struct {
	Type         string      `json:"type"`
	RankGroup    int         `json:"rank_group"`
	RankAbsolute int         `json:"rank_absolute"`
	Domain       string      `json:"domain"`
	URL          string      `json:"url"`
	ItemTypes    []string    `json:"item_types"`
	Items        []serpEntry `json:"items"`
	Datetime     string      `json:"datetime"`
}

func parse(resp *apiResponse, target string, depth int) map[string]Result {
	out := make(map[string]Result, len(resp.Tasks))
	for _, task := range resp.Tasks {
		if task.StatusCode != statusOK || len(task.Result) == 0 {
			continue
		}
		res := task.Result[0]
		kw := task.Data.Keyword
		if kw == "" {
			kw = res.Keyword
		}
		if kw == "" {
			continue
		}

		itemTypes, items := res.ItemTypes, res.Items
		if historical(items) {
			// First recorded SERP in the window.
			itemTypes, items = items[0].ItemTypes, items[0].Items
		}
		out[model.NormalizeKeyword(kw)] = locate(itemTypes, items, target, depth)
	}
	return out
}

func historical(items []serpEntry) bool {
	return len(items) > 0 && items[0].Type != "organic" && items[0].Items != nil && items[0].Datetime != ""
}

func locate(itemTypes []string, items []serpEntry, target string, depth int) Result {
	res := Result{Features: features(itemTypes)}
	for _, it := range items {
		if it.Type != "organic" {
			continue
		}
		if depth > 0 && it.RankGroup > depth {
			break
		}
		if strings.Contains(strings.ToLower(it.Domain), target) {
			pos := it.RankGroup
			res.Position = &pos
			res.FoundURL = it.URL
			break
		}
	}
	return res
}

func features(itemTypes []string) []string {
	var out []string
	seen := make(map[string]bool, len(itemTypes))
	for _, t := range itemTypes {
		if t == "organic" || t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
