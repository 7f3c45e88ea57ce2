// Package alert classifies keyword ranking transitions into alert events.
package alert

import (
	"fmt"

	"rank_tracker/internal/model"
)

// pageSize is the number of organic results on the first page.
const pageSize = 10

// Event is the outcome of classifying one transition.
type Event struct {
	Type     model.AlertType
	Severity model.Severity
	Details  string
}

type rule struct {
	typ   model.AlertType
	match func(prev, cur, threshold int) bool
	build func(prev, cur, threshold int) Event
}

// rules are evaluated in order; the first match wins. Reordering changes
// which alert a transition produces (see TestRuleOrder).
var rules = []rule{
	{
		typ: model.AlertLeftPage1,
		match: func(prev, cur, _ int) bool {
			return prev <= pageSize && cur > pageSize
		},
		build: func(prev, cur, _ int) Event {
			return Event{model.AlertLeftPage1, model.SeverityCritical, details(prev, cur, "dropped off page 1")}
		},
	},
	{
		typ: model.AlertPositionDrop,
		match: func(prev, cur, threshold int) bool {
			return cur-prev >= threshold
		},
		build: func(prev, cur, threshold int) Event {
			sev := model.SeverityWarning
			if cur-prev >= 2*threshold {
				sev = model.SeverityCritical
			}
			return Event{model.AlertPositionDrop, sev, details(prev, cur, fmt.Sprintf("-%d", cur-prev))}
		},
	},
	{
		typ: model.AlertRecovery,
		match: func(prev, cur, threshold int) bool {
			return cur-prev <= -threshold
		},
		build: func(prev, cur, _ int) Event {
			return Event{model.AlertRecovery, model.SeverityPositive, details(prev, cur, fmt.Sprintf("+%d", prev-cur))}
		},
	},
	{
		typ: model.AlertNewTop3,
		match: func(prev, cur, _ int) bool {
			return prev > 3 && cur <= 3
		},
		build: func(prev, cur, _ int) Event {
			return Event{model.AlertNewTop3, model.SeverityPositive, details(prev, cur, "entered top 3")}
		},
	},
}

// Classify returns the alert for a move from prev to cur, if any. Both
// positions must be known; a nil on either side never alerts.
func Classify(prev, cur *int, threshold int) (Event, bool) {
	if prev == nil || cur == nil {
		return Event{}, false
	}
	if threshold < 1 {
		threshold = 1
	}
	for _, r := range rules {
		if r.match(*prev, *cur, threshold) {
			return r.build(*prev, *cur, threshold), true
		}
	}
	return Event{}, false
}

// Order returns the alert types in evaluation order.
func Order() []model.AlertType {
	out := make([]model.AlertType, len(rules))
	for i, r := range rules {
		out[i] = r.typ
	}
	return out
}

func details(prev, cur int, qualifier string) string {
	return fmt.Sprintf("#%d → #%d (%s)", prev, cur, qualifier)
}
