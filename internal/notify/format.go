package notify

import (
	"fmt"
	"strings"
	"time"

	"rank_tracker/internal/model"
)

// Report summarizes the alerts produced by one run.
type Report struct {
	Kind        string
	PeriodStart time.Time
	Alerts      []AlertLine
}

// AlertLine is one alert as shown in a report.
type AlertLine struct {
	URL      string
	Keyword  string
	Type     model.AlertType
	Severity model.Severity
	Details  string
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴"
	case model.SeverityWarning:
		return "🟡"
	case model.SeverityPositive:
		return "🟢"
	default:
		return "⚪"
	}
}

// FormatReport renders r as a plain-text message. Alerts are grouped by URL
// in the order the URLs first appear.
func FormatReport(r Report) string {
	var b strings.Builder

	title := "Weekly rank report"
	if r.Kind == "backfill" {
		title = "Backfill rank report"
	}
	fmt.Fprintf(&b, "%s, week of %s\n", title, r.PeriodStart.Format("2006-01-02"))

	var critical, warning, positive int
	for _, a := range r.Alerts {
		switch a.Severity {
		case model.SeverityCritical:
			critical++
		case model.SeverityWarning:
			warning++
		case model.SeverityPositive:
			positive++
		}
	}
	fmt.Fprintf(&b, "%d alerts: %d critical, %d warning, %d positive\n", len(r.Alerts), critical, warning, positive)

	var order []string
	groups := make(map[string][]AlertLine)
	for _, a := range r.Alerts {
		if _, ok := groups[a.URL]; !ok {
			order = append(order, a.URL)
		}
		groups[a.URL] = append(groups[a.URL], a)
	}

	for _, u := range order {
		fmt.Fprintf(&b, "\n%s\n", u)
		for _, a := range groups[u] {
			fmt.Fprintf(&b, "%s [%s] %s — %s\n", severityIcon(a.Severity), a.Type, a.Keyword, a.Details)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
