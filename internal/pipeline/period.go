package pipeline

import (
	"fmt"
	"time"
)

// Run kinds, also used as metric labels.
const (
	KindCollect    = "collect"
	KindCollectURL = "collect_url"
	KindBackfill   = "backfill"
)

// MaxBackfillWeeks bounds a single backfill request.
const MaxBackfillWeeks = 104

// Reporting lag of the analytics source, in days.
const analyticsLagDays = 3

// SERPMode selects where a period's positions come from.
type SERPMode int

const (
	// SERPNone skips the SERP source; positions come from analytics only.
	SERPNone SERPMode = iota
	// SERPLive queries current results. Used for the week just ended.
	SERPLive
	// SERPHistorical queries archived results for past weeks during backfill.
	SERPHistorical
)

func (m SERPMode) String() string {
	switch m {
	case SERPLive:
		return "live"
	case SERPHistorical:
		return "historical"
	default:
		return "none"
	}
}

// WriteMode controls how snapshots are persisted.
type WriteMode int

const (
	// WriteUpsert overwrites an existing snapshot for the same period.
	WriteUpsert WriteMode = iota
	// WriteCreateOnly leaves existing snapshots untouched.
	WriteCreateOnly
)

// Period is one weekly collection window.
type Period struct {
	Start      time.Time
	RangeStart time.Time
	RangeEnd   time.Time
	SERP       SERPMode
	SERPDate   time.Time
}

// Plan parameterizes a pipeline run.
type Plan struct {
	Kind      string
	Periods   []Period
	URLID     int64
	WriteMode WriteMode
	Alerting  bool
	Notify    bool
	Discovery bool
	Retention bool
}

func (p Plan) needsSERP() bool {
	for _, pr := range p.Periods {
		if pr.SERP != SERPNone {
			return true
		}
	}
	return false
}

// BackfillOptions are the caller-supplied parameters of a backfill run.
type BackfillOptions struct {
	WeeksBack         int   `json:"weeks_back"`
	URLID             int64 `json:"url_id"`
	UseHistoricalSERP bool  `json:"use_historical_serp"`
}

// PeriodStart returns the most recent Monday at midnight in now's location.
func PeriodStart(now time.Time) time.Time {
	offset := (int(now.Weekday()) + 6) % 7
	y, m, d := now.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, now.Location())
}

func currentPeriod(now time.Time) Period {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return Period{
		Start:      PeriodStart(now),
		RangeStart: today.AddDate(0, 0, -analyticsLagDays-6),
		RangeEnd:   today.AddDate(0, 0, -analyticsLagDays),
		SERP:       SERPLive,
	}
}

// CurrentPlan is the weekly run over every tracked URL.
func CurrentPlan(now time.Time) Plan {
	return Plan{
		Kind:      KindCollect,
		Periods:   []Period{currentPeriod(now)},
		WriteMode: WriteUpsert,
		Alerting:  true,
		Notify:    true,
		Discovery: true,
		Retention: true,
	}
}

// URLPlan is the weekly run restricted to one URL.
func URLPlan(now time.Time, urlID int64) Plan {
	p := CurrentPlan(now)
	p.Kind = KindCollectURL
	p.URLID = urlID
	return p
}

// BackfillPlan rebuilds opts.WeeksBack periods ending with the current one.
// Periods are ordered oldest first so each one sees its predecessor's
// position.
func BackfillPlan(now time.Time, opts BackfillOptions) (Plan, error) {
	if opts.WeeksBack < 1 || opts.WeeksBack > MaxBackfillWeeks {
		return Plan{}, fmt.Errorf("weeks_back must be between 1 and %d, got %d", MaxBackfillWeeks, opts.WeeksBack)
	}

	current := currentPeriod(now)
	periods := make([]Period, 0, opts.WeeksBack)
	for k := opts.WeeksBack - 1; k > 0; k-- {
		start := current.Start.AddDate(0, 0, -7*k)
		pr := Period{
			Start:      start,
			RangeStart: start,
			RangeEnd:   start.AddDate(0, 0, 6),
		}
		if opts.UseHistoricalSERP {
			pr.SERP = SERPHistorical
			pr.SERPDate = start.AddDate(0, 0, 3)
		}
		periods = append(periods, pr)
	}
	periods = append(periods, current)

	return Plan{
		Kind:      KindBackfill,
		Periods:   periods,
		URLID:     opts.URLID,
		WriteMode: WriteCreateOnly,
	}, nil
}
