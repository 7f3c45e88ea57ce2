package pipeline

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodStart(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{name: "monday midnight", now: day(2024, 3, 4), want: day(2024, 3, 4)},
		{name: "monday evening", now: time.Date(2024, 3, 4, 23, 59, 0, 0, time.UTC), want: day(2024, 3, 4)},
		{name: "wednesday", now: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC), want: day(2024, 3, 4)},
		{name: "sunday", now: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), want: day(2024, 3, 4)},
		{name: "across month", now: day(2024, 3, 2), want: day(2024, 2, 26)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, PeriodStart(tt.now)); diff != "" {
				t.Errorf("PeriodStart mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCurrentPlan(t *testing.T) {
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	want := Plan{
		Kind: KindCollect,
		Periods: []Period{{
			Start:      day(2024, 3, 4),
			RangeStart: day(2024, 2, 26),
			RangeEnd:   day(2024, 3, 3),
			SERP:       SERPLive,
		}},
		WriteMode: WriteUpsert,
		Alerting:  true,
		Notify:    true,
		Discovery: true,
		Retention: true,
	}
	if diff := cmp.Diff(want, CurrentPlan(now)); diff != "" {
		t.Errorf("CurrentPlan mismatch (-want +got):\n%s", diff)
	}

	urlPlan := URLPlan(now, 7)
	if urlPlan.Kind != KindCollectURL || urlPlan.URLID != 7 || !urlPlan.Notify || !urlPlan.Alerting {
		t.Errorf("unexpected URL plan: %+v", urlPlan)
	}
}

func TestBackfillPlan(t *testing.T) {
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

	t.Run("historical", func(t *testing.T) {
		got, err := BackfillPlan(now, BackfillOptions{WeeksBack: 3, URLID: 2, UseHistoricalSERP: true})
		if err != nil {
			t.Fatalf("BackfillPlan: %v", err)
		}
		want := Plan{
			Kind: KindBackfill,
			Periods: []Period{
				{Start: day(2024, 2, 19), RangeStart: day(2024, 2, 19), RangeEnd: day(2024, 2, 25), SERP: SERPHistorical, SERPDate: day(2024, 2, 22)},
				{Start: day(2024, 2, 26), RangeStart: day(2024, 2, 26), RangeEnd: day(2024, 3, 3), SERP: SERPHistorical, SERPDate: day(2024, 2, 29)},
				{Start: day(2024, 3, 4), RangeStart: day(2024, 2, 26), RangeEnd: day(2024, 3, 3), SERP: SERPLive},
			},
			URLID:     2,
			WriteMode: WriteCreateOnly,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("BackfillPlan mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("without historical serp", func(t *testing.T) {
		got, err := BackfillPlan(now, BackfillOptions{WeeksBack: 2})
		if err != nil {
			t.Fatalf("BackfillPlan: %v", err)
		}
		var modes []SERPMode
		for _, p := range got.Periods {
			modes = append(modes, p.SERP)
		}
		if diff := cmp.Diff([]SERPMode{SERPNone, SERPLive}, modes); diff != "" {
			t.Errorf("serp modes mismatch (-want +got):\n%s", diff)
		}
	})

	for _, weeks := range []int{0, -1, MaxBackfillWeeks + 1} {
		if _, err := BackfillPlan(now, BackfillOptions{WeeksBack: weeks}); err == nil {
			t.Errorf("weeks=%d: expected error", weeks)
		}
	}
}

func TestPositionChange(t *testing.T) {
	five, twelve := 5, 12
	tests := []struct {
		name      string
		prev, cur *int
		want      int
	}{
		{name: "drop", prev: &five, cur: &twelve, want: -7},
		{name: "gain", prev: &twelve, cur: &five, want: 7},
		{name: "no prev", prev: nil, cur: &five, want: 0},
		{name: "no current", prev: &five, cur: nil, want: 0},
		{name: "neither", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := positionChange(tt.prev, tt.cur); got != tt.want {
				t.Errorf("positionChange = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestShouldDecline(t *testing.T) {
	tests := []struct {
		d, total int
		want     bool
	}{
		{d: 2, total: 4, want: true},
		{d: 1, total: 4, want: false},
		{d: 3, total: 4, want: true},
		{d: 1, total: 1, want: true},
		{d: 49, total: 100, want: false},
		{d: 50, total: 100, want: true},
		{d: 0, total: 0, want: false},
	}
	for _, tt := range tests {
		if got := shouldDecline(tt.d, tt.total); got != tt.want {
			t.Errorf("shouldDecline(%d, %d) = %v, want %v", tt.d, tt.total, got, tt.want)
		}
	}
}

func TestRegressed(t *testing.T) {
	p := func(v int) *int { return &v }
	trs := []transition{
		{Prev: p(5), Current: p(8)},
		{Prev: p(5), Current: p(7)},
		{Prev: p(5), Current: nil},
		{Prev: nil, Current: p(40)},
		{Prev: p(10), Current: p(30)},
	}
	if got := regressed(trs); got != 2 {
		t.Errorf("regressed = %d, want 2", got)
	}
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	cutoff := retentionCutoff(now, 13)
	fourteen := day(2024, 3, 4).AddDate(0, 0, -14*7)
	twelve := day(2024, 3, 4).AddDate(0, 0, -12*7)
	if !fourteen.Before(cutoff) {
		t.Errorf("period 14 weeks back (%s) should be before cutoff %s", fourteen, cutoff)
	}
	if twelve.Before(cutoff) {
		t.Errorf("period 12 weeks back (%s) should not be before cutoff %s", twelve, cutoff)
	}
}
