// Package pipeline collects weekly ranking snapshots, raises alerts and
// maintains the snapshot history.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rank_tracker/internal/alert"
	"rank_tracker/internal/filter"
	"rank_tracker/internal/gsc"
	"rank_tracker/internal/metrics"
	"rank_tracker/internal/model"
	"rank_tracker/internal/notify"
	"rank_tracker/internal/serp"
	"rank_tracker/internal/storage"
)

// Analytics is the search-analytics source.
type Analytics interface {
	Configured() bool
	QueryKeywords(ctx context.Context, q gsc.Query) (map[string]gsc.Row, error)
	TopQueries(ctx context.Context, q gsc.TopQuery) ([]gsc.Row, error)
}

// SERP is the search-results position source.
type SERP interface {
	Configured() bool
	Live(ctx context.Context, req serp.Request) (map[string]serp.Result, error)
	Historical(ctx context.Context, req serp.Request, date time.Time) (map[string]serp.Result, error)
}

// Notifier delivers a formatted report.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Counts are the aggregate numbers of one run.
type Counts struct {
	URLs             int `json:"urls"`
	Keywords         int `json:"keywords"`
	SnapshotsCreated int `json:"snapshots_created"`
	SnapshotsUpdated int `json:"snapshots_updated"`
	SnapshotsSkipped int `json:"snapshots_skipped"`
	Alerts           int `json:"alerts"`
	Critical         int `json:"critical"`
	Warning          int `json:"warning"`
	Positive         int `json:"positive"`
	Declined         int `json:"declined"`
	Discovered       int `json:"discovered"`
	Archived         int `json:"archived"`
	SourceErrors     int `json:"source_errors"`
}

// Result is returned by every run, successful or not.
type Result struct {
	OK              bool     `json:"ok"`
	RunID           string   `json:"run_id"`
	Kind            string   `json:"kind"`
	DurationSeconds float64  `json:"duration_seconds"`
	Counts          Counts   `json:"counts"`
	Log             []string `json:"log"`
	Error           string   `json:"error,omitempty"`
}

// Pipeline runs collection plans against the store and the sources.
type Pipeline struct {
	store     storage.Storage
	analytics Analytics
	serp      SERP
	notifier  Notifier
	timeout   time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Pipeline. Any source may be nil; timeout bounds each source
// call and is disabled when zero.
func New(store storage.Storage, analytics Analytics, serpSource SERP, notifier Notifier, timeout time.Duration, log *slog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		analytics: analytics,
		serp:      serpSource,
		notifier:  notifier,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
	}
}

// RunCollection collects the current period for every URL.
func (p *Pipeline) RunCollection(ctx context.Context) Result {
	return p.Run(ctx, CurrentPlan(p.now()))
}

// RunCollectionForURL collects the current period for one URL.
func (p *Pipeline) RunCollectionForURL(ctx context.Context, urlID int64) Result {
	return p.Run(ctx, URLPlan(p.now(), urlID))
}

// RunBackfill fills missing snapshots for past periods.
func (p *Pipeline) RunBackfill(ctx context.Context, opts BackfillOptions) Result {
	plan, err := BackfillPlan(p.now(), opts)
	if err != nil {
		return Result{Kind: KindBackfill, Error: err.Error(), Log: []string{}}
	}
	return p.Run(ctx, plan)
}

// Run executes plan and persists a record of it. Only failures to load
// settings or URLs, or missing required configuration, fail the run; source
// and per-keyword errors are logged and skipped.
func (p *Pipeline) Run(ctx context.Context, plan Plan) Result {
	started := p.now()
	id := uuid.NewString()
	r := &run{
		id:   id,
		plan: plan,
		log:  p.log.With("run_id", id, "kind", plan.Kind),
	}
	r.info("run started", "periods", len(plan.Periods))

	err := p.execute(ctx, r)

	res := Result{
		OK:              err == nil,
		RunID:           r.id,
		Kind:            plan.Kind,
		DurationSeconds: p.now().Sub(started).Seconds(),
		Counts:          r.counts,
	}
	if err != nil {
		res.Error = err.Error()
		r.fail("run failed", "error", err)
	} else {
		r.info("run finished", "snapshots_created", r.counts.SnapshotsCreated, "alerts", r.counts.Alerts)
	}
	res.Log = r.lines

	p.record(ctx, started, res)
	return res
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	raw, err := p.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings, err := model.ParseSettings(raw)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if r.plan.needsSERP() {
		if settings.TargetDomain == "" {
			return errors.New("target domain is not configured")
		}
		if p.serp == nil || !p.serp.Configured() {
			return serp.ErrNotConfigured
		}
	}

	urls, err := p.loadURLs(ctx, r.plan.URLID)
	if err != nil {
		return err
	}

	analyticsOn := p.analytics != nil && p.analytics.Configured()
	if !analyticsOn {
		r.info("analytics source not configured, metrics and discovery skipped")
	}

	var rules []filter.Rule
	if r.plan.Discovery && settings.AutoDiscovery {
		if rules, err = filter.ParseRules(settings.DiscoveryExclude); err != nil {
			r.warn("invalid discovery exclusions ignored", "error", err)
			rules = nil
		}
	}

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled: %w", err)
		}
		p.processURL(ctx, r, u, settings, rules, analyticsOn)
	}

	if r.plan.Notify {
		p.sendReport(ctx, r)
	}

	if r.plan.Retention {
		n, err := p.sweep(ctx, settings.ArchiveWeeks)
		if err != nil {
			r.warn("retention sweep failed", "error", err)
		} else {
			r.counts.Archived = int(n)
			r.info("retention sweep done", "deleted", n, "archive_weeks", settings.ArchiveWeeks)
		}
	}
	return nil
}

func (p *Pipeline) loadURLs(ctx context.Context, id int64) ([]model.TrackedURL, error) {
	if id == 0 {
		urls, err := p.store.ListURLs(ctx)
		if err != nil {
			return nil, fmt.Errorf("load urls: %w", err)
		}
		return urls, nil
	}
	u, err := p.store.GetURL(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load url %d: %w", id, err)
	}
	return []model.TrackedURL{*u}, nil
}

func (p *Pipeline) processURL(ctx context.Context, r *run, u model.TrackedURL, s model.Settings, rules []filter.Rule, analyticsOn bool) {
	kws, err := p.store.ListKeywords(ctx, u.ID, true)
	if err != nil {
		r.warn("load keywords failed", "url", u.URL, "error", err)
		return
	}
	r.counts.URLs++
	r.counts.Keywords += len(kws)

	var trs []transition
	if len(kws) == 0 {
		r.info("no tracked keywords", "url", u.URL)
	} else {
		texts := make([]string, len(kws))
		for i, kw := range kws {
			texts[i] = kw.Text
		}

		for _, period := range r.plan.Periods {
			var rows map[string]gsc.Row
			if analyticsOn {
				rows = p.fetchAnalytics(ctx, r, u, texts, period)
			}
			results := p.fetchSERP(ctx, r, u, texts, period, s)

			for _, kw := range kws {
				tr, out, err := p.reconcile(ctx, kw, period, rows, results, r.plan.WriteMode)
				if err != nil {
					r.warn("snapshot write failed", "url", u.URL, "keyword", kw.Text, "error", err)
					continue
				}
				r.countSnapshot(out)
				if !r.plan.Alerting {
					continue
				}
				trs = append(trs, tr)
				p.raiseAlert(ctx, r, u, tr, s.AlertThreshold)
			}
		}
	}

	if r.plan.Discovery && s.AutoDiscovery && analyticsOn {
		added, err := p.discover(ctx, u, len(kws), r.plan.Periods[len(r.plan.Periods)-1], s, rules)
		if err != nil {
			r.sourceError("gsc")
			r.warn("keyword discovery failed", "url", u.URL, "error", err)
		}
		if len(added) > 0 {
			r.counts.Discovered += len(added)
			r.info("keywords discovered", "url", u.URL, "keywords", strings.Join(added, ", "))
		}
	}

	if r.plan.Alerting {
		p.updateStatus(ctx, r, u, trs, len(kws))
	}
}

func (p *Pipeline) fetchAnalytics(ctx context.Context, r *run, u model.TrackedURL, keywords []string, period Period) map[string]gsc.Row {
	qctx, cancel := p.sourceContext(ctx)
	defer cancel()

	rows, err := p.analytics.QueryKeywords(qctx, gsc.Query{
		URL:      u.URL,
		Start:    period.RangeStart,
		End:      period.RangeEnd,
		Keywords: keywords,
	})
	if err != nil {
		r.sourceError("gsc")
		r.warn("analytics query failed", "url", u.URL, "period", period.Start.Format(time.DateOnly), "error", err)
		return map[string]gsc.Row{}
	}
	return rows
}

func (p *Pipeline) fetchSERP(ctx context.Context, r *run, u model.TrackedURL, keywords []string, period Period, s model.Settings) map[string]serp.Result {
	if period.SERP == SERPNone {
		return map[string]serp.Result{}
	}

	size := serp.LiveBatchSize
	if period.SERP == SERPHistorical {
		size = serp.HistoricalBatchSize
	}
	qctx, cancel := p.batchContext(ctx, (len(keywords)+size-1)/size)
	defer cancel()

	req := serp.Request{
		Keywords:     keywords,
		TargetDomain: s.TargetDomain,
		LocationCode: s.SERPLocationCode,
		LanguageCode: s.SERPLanguageCode,
		Depth:        s.SERPDepth,
	}

	var (
		results map[string]serp.Result
		err     error
	)
	if period.SERP == SERPHistorical {
		results, err = p.serp.Historical(qctx, req, period.SERPDate)
	} else {
		results, err = p.serp.Live(qctx, req)
	}
	if err != nil {
		r.sourceError("serp")
		r.warn("serp query failed", "url", u.URL, "mode", period.SERP.String(), "period", period.Start.Format(time.DateOnly),
			"failed_keywords", len(serp.FailedKeywords(err)), "kept", len(results), "error", err)
	}
	if results == nil {
		results = map[string]serp.Result{}
	}
	return results
}

func (p *Pipeline) raiseAlert(ctx context.Context, r *run, u model.TrackedURL, tr transition, threshold int) {
	ev, ok := alert.Classify(tr.Prev, tr.Current, threshold)
	if !ok {
		return
	}
	a := &model.Alert{
		KeywordID: tr.Keyword.ID,
		Type:      ev.Type,
		Severity:  ev.Severity,
		Details:   ev.Details,
	}
	if err := p.store.CreateAlert(ctx, a); err != nil {
		r.warn("alert write failed", "url", u.URL, "keyword", tr.Keyword.Text, "error", err)
		return
	}
	metrics.IncAlert(ev.Type, ev.Severity)

	r.counts.Alerts++
	switch ev.Severity {
	case model.SeverityCritical:
		r.counts.Critical++
	case model.SeverityWarning:
		r.counts.Warning++
	case model.SeverityPositive:
		r.counts.Positive++
	}
	r.alerts = append(r.alerts, notify.AlertLine{
		URL:      u.URL,
		Keyword:  tr.Keyword.Text,
		Type:     ev.Type,
		Severity: ev.Severity,
		Details:  ev.Details,
	})
	r.info("alert raised", "url", u.URL, "keyword", tr.Keyword.Text, "type", string(ev.Type), "details", ev.Details)
}

func (p *Pipeline) updateStatus(ctx context.Context, r *run, u model.TrackedURL, trs []transition, total int) {
	d := regressed(trs)
	if !shouldDecline(d, total) || u.Status == model.StatusDeclining {
		return
	}
	if err := p.store.UpdateURLStatus(ctx, u.ID, model.StatusDeclining); err != nil {
		r.warn("status update failed", "url", u.URL, "error", err)
		return
	}
	r.counts.Declined++
	r.info("url marked declining", "url", u.URL, "regressed", d, "keywords", total)
}

func (p *Pipeline) sendReport(ctx context.Context, r *run) {
	if len(r.alerts) == 0 {
		r.info("no alerts, notification skipped")
		return
	}
	if p.notifier == nil {
		r.info("no notifier configured, notification skipped")
		return
	}

	text := notify.FormatReport(notify.Report{
		Kind:        r.plan.Kind,
		PeriodStart: r.plan.Periods[len(r.plan.Periods)-1].Start,
		Alerts:      r.alerts,
	})

	sctx, cancel := p.sourceContext(ctx)
	defer cancel()
	if err := p.notifier.Send(sctx, text); err != nil {
		r.warn("notification failed", "error", err)
		return
	}
	r.info("notification sent", "alerts", len(r.alerts))
}

// batchContext bounds a whole batched source call at one source timeout
// per batch. The SERP client also bounds each batch on its own.
func (p *Pipeline) batchContext(ctx context.Context, batches int) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout*time.Duration(max(batches, 1)))
}

func (p *Pipeline) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// record persists the run and updates metrics. Failures here do not change
// the result returned to the caller.
func (p *Pipeline) record(ctx context.Context, started time.Time, res Result) {
	metrics.ObserveRun(res.Kind, res.OK, res.DurationSeconds)
	metrics.AddSnapshots("created", res.Counts.SnapshotsCreated)
	metrics.AddSnapshots("updated", res.Counts.SnapshotsUpdated)
	metrics.AddSnapshots("skipped", res.Counts.SnapshotsSkipped)

	counts, err := json.Marshal(res.Counts)
	if err != nil {
		p.log.Error("encode run counts", "run_id", res.RunID, "error", err)
		return
	}
	rec := &model.Run{
		ID:              res.RunID,
		Kind:            res.Kind,
		OK:              res.OK,
		Error:           res.Error,
		StartedAt:       started,
		DurationSeconds: res.DurationSeconds,
		Counts:          string(counts),
		Log:             res.Log,
	}
	if err := p.store.CreateRun(context.WithoutCancel(ctx), rec); err != nil {
		p.log.Error("save run record", "run_id", res.RunID, "error", err)
	}
}
