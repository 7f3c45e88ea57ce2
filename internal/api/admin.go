package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rank_tracker/internal/model"
	"rank_tracker/internal/storage"
)

type keywordJSON struct {
	ID      int64  `json:"id"`
	Keyword string `json:"keyword"`
	Source  string `json:"source"`
	Intent  string `json:"intent"`
	Tracked bool   `json:"tracked"`
}

type urlJSON struct {
	ID        int64         `json:"id"`
	URL       string        `json:"url"`
	Title     string        `json:"title"`
	Category  string        `json:"category"`
	Status    string        `json:"status"`
	Priority  string        `json:"priority"`
	CreatedAt time.Time     `json:"created_at"`
	Keywords  []keywordJSON `json:"keywords"`
}

type urlRequest struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Status   string    `json:"status"`
	Priority string    `json:"priority"`
	Keywords *[]string `json:"keywords"`
}

// snapshotJSON keeps serp and previous positions nullable so a zero
// pos_change can be told apart from missing data.
type snapshotJSON struct {
	PeriodStart    time.Time `json:"period_start"`
	GSCPosition    *float64  `json:"gsc_position"`
	GSCClicks      int       `json:"gsc_clicks"`
	GSCImpressions int       `json:"gsc_impressions"`
	GSCCTR         *float64  `json:"gsc_ctr"`
	SERPPosition   *int      `json:"serp_position"`
	SERPFeatures   []string  `json:"serp_features"`
	FoundURL       string    `json:"found_url"`
	PrevPosition   *int      `json:"prev_position"`
	PosChange      int       `json:"pos_change"`
	ChangeKnown    bool      `json:"pos_change_known"`
}

type alertJSON struct {
	ID         int64      `json:"id"`
	KeywordID  int64      `json:"keyword_id"`
	Keyword    string     `json:"keyword,omitempty"`
	URLID      int64      `json:"url_id,omitempty"`
	URL        string     `json:"url,omitempty"`
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	Details    string     `json:"details"`
	Status     string     `json:"status"`
	Action     string     `json:"action"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

type noteJSON struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func toAlertJSON(a model.Alert) alertJSON {
	return alertJSON{
		ID:         a.ID,
		KeywordID:  a.KeywordID,
		Type:       string(a.Type),
		Severity:   string(a.Severity),
		Details:    a.Details,
		Status:     string(a.Status),
		Action:     a.Action,
		CreatedAt:  a.CreatedAt,
		ResolvedAt: a.ResolvedAt,
	}
}

// storeError maps storage errors to responses.
func (h *Handler) storeError(c *gin.Context, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "not found")
		return
	}
	h.log.Error(op, "error", err)
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, "internal error")
}

func (h *Handler) urlWithKeywords(c *gin.Context, u model.TrackedURL) (urlJSON, error) {
	kws, err := h.store.ListKeywords(c.Request.Context(), u.ID, false)
	if err != nil {
		return urlJSON{}, err
	}
	out := urlJSON{
		ID:        u.ID,
		URL:       u.URL,
		Title:     u.Title,
		Category:  u.Category,
		Status:    string(u.Status),
		Priority:  string(u.Priority),
		CreatedAt: u.CreatedAt,
		Keywords:  make([]keywordJSON, 0, len(kws)),
	}
	for _, kw := range kws {
		out.Keywords = append(out.Keywords, keywordJSON{
			ID:      kw.ID,
			Keyword: kw.Text,
			Source:  string(kw.Source),
			Intent:  string(kw.Intent),
			Tracked: kw.Tracked,
		})
	}
	return out, nil
}

func (h *Handler) listURLs(c *gin.Context) {
	urls, err := h.store.ListURLs(c.Request.Context())
	if err != nil {
		h.storeError(c, "list urls", err)
		return
	}
	out := make([]urlJSON, 0, len(urls))
	for _, u := range urls {
		j, err := h.urlWithKeywords(c, u)
		if err != nil {
			h.storeError(c, "list keywords", err)
			return
		}
		out = append(out, j)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getURL(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := h.store.GetURL(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, "get url", err)
		return
	}
	j, err := h.urlWithKeywords(c, *u)
	if err != nil {
		h.storeError(c, "list keywords", err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// apply copies the non-empty request fields onto u.
func (req urlRequest) apply(u *model.TrackedURL) string {
	if v := strings.TrimSpace(req.URL); v != "" {
		u.URL = v
	}
	if req.Title != "" {
		u.Title = req.Title
	}
	if req.Category != "" {
		u.Category = req.Category
	}
	if req.Status != "" {
		s := model.URLStatus(req.Status)
		if !s.Valid() {
			return "invalid status " + strconv.Quote(req.Status)
		}
		u.Status = s
	}
	if req.Priority != "" {
		p := model.Priority(req.Priority)
		if !p.Valid() {
			return "invalid priority " + strconv.Quote(req.Priority)
		}
		u.Priority = p
	}
	return ""
}

func (h *Handler) createURL(c *gin.Context) {
	ctx := c.Request.Context()
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	var u model.TrackedURL
	if msg := req.apply(&u); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	if u.URL == "" {
		fail(c, http.StatusBadRequest, "url is required")
		return
	}
	if _, err := h.store.FindURL(ctx, u.URL); err == nil {
		fail(c, http.StatusConflict, "url already tracked")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.storeError(c, "find url", err)
		return
	}

	if err := h.store.CreateURL(ctx, &u); err != nil {
		h.storeError(c, "create url", err)
		return
	}
	if req.Keywords != nil {
		if err := h.store.SyncKeywords(ctx, u.ID, *req.Keywords); err != nil {
			h.storeError(c, "sync keywords", err)
			return
		}
	}
	j, err := h.urlWithKeywords(c, u)
	if err != nil {
		h.storeError(c, "list keywords", err)
		return
	}
	c.JSON(http.StatusCreated, j)
}

// updateURL edits a URL. A keywords list, when present, replaces the whole
// keyword set; dropped keywords lose their history.
func (h *Handler) updateURL(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	u, err := h.store.GetURL(ctx, id)
	if err != nil {
		h.storeError(c, "get url", err)
		return
	}
	if msg := req.apply(u); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	if err := h.store.UpdateURL(ctx, u); err != nil {
		h.storeError(c, "update url", err)
		return
	}
	if req.Keywords != nil {
		if err := h.store.SyncKeywords(ctx, u.ID, *req.Keywords); err != nil {
			h.storeError(c, "sync keywords", err)
			return
		}
	}
	j, err := h.urlWithKeywords(c, *u)
	if err != nil {
		h.storeError(c, "list keywords", err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *Handler) deleteURL(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteURL(c.Request.Context(), id); err != nil {
		h.storeError(c, "delete url", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listNotes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	notes, err := h.store.ListNotes(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, "list notes", err)
		return
	}
	out := make([]noteJSON, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteJSON{ID: n.ID, Text: n.Text, CreatedAt: n.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) addNote(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, "text is required")
		return
	}
	if _, err := h.store.GetURL(ctx, id); err != nil {
		h.storeError(c, "get url", err)
		return
	}
	n := &model.Note{URLID: id, Text: strings.TrimSpace(req.Text)}
	if err := h.store.AddNote(ctx, n); err != nil {
		h.storeError(c, "add note", err)
		return
	}
	c.JSON(http.StatusCreated, noteJSON{ID: n.ID, Text: n.Text, CreatedAt: n.CreatedAt})
}

func (h *Handler) listSnapshots(c *gin.Context) {
	ctx := c.Request.Context()
	urlID, ok := pathID(c, "id")
	if !ok {
		return
	}
	kid, ok := pathID(c, "kid")
	if !ok {
		return
	}

	kws, err := h.store.ListKeywords(ctx, urlID, false)
	if err != nil {
		h.storeError(c, "list keywords", err)
		return
	}
	found := false
	for _, kw := range kws {
		if kw.ID == kid {
			found = true
			break
		}
	}
	if !found {
		fail(c, http.StatusNotFound, "not found")
		return
	}

	snaps, err := h.store.ListSnapshots(ctx, kid)
	if err != nil {
		h.storeError(c, "list snapshots", err)
		return
	}
	out := make([]snapshotJSON, 0, len(snaps))
	for _, s := range snaps {
		features := s.SERPFeatures
		if features == nil {
			features = []string{}
		}
		out = append(out, snapshotJSON{
			PeriodStart:    s.PeriodStart,
			GSCPosition:    s.GSCPosition,
			GSCClicks:      s.GSCClicks,
			GSCImpressions: s.GSCImpressions,
			GSCCTR:         s.GSCCTR,
			SERPPosition:   s.SERPPosition,
			SERPFeatures:   features,
			FoundURL:       s.FoundURL,
			PrevPosition:   s.PrevPosition,
			PosChange:      s.PosChange,
			ChangeKnown:    s.PrevPosition != nil && s.SERPPosition != nil,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) listAlerts(c *gin.Context) {
	var f storage.AlertFilter
	if s := c.Query("status"); s != "" {
		f.Status = model.AlertStatus(s)
		if !f.Status.Valid() {
			fail(c, http.StatusBadRequest, "invalid status "+strconv.Quote(s))
			return
		}
	}
	if v := c.Query("url_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid url_id")
			return
		}
		f.URLID = id
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	alerts, err := h.store.ListAlerts(c.Request.Context(), f)
	if err != nil {
		h.storeError(c, "list alerts", err)
		return
	}
	out := make([]alertJSON, 0, len(alerts))
	for _, a := range alerts {
		j := toAlertJSON(a.Alert)
		j.Keyword, j.URLID, j.URL = a.Keyword, a.URLID, a.URL
		out = append(out, j)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) updateAlert(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string  `json:"status"`
		Action *string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	a, err := h.store.GetAlert(ctx, id)
	if err != nil {
		h.storeError(c, "get alert", err)
		return
	}
	status := a.Status
	if req.Status != "" {
		status = model.AlertStatus(req.Status)
		if !status.Valid() {
			fail(c, http.StatusBadRequest, "invalid status "+strconv.Quote(req.Status))
			return
		}
	}
	action := a.Action
	if req.Action != nil {
		action = *req.Action
	}

	if err := h.store.UpdateAlert(ctx, id, status, action); err != nil {
		h.storeError(c, "update alert", err)
		return
	}
	a, err = h.store.GetAlert(ctx, id)
	if err != nil {
		h.storeError(c, "get alert", err)
		return
	}
	c.JSON(http.StatusOK, toAlertJSON(*a))
}

func (h *Handler) getSettings(c *gin.Context) {
	raw, err := h.store.LoadSettings(c.Request.Context())
	if err != nil {
		h.storeError(c, "load settings", err)
		return
	}
	c.JSON(http.StatusOK, raw)
}

// putSetting stores one value after checking that the resulting settings
// still parse.
func (h *Handler) putSetting(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")
	if !model.IsSettingKey(key) {
		fail(c, http.StatusBadRequest, "unknown setting "+strconv.Quote(key))
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	raw, err := h.store.LoadSettings(ctx)
	if err != nil {
		h.storeError(c, "load settings", err)
		return
	}
	raw[key] = req.Value
	if _, err := model.ParseSettings(raw); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.SetSetting(ctx, key, req.Value); err != nil {
		h.storeError(c, "set setting", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.storeError(c, "list runs", err)
		return
	}
	type runJSON struct {
		ID              string          `json:"id"`
		Kind            string          `json:"kind"`
		OK              bool            `json:"ok"`
		Error           string          `json:"error,omitempty"`
		StartedAt       time.Time       `json:"started_at"`
		DurationSeconds float64         `json:"duration_seconds"`
		Counts          json.RawMessage `json:"counts"`
		Log             []string        `json:"log"`
	}
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		counts := json.RawMessage(r.Counts)
		if !json.Valid(counts) {
			counts = json.RawMessage("{}")
		}
		logLines := r.Log
		if logLines == nil {
			logLines = []string{}
		}
		out = append(out, runJSON{
			ID:              r.ID,
			Kind:            r.Kind,
			OK:              r.OK,
			Error:           r.Error,
			StartedAt:       r.StartedAt,
			DurationSeconds: r.DurationSeconds,
			Counts:          counts,
			Log:             logLines,
		})
	}
	c.JSON(http.StatusOK, out)
}
