// Package api exposes the collection triggers and the admin endpoints over
// HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rank_tracker/internal/pipeline"
	"rank_tracker/internal/storage"
)

// Runner executes pipeline runs.
type Runner interface {
	RunCollection(ctx context.Context) pipeline.Result
	RunCollectionForURL(ctx context.Context, urlID int64) pipeline.Result
	RunBackfill(ctx context.Context, opts pipeline.BackfillOptions) pipeline.Result
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	runner Runner
	store  storage.Storage
	log    *slog.Logger
}

// NewRouter builds the gin engine. Every /api route requires secret when it
// is non-empty.
func NewRouter(runner Runner, store storage.Storage, secret string, log *slog.Logger) *gin.Engine {
	h := &Handler{runner: runner, store: store, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(requestMetrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", requireSecret(secret))

	api.POST("/collect", h.collect)
	api.POST("/collect/:id", h.collectURL)
	api.POST("/backfill", h.backfill)

	api.GET("/urls", h.listURLs)
	api.POST("/urls", h.createURL)
	api.GET("/urls/:id", h.getURL)
	api.PUT("/urls/:id", h.updateURL)
	api.DELETE("/urls/:id", h.deleteURL)
	api.GET("/urls/:id/notes", h.listNotes)
	api.POST("/urls/:id/notes", h.addNote)
	api.GET("/urls/:id/keywords/:kid/snapshots", h.listSnapshots)

	api.GET("/alerts", h.listAlerts)
	api.PATCH("/alerts/:id", h.updateAlert)

	api.GET("/settings", h.getSettings)
	api.PUT("/settings/:key", h.putSetting)

	api.GET("/runs", h.listRuns)

	return r
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg})
}
