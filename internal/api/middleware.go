package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rank_tracker/internal/metrics"
)

// requireSecret accepts "Authorization: Bearer <secret>" or
// "X-Trigger-Secret: <secret>". An empty secret disables the check.
func requireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Trigger-Secret")
		if auth := c.GetHeader("Authorization"); got == "" && strings.HasPrefix(auth, "Bearer ") {
			got = strings.TrimPrefix(auth, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			fail(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			log.Error("http request", append(attrs, "errors", c.Errors.String())...)
			return
		}
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			log.Debug("http request", attrs...)
			return
		}
		log.Info("http request", attrs...)
	}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start).Seconds())
	}
}
