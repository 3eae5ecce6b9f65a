// Package probe serves liveness, readiness and prometheus endpoints for the
// worker and monitor processes.
package probe

import (
	"context"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civictrack/civictrack/internal/shared/logger"
)

const checkTimeout = 2 * time.Second

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// NewRouter builds the probe engine. metrics may be nil.
func NewRouter(service string, checks map[string]Check, metrics http.Handler, log logger.Interface) *gin.Engine {
	gin.DefaultWriter = io.Discard

	engine := gin.New()
	engine.Use(requestLogger(log))
	engine.Use(recovery(log))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	})
	engine.GET("/readyz", readiness(checks, log))
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}
	return engine
}

func readiness(checks map[string]Check, log logger.Interface) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()

		results := make(gin.H, len(names))
		ready := true
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				log.Warnw("readiness check failed", "check", name, "error", err)
				results[name] = err.Error()
				ready = false
				continue
			}
			results[name] = "ok"
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
	}
}
