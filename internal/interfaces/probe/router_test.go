package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civictrack/civictrack/internal/infrastructure/metrics"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	engine.ServeHTTP(w, req)
	return w
}

func ok(ctx context.Context) error { return nil }

func TestHealthz(t *testing.T) {
	engine := NewRouter("worker", nil, nil, logger.NewNopLogger())

	w := serve(engine, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"worker"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(engine, "/metrics").Code)
}

func TestReadyz(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		engine := NewRouter("worker", map[string]Check{"database": ok, "redis": ok}, nil, logger.NewNopLogger())

		w := serve(engine, "/readyz")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready","checks":{"database":"ok","redis":"ok"}}`, w.Body.String())
	})

	t.Run("failing check", func(t *testing.T) {
		failing := func(ctx context.Context) error { return assert.AnError }
		engine := NewRouter("monitor", map[string]Check{"database": ok, "redis": failing}, nil, logger.NewNopLogger())

		w := serve(engine, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "unavailable", body.Status)
		assert.Equal(t, "ok", body.Checks["database"])
		assert.Equal(t, assert.AnError.Error(), body.Checks["redis"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	collectors := metrics.NewCollectors()
	collectors.ObservePipeline("classified")
	engine := NewRouter("worker", nil, collectors.Handler(), logger.NewNopLogger())

	w := serve(engine, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `civictrack_pipeline_runs_total{outcome="classified"} 1`)
}
