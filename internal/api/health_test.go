package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(nil, nil, "test", "v1")
	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"v1","env":"test"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		code     int
		status   string
		deps     map[string]string
	}{
		{"all up", up, up, http.StatusOK, "ok", map[string]string{"postgres": "ok", "redis": "ok"}},
		{"redis down", up, down, http.StatusOK, "degraded", map[string]string{"postgres": "ok", "redis": "down"}},
		{"postgres down", down, up, http.StatusServiceUnavailable, "error", map[string]string{"postgres": "down", "redis": "ok"}},
		{"nothing configured", nil, nil, http.StatusServiceUnavailable, "error", map[string]string{"postgres": "down", "redis": "down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.postgres, tt.redis, "test", "")
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.code, rec.Code)
			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.deps, resp.Dependencies)
		})
	}
}
