package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "rollbook/internal/errors"
	"rollbook/internal/services"
	"rollbook/internal/shared/testutil"
	"rollbook/pkg/contracts"
)

func TestHealthHandler_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name           string
		status         string
		expectedStatus int
	}{
		{name: "ready", status: services.StatusReady, expectedStatus: http.StatusOK},
		{name: "not ready", status: services.StatusNotReady, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockHealthService)
			svc.On("ReadinessCheck").Return(services.HealthStatus{
				Status:    tt.status,
				Timestamp: time.Now(),
				Services: map[string]services.ServiceHealth{
					"database": {Status: tt.status},
				},
			})

			logger, _ := testutil.NewTestLogger(t)
			handler := NewHealthHandler(svc, logger)

			rec := httptest.NewRecorder()
			handler.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.status, decodeBody(t, rec)["status"])
		})
	}
}

func TestHealthHandler_HealthLiveVersion(t *testing.T) {
	svc := new(MockHealthService)
	svc.On("HealthCheck").Return(services.HealthStatus{Status: services.StatusOK})
	svc.On("LivenessCheck").Return(services.HealthStatus{
		Status:  services.StatusAlive,
		Runtime: map[string]interface{}{"websocket_clients": 2},
	})
	svc.On("Version").Return(services.VersionResponse{
		VersionInfo: contracts.VersionInfo{Version: "1.2.3"},
		Uptime:      12,
	})

	logger, _ := testutil.NewTestLogger(t)
	handler := NewHealthHandler(svc, logger)

	rec := httptest.NewRecorder()
	handler.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	handler.LivenessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
	body := decodeBody(t, rec)
	assert.Equal(t, "alive", body["status"])
	runtime, ok := body["runtime"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), runtime["websocket_clients"])

	rec = httptest.NewRecorder()
	handler.Version(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Equal(t, "1.2.3", decodeBody(t, rec)["version"])

	svc.AssertExpectations(t)
}

func TestHealthHandler_Register(t *testing.T) {
	svc := new(MockHealthService)
	svc.On("HealthCheck").Return(services.HealthStatus{Status: services.StatusOK})
	svc.On("ReadinessCheck").Return(services.HealthStatus{Status: services.StatusReady})
	svc.On("LivenessCheck").Return(services.HealthStatus{Status: services.StatusAlive})
	svc.On("Version").Return(services.VersionResponse{})

	logger, _ := testutil.NewTestLogger(t)
	r := chi.NewRouter()
	NewHealthHandler(svc, logger).Register(r)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{method: http.MethodGet, path: "/health", want: http.StatusOK},
		{method: http.MethodHead, path: "/health", want: http.StatusOK},
		{method: http.MethodHead, path: "/health/ready", want: http.StatusOK},
		{method: http.MethodGet, path: "/health/live", want: http.StatusOK},
		{method: http.MethodGet, path: "/version", want: http.StatusOK},
		{method: http.MethodPost, path: "/health", want: http.StatusMethodNotAllowed},
		{method: http.MethodGet, path: "/healthz", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewMetricsHandler(nil, errorHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, apierrors.TypeServiceDown, decodeBody(t, rec)["type"])
	})

	t.Run("exporter", func(t *testing.T) {
		exporter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
			w.Write([]byte("rollbook_roster_loads_total 1\n"))
		})
		rec := httptest.NewRecorder()
		NewMetricsHandler(exporter, errorHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "rollbook_roster_loads_total")
	})
}
