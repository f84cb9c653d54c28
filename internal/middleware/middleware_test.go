package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	apierrors "rollbook/internal/errors"
	"rollbook/internal/infrastructure"
	"rollbook/internal/shared/testutil"
	"rollbook/pkg/contracts/domain"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "generated", header: ""},
		{name: "propagated", header: "req-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seenTrace, seenReq string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenTrace = infrastructure.GetTraceID(r.Context())
				seenReq = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			require.NotEmpty(t, got)
			if tt.header != "" {
				assert.Equal(t, tt.header, got)
			}
			assert.Equal(t, got, seenTrace)
			assert.Equal(t, got, seenReq)
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)

	h := StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/attendance/students/Zed?x=1", nil))

	require.Equal(t, 1, handler.Len())
	rec := handler.Records()[0]
	assert.Equal(t, "request completed", rec.Message)
	assert.Equal(t, int64(http.StatusNotFound), rec.Attrs["status"])
	assert.Equal(t, "x=1", rec.Attrs["query"])
	assert.Equal(t, "/api/attendance/students/Zed", rec.Attrs["path"])
}

func TestStructuredLogger_RoutePattern(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)

	r := chi.NewRouter()
	r.Use(StructuredLogger(logger))
	r.Get("/api/attendance/students/{name}", func(w http.ResponseWriter, r *http.Request) {})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/attendance/students/Mary", nil))

	require.Equal(t, 1, handler.Len())
	rec := handler.Records()[0]
	assert.Equal(t, "/api/attendance/students/{name}", rec.Attrs["route"])
	assert.NotContains(t, rec.Attrs, "path")
}

func TestRateLimiter(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewRateLimiter(0.5, 2, logger).Handler(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "2", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), apierrors.TypeRateLimit)
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.True(t, handler.ContainsMessage("rate limit exceeded"))

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rl := NewRateLimiter(1, 1, logger)
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("192.0.2.1"))
	assert.False(t, rl.allow("192.0.2.1"))
	assert.Len(t, rl.clients, 1)

	now = now.Add(limiterIdleTTL + time.Minute)
	assert.True(t, rl.allow("192.0.2.2"))
	assert.Len(t, rl.clients, 1)
}

func TestTimeout(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	rec := httptest.NewRecorder()
	Timeout(10*time.Millisecond, logger)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	rec = httptest.NewRecorder()
	Timeout(time.Second, logger)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})(okHandler)

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed bool
	}{
		{name: "allowed preflight", method: http.MethodOptions, origin: "http://localhost:3000", preflight: true, wantStatus: http.StatusNoContent, wantAllowed: true},
		{name: "foreign preflight", method: http.MethodOptions, origin: "http://evil.example", preflight: true, wantStatus: http.StatusForbidden},
		{name: "allowed request", method: http.MethodGet, origin: "http://LOCALHOST:3000", wantStatus: http.StatusOK, wantAllowed: true},
		{name: "foreign request", method: http.MethodGet, origin: "http://evil.example", wantStatus: http.StatusOK},
		{name: "same origin", method: http.MethodGet, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/attendance/summary", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantAllowed {
				assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
				assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		noStore   bool
		websocket bool
	}{
		{name: "dashboard page", path: "/"},
		{name: "api response", path: "/api/attendance/summary", noStore: true},
		{name: "websocket upgrade", path: "/ws", websocket: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.websocket {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			SecureHeaders(okHandler).ServeHTTP(rec, req)

			if tt.websocket {
				assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
				return
			}
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
			assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "connect-src 'self' ws: wss:")
			assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
			assert.Equal(t, tt.noStore, rec.Header().Get("Cache-Control") == "no-store")
		})
	}
}

func TestValidationMiddleware(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	vm := NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false), 64)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "json", contentType: "application/json", body: `{"action":"approve"}`, wantStatus: http.StatusOK},
		{name: "json with charset", contentType: "application/json; charset=utf-8", body: `{"action":"approve"}`, wantStatus: http.StatusOK},
		{name: "multipart passes", contentType: "multipart/form-data; boundary=x", body: strings.Repeat("x", 100), wantStatus: http.StatusOK},
		{name: "empty body", contentType: "", body: "", wantStatus: http.StatusOK},
		{name: "form encoded", contentType: "application/x-www-form-urlencoded", body: "action=approve", wantStatus: http.StatusUnsupportedMediaType},
		{name: "too large", contentType: "application/json", body: `{"reason":"` + strings.Repeat("x", 100) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/leave", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()

			vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.body, string(body))
			})).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestValidationMiddleware_DecodeAndValidate(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	vm := NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false), 0)

	var ok domain.LeaveDecisionRequest
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"reject"}`))
	require.NoError(t, vm.DecodeAndValidate(req, &ok))
	assert.Equal(t, domain.LeaveReject, ok.Action)

	var bad domain.LeaveDecisionRequest
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"later"}`))
	err := vm.DecodeAndValidate(req, &bad)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "empty", body: ``, wantCode: apierrors.CodeInvalidRequest},
		{name: "truncated", body: `{"action":`, wantCode: apierrors.CodeInvalidJSON},
		{name: "syntax", body: `{action}`, wantCode: apierrors.CodeInvalidJSON},
		{name: "unknown field", body: `{"action":"approve","by":"x"}`, wantCode: apierrors.CodeInvalidRequest},
		{name: "two objects", body: `{"action":"approve"}{"action":"reject"}`, wantCode: apierrors.CodeInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst domain.LeaveDecisionRequest
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var apiErr *apierrors.APIError
			require.ErrorAs(t, vm.DecodeAndValidate(req, &dst), &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	qv := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	tests := []struct {
		name   string
		value  string
		want   int
		wantOK bool
	}{
		{name: "default", value: "", want: 7, wantOK: true},
		{name: "in range", value: "12", want: 12, wantOK: true},
		{name: "too big", value: "13", wantOK: false},
		{name: "not a number", value: "dec", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := qv.ParseInt(rec, httptest.NewRequest(http.MethodGet, "/", nil), "month", tt.value, 1, 12, 7)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	got, ok := qv.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?format=XLSX", nil), "format", []string{"csv", "xlsx"}, "csv")
	assert.True(t, ok)
	assert.Equal(t, "xlsx", got)
}

func TestTelemetry(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		TraceExporter:  "none",
		MetricExporter: "prometheus",
	}, infrastructure.NewLogger(io.Discard, "error"))
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := infrastructure.CreateAttendanceMetrics(providers.Meter)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(Telemetry(providers.Tracer, metrics))
	r.Get("/api/attendance/students/{name}", okHandler)

	for _, path := range []string{"/api/attendance/students/Alice", "/api/attendance/students/Bob", "/wp-login.php"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `route="/api/attendance/students/{name}"`)
	assert.Contains(t, body, `route="unmatched"`)
	assert.NotContains(t, body, "Alice")
	assert.NotContains(t, body, "wp-login")
}

func TestTelemetry_NilMetrics(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Telemetry(noop.NewTracerProvider().Tracer("test"), nil))
	r.Get("/", okHandler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
