package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentdesk/console/internal/api/middleware"
	"github.com/consentdesk/console/internal/auth"
)

// accessLog runs req through wrap(Logger) and returns the decoded log line.
func accessLog(t *testing.T, req *http.Request, wrap func(logger http.Handler) http.Handler, inner http.HandlerFunc) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(inner)
	if wrap != nil {
		handler = wrap(handler)
	}

	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogsRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/dsar/stats", http.NoBody)
	req.Header.Set("User-Agent", "consolectl/1.0")

	entry := accessLog(t, req, nil, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"total":3}`))
	})

	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/dsar/stats", entry["path"])
	assert.Equal(t, "unmatched", entry["route"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(11), entry["bytes"])
	assert.Equal(t, "consolectl/1.0", entry["user_agent"])
	assert.Contains(t, entry, "duration")
}

func TestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusAccepted, "info"},
		{http.StatusConflict, "warn"},
		{http.StatusBadGateway, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/dsar/requests/r1/auto-process", http.NoBody)
			entry := accessLog(t, req, nil, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestLogger_IncludesRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Put("/v1/resources/rules/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/v1/resources/rules/rule-1", http.NoBody))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/v1/resources/rules/{id}", entry["route"])
	assert.Equal(t, "/v1/resources/rules/rule-1", entry["path"])
}

func TestLogger_IncludesOperator(t *testing.T) {
	jwtService := testJWTService()
	req := httptest.NewRequest(http.MethodGet, "/v1/dsar/requests", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwtService, "op_alice", auth.RoleViewer))

	entry := accessLog(t, req, nil, func(w http.ResponseWriter, r *http.Request) {
		middleware.Auth(jwtService)(okHandler()).ServeHTTP(w, r)
	})

	assert.Equal(t, "op_alice", entry["operator"])
}

func TestLogger_IncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/notifications", http.NoBody)
	req.Header.Set("X-Request-Id", "req_abc")

	entry := accessLog(t, req, middleware.RequestID, okHandler().ServeHTTP)

	assert.Equal(t, "req_abc", entry["request_id"])
}

func TestLogger_IncludesTraceID(t *testing.T) {
	withSpanRecorder(t)

	entry := accessLog(t, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody),
		middleware.Tracing("console-api"), okHandler().ServeHTTP)

	traceID, ok := entry["trace_id"].(string)
	require.True(t, ok)
	assert.Len(t, traceID, 32)

	spanID, ok := entry["span_id"].(string)
	require.True(t, ok)
	assert.Len(t, spanID, 16)
}
