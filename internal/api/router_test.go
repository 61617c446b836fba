package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentdesk/console/internal/api"
	"github.com/consentdesk/console/internal/api/models"
	"github.com/consentdesk/console/internal/audit"
	"github.com/consentdesk/console/internal/auth"
	"github.com/consentdesk/console/internal/backend"
	"github.com/consentdesk/console/internal/console"
	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/notify"
	"github.com/consentdesk/console/internal/view"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// testJWTService creates a JWT service for generating test tokens.
func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://id.consentdesk.io",
		Audience:   "consent-console",
	})
}

// fakeDSAR serves a fixed request list and records processor calls.
type fakeDSAR struct {
	mu         sync.Mutex
	requests   []dsar.Request
	processErr error
	processed  []string
	updates    map[string]dsar.Status
}

func (f *fakeDSAR) List(context.Context) ([]dsar.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dsar.Request(nil), f.requests...), nil
}

func (f *fakeDSAR) AutoProcess(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return f.processErr
}

func (f *fakeDSAR) UpdateStatus(_ context.Context, id string, status dsar.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string]dsar.Status)
	}
	f.updates[id] = status
	return nil
}

func (f *fakeDSAR) Processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.processed...)
}

// memStore is an in-memory console.Store.
type memStore[T any] struct {
	mu    sync.Mutex
	items []T
	err   error
}

func (s *memStore[T]) List(context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.items...), nil
}

func (s *memStore[T]) Create(_ context.Context, item T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		var zero T
		return zero, s.err
	}
	s.items = append(s.items, item)
	return item, nil
}

func (s *memStore[T]) Update(_ context.Context, _ string, item T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		var zero T
		return zero, s.err
	}
	return item, nil
}

func (s *memStore[T]) Delete(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

type testEnv struct {
	router http.Handler
	dsar   *fakeDSAR
	rules  *memStore[console.Rule]
	board  *dsar.Board
	tables *console.Tables
	inbox  *notify.Inbox
	audit  *audit.InMemoryRepository
	jwt    *auth.JWTService
}

func daysAgo(d int) time.Time {
	return testNow.Add(-time.Duration(d) * 24 * time.Hour)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		dsar: &fakeDSAR{requests: []dsar.Request{
			{ID: "req-1", Type: dsar.TypeExport, Status: dsar.StatusPending, CreatedAt: daysAgo(1),
				Requester: dsar.Requester{ID: "c1", Name: "Ada Lovelace", Email: "ada@example.com"}},
			{ID: "req-2", Type: dsar.TypeDeletion, Status: dsar.StatusPending, CreatedAt: daysAgo(9),
				Requester: dsar.Requester{ID: "c2", Name: "Alan Turing", Email: "alan@example.com"}},
			{ID: "req-3", Type: dsar.TypeDeletion, Status: dsar.StatusRejected, CreatedAt: daysAgo(20),
				Requester: dsar.Requester{ID: "c3", Name: "Grace Hopper", Email: "grace@example.com"}},
		}},
		rules: &memStore[console.Rule]{items: []console.Rule{
			{ID: "rule-1", Name: "Consent expiry", Regulation: console.RegulationGDPR, Enabled: true},
			{ID: "rule-2", Name: "Opt-out of sale", Regulation: console.RegulationCCPA, Enabled: true},
		}},
		inbox: notify.NewInbox(10),
		audit: audit.NewInMemoryRepository(),
		jwt:   testJWTService(),
	}

	logger := zerolog.Nop()
	viewCfg := view.Config{
		ReloadDelay: time.Hour,
		Notifier:    env.inbox,
		Audit:       env.audit,
		Logger:      logger,
	}

	env.board = dsar.NewBoard(dsar.BoardConfig{
		Source:    env.dsar,
		Processor: env.dsar,
		View:      viewCfg,
		Now:       func() time.Time { return testNow },
		Logger:    logger,
	})
	env.tables = console.NewTables(console.Stores{
		Rules:            env.rules,
		Customers:        &memStore[console.Customer]{},
		GuardianConsents: &memStore[console.GuardianConsent]{},
		PrivacyNotices:   &memStore[console.PrivacyNotice]{},
		TopicPreferences: &memStore[console.TopicPreference]{},
	}, viewCfg)
	t.Cleanup(func() {
		env.board.Close()
		env.tables.Close()
	})

	env.router = api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2026-01-01T00:00:00Z",
		Logger:    zerolog.New(io.Discard),
		JWT:       env.jwt,
		Board:     env.board,
		Tables:    env.tables,
		Inbox:     env.inbox,
		Audit:     env.audit,
	})
	return env
}

func (e *testEnv) load(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.board.Load(ctx))
	for _, v := range e.tables.Views() {
		require.NoError(t, v.Load(ctx))
	}
	e.inbox.Clear()
}

func (e *testEnv) do(t *testing.T, role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		token, _, err := e.jwt.Issue("op_"+role, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodGet, "/v1/ops/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodGet, "/v1/ops/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SystemStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodGet, "/v1/ops/status", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.load(t)
	w = env.do(t, auth.RoleViewer, http.MethodGet, "/v1/ops/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Views, 6)
	assert.Equal(t, dsar.ViewName, status.Views[0].Name)
	assert.Equal(t, 3, status.Views[0].Count)
	assert.True(t, status.Views[0].Loaded)
	assert.Empty(t, status.Resources)
}

func TestRouter_DSAR_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodGet, "/v1/dsar/requests", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_DSAR_ListRequests(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	w := env.do(t, auth.RoleViewer, http.MethodGet, "/v1/dsar/requests?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list models.DSARRequestList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.True(t, list.Loaded)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "req-1", list.Items[0].Request.ID)
	require.NotNil(t, list.Items[0].Recommendation)
	assert.Equal(t, dsar.UrgencyLow, list.Items[0].Recommendation.Urgency)
	require.NotNil(t, list.Items[1].Recommendation)
	assert.Equal(t, dsar.UrgencyHigh, list.Items[1].Recommendation.Urgency)
	assert.Equal(t, 9, list.Items[1].AgeDays)

	w = env.do(t, auth.RoleViewer, http.MethodGet, "/v1/dsar/requests?search=grace", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Nil(t, list.Items[0].Recommendation)
}

func TestRouter_DSAR_RecommendationsAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	w := env.do(t, auth.RoleViewer, http.MethodGet, "/v1/dsar/recommendations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var recs models.ListResponse[dsar.Entry]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	assert.Equal(t, 2, recs.Count)

	w = env.do(t, auth.RoleViewer, http.MethodGet, "/v1/dsar/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats dsar.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[dsar.StatusPending])
	assert.Equal(t, 1, stats.Overdue)
}

func TestRouter_DSAR_Refresh(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, auth.RoleViewer, http.MethodPost, "/v1/dsar/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status view.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Loaded)
	assert.Equal(t, 3, status.Count)
}

func TestRouter_DSAR_AutoProcess(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	w := env.do(t, auth.RoleViewer, http.MethodPost, "/v1/dsar/requests/req-2/auto-process", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, env.dsar.Processed())

	w = env.do(t, auth.RoleAdmin, http.MethodPost, "/v1/dsar/requests/req-2/auto-process", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted models.ActionAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, "req-2", accepted.ID)
	assert.Equal(t, dsar.ActionAutoProcess, accepted.Action)
	assert.Equal(t, []string{"req-2"}, env.dsar.Processed())

	notifications := env.inbox.List(0)
	require.Len(t, notifications, 1)
	assert.Equal(t, notify.LevelInfo, notifications[0].Level)

	entries, err := env.audit.List(context.Background(), audit.ListOptions{RecordID: "req-2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "op_admin", entries[0].Actor)
	assert.Equal(t, audit.OutcomeSucceeded, entries[0].Outcome)
}

func TestRouter_DSAR_AutoProcess_BackendErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"backend failure", &backend.APIError{StatusCode: http.StatusInternalServerError, Message: "processing failed"}, http.StatusBadGateway},
		{"backend not found", &backend.APIError{StatusCode: http.StatusNotFound, Message: "request not found"}, http.StatusNotFound},
		{"transport", fmt.Errorf("%w: connection refused", backend.ErrTransport), http.StatusBadGateway},
		{"invalid input", fmt.Errorf("%w: id is required", backend.ErrInvalidInput), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.load(t)
			env.dsar.processErr = tt.err

			w := env.do(t, auth.RoleService, http.MethodPost, "/v1/dsar/requests/req-1/auto-process", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

			notifications := env.inbox.List(0)
			require.Len(t, notifications, 1)
			assert.Equal(t, notify.LevelBlocking, notifications[0].Level)
		})
	}
}

func TestRouter_DSAR_UpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	w := env.do(t, auth.RoleAdmin, http.MethodPut, "/v1/dsar/requests/req-1/status",
		models.StatusUpdateRequest{Status: dsar.StatusProcessing})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, dsar.StatusProcessing, env.dsar.updates["req-1"])

	w = env.do(t, auth.RoleAdmin, http.MethodPut, "/v1/dsar/requests/req-3/status",
		models.StatusUpdateRequest{Status: dsar.StatusPending})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, auth.RoleAdmin, http.MethodPut, "/v1/dsar/requests/missing/status",
		models.StatusUpdateRequest{Status: dsar.StatusProcessing})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, auth.RoleAdmin, http.MethodPut, "/v1/dsar/requests/req-1/status",
		map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_Resources_List(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	w := env.do(t, auth.RoleViewer, http.MethodGet, "/v1/resources/rules?category=CCPA", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rules models.ListResponse[console.Rule]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	require.Equal(t, 1, rules.Count)
	assert.Equal(t, "rule-2", rules.Items[0].ID)

	w = env.do(t, auth.RoleViewer, http.MethodGet, "/v1/resources/rules/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary console.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.ByCategory[console.RegulationGDPR])

	w = env.do(t, auth.RoleViewer, http.MethodGet, "/v1/resources/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var customers models.ListResponse[console.Customer]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &customers))
	assert.Equal(t, 0, customers.Count)
	assert.NotNil(t, customers.Items)
}

func TestRouter_Resources_Create(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	w := env.do(t, auth.RoleAdmin, http.MethodPost, "/v1/resources/rules",
		console.Rule{Name: "Children's data", Regulation: console.RegulationCOPPA})
	require.Equal(t, http.StatusCreated, w.Code)

	var created console.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Children's data", created.Name)

	w = env.do(t, auth.RoleAdmin, http.MethodPost, "/v1/resources/rules",
		console.Rule{Name: "Unknown", Regulation: "HIPAA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, auth.RoleViewer, http.MethodPost, "/v1/resources/rules",
		console.Rule{Name: "Children's data", Regulation: console.RegulationCOPPA})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_Resources_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	w := env.do(t, auth.RoleAdmin, http.MethodPut, "/v1/resources/rules/rule-1",
		console.Rule{Name: "Consent expiry", Regulation: console.RegulationGDPR})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, auth.RoleAdmin, http.MethodDelete, "/v1/resources/rules/rule-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	env.rules.err = &backend.APIError{StatusCode: http.StatusNotFound, Message: "rule not found"}
	w = env.do(t, auth.RoleAdmin, http.MethodDelete, "/v1/resources/rules/rule-9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Resources_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/resources/rules", bytes.NewReader([]byte("{not json")))
	token, _, err := env.jwt.Issue("op_admin", auth.RoleAdmin)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Notifications(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	env.do(t, auth.RoleAdmin, http.MethodPost, "/v1/dsar/requests/req-1/auto-process", nil)
	env.do(t, auth.RoleAdmin, http.MethodPost, "/v1/dsar/requests/req-2/auto-process", nil)

	w := env.do(t, auth.RoleViewer, http.MethodGet, "/v1/notifications?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list models.ListResponse[notify.Notification]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	w = env.do(t, auth.RoleViewer, http.MethodGet, "/v1/notifications?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Audit(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	env.do(t, auth.RoleAdmin, http.MethodPost, "/v1/dsar/requests/req-1/auto-process", nil)

	w := env.do(t, auth.RoleViewer, http.MethodGet, "/v1/audit", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, auth.RoleAdmin, http.MethodGet, "/v1/audit?resource="+dsar.ViewName, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list models.ListResponse[audit.Entry]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "req-1", list.Items[0].RecordID)
	assert.Equal(t, dsar.ActionAutoProcess, list.Items[0].Action)
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom-request-id-123")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, "custom-request-id-123", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodGet, "/v1/nonexistent", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
