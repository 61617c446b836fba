package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentdesk/console/internal/app"
	"github.com/consentdesk/console/internal/auth"
	"github.com/consentdesk/console/internal/config"
	"github.com/consentdesk/console/internal/notify"
)

type fakeBackend struct {
	mu      sync.Mutex
	tokens  []string
	paths   []string
	dsarRaw string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokens = append(f.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	data := "[]"
	if r.URL.Path == "/api/dsar/requests" {
		data = f.dsarRaw
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true,"data":` + data + `}`))
}

func (f *fakeBackend) Tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func newConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Backend: config.BackendConfig{BaseURL: baseURL, Token: "static-token"},
		Views:   config.ViewsConfig{ReloadDelay: time.Hour},
		Worker: config.WorkerConfig{
			Sweep: config.SweepConfig{MinUrgency: "high"},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newServer(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	created := time.Now().Add(-10 * 24 * time.Hour).UTC().Format(time.RFC3339)
	fb := &fakeBackend{dsarRaw: `[{"id":"req-1","requestType":"export","status":"pending","createdAt":"` + created +
		`","requester":{"id":"c1","name":"Ada","email":"ada@example.com"}}]`}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return fb, srv
}

func TestNew_RequiresCredentials(t *testing.T) {
	cfg := newConfig(t, "http://localhost:3000/api")
	cfg.Backend.Token = ""

	_, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.token")
}

func TestNew_LoadsEveryView(t *testing.T) {
	fb, srv := newServer(t)
	cfg := newConfig(t, srv.URL+"/api")

	var mu sync.Mutex
	var seen []notify.Notification
	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{
		Notifier: notify.NotifierFunc(func(_ context.Context, n notify.Notification) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, n)
		}),
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NoError(t, a.LoadAll(context.Background()))

	assert.Len(t, a.Views(), 6)
	require.Len(t, a.Board.Items(), 1)
	assert.Equal(t, "req-1", a.Board.Items()[0].ID)
	require.Len(t, a.Board.Recommendations(), 1)

	for _, token := range fb.Tokens() {
		assert.Equal(t, "static-token", token)
	}

	health := a.Registry.GetAllHealth()
	assert.Len(t, health, 6)
	for _, h := range health {
		assert.True(t, h.IsHealthy(), h.Name)
		assert.NotNil(t, h.LastSuccessAt, h.Name)
	}

	assert.Equal(t, 6, a.Inbox.Len())
	mu.Lock()
	assert.Len(t, seen, 6)
	mu.Unlock()
}

func TestNew_MintsServiceTokens(t *testing.T) {
	fb, srv := newServer(t)
	cfg := newConfig(t, srv.URL+"/api")
	cfg.Backend.ServiceToken = config.ServiceTokenConfig{
		SigningKey: "service-signing-key-for-tests",
		Issuer:     "consent-console",
		Audience:   "consent-backend",
		Subject:    "console",
		TTL:        time.Minute * 5,
	}

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NoError(t, a.Board.Load(context.Background()))

	tokens := fb.Tokens()
	require.NotEmpty(t, tokens)

	verifier := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "service-signing-key-for-tests",
		Issuer:     "consent-console",
		Audience:   "consent-backend",
	})
	claims, err := verifier.Validate(tokens[0])
	require.NoError(t, err)
	assert.Equal(t, "console", claims.Subject)
	assert.Equal(t, auth.RoleService, claims.Role)
}

func TestNew_BackendFailureKeepsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "database down"})
	}))
	t.Cleanup(srv.Close)

	a, err := app.New(context.Background(), newConfig(t, srv.URL), zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	err = a.LoadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database down")
	assert.Equal(t, "database down", a.Board.Status().Error)
}
