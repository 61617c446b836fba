package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentdesk/console/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "http://localhost:3000/api", cfg.Backend.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.Backend.Timeout)
	assert.Equal(t, uint64(0), cfg.Backend.ReadRetries)
	assert.Equal(t, 30*time.Second, cfg.Views.RefreshInterval)
	assert.Equal(t, time.Second, cfg.Views.ReloadDelay)
	assert.True(t, cfg.Views.AutoRefresh)
	assert.Equal(t, 100, cfg.Notifications.InboxSize)
	assert.Equal(t, "high", cfg.Worker.Sweep.MinUrgency)
	assert.Equal(t, 3, cfg.Worker.Sweep.Concurrency)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 15*time.Second, cfg.Telemetry.MetricInterval)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: DEBUG
  format: console
backend:
  base_url: https://consent.example.com/api
  token: static-token
  timeout: 10s
  read_retries: 2
views:
  refresh_interval: 1m
  reload_delay: 250ms
worker:
  sweep:
    enabled: true
    min_urgency: medium
    concurrency: 5
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "https://consent.example.com/api", cfg.Backend.BaseURL)
	assert.Equal(t, "static-token", cfg.Backend.Token)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, uint64(2), cfg.Backend.ReadRetries)
	assert.Equal(t, time.Minute, cfg.Views.RefreshInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Views.ReloadDelay)
	assert.True(t, cfg.Worker.Sweep.Enabled)
	assert.Equal(t, "medium", cfg.Worker.Sweep.MinUrgency)
	assert.Equal(t, 5, cfg.Worker.Sweep.Concurrency)
	assert.NoError(t, cfg.RequireBackendCredentials())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("CONSOLE_SERVER_PORT", "9100")
	t.Setenv("CONSOLE_BACKEND_BASE_URL", "https://env.example.com/api")
	t.Setenv("CONSOLE_AUTH_SIGNING_KEY", "operator-secret")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "https://env.example.com/api", cfg.Backend.BaseURL)
	assert.NoError(t, cfg.RequireOperatorAuth())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad port", "server:\n  port: 70000\n", "server.port must be between 1 and 65535"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"relative base url", "backend:\n  base_url: /api\n", "backend.base_url must be an absolute URL"},
		{"bad urgency", "worker:\n  sweep:\n    min_urgency: critical\n", "worker.sweep.min_urgency"},
		{"pubsub without project", "notifications:\n  pubsub:\n    enabled: true\n", "notifications.pubsub requires project_id"},
		{"database port", "database:\n  enabled: true\n  port: 0\n", "database port 0 out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_NormalizesZeroValues(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Backend: config.BackendConfig{BaseURL: "http://backend:3000/api"},
		Worker:  config.WorkerConfig{Sweep: config.SweepConfig{MinUrgency: "low"}},
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Views.RefreshInterval)
	assert.Equal(t, time.Second, cfg.Views.ReloadDelay)
	assert.Equal(t, 100, cfg.Notifications.InboxSize)
	assert.Equal(t, 3, cfg.Worker.Sweep.Concurrency)
}

func TestRequireCredentials(t *testing.T) {
	cfg := &config.Config{}
	assert.Error(t, cfg.RequireOperatorAuth())
	assert.Error(t, cfg.RequireBackendCredentials())

	cfg.Backend.ServiceToken.SigningKey = "svc"
	assert.NoError(t, cfg.RequireBackendCredentials())
}
