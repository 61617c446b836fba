// Package config loads console configuration from defaults, an optional
// YAML or JSON file, and CONSOLE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/consentdesk/console/internal/database"
	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. CONSOLE_BACKEND_BASE_URL.
const EnvPrefix = "CONSOLE"

// Config is the root configuration.
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Log           LogConfig           `mapstructure:"log"`
	Server        ServerConfig        `mapstructure:"server"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Views         ViewsConfig         `mapstructure:"views"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Database      database.Config     `mapstructure:"database"`
	Telemetry     telemetry.Config    `mapstructure:"telemetry"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// ServerConfig controls the console HTTP API.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimit is requests per minute per operator; ActionRateLimit applies
	// to mutating routes.
	RateLimit       int `mapstructure:"rate_limit"`
	ActionRateLimit int `mapstructure:"action_rate_limit"`

	// RequireTLS rejects requests that did not arrive over HTTPS.
	RequireTLS bool `mapstructure:"require_tls"`
}

// BackendConfig points at the consent backend.
type BackendConfig struct {
	// BaseURL includes the API prefix, e.g. https://consent.internal/api.
	BaseURL string `mapstructure:"base_url"`

	// Token is a static bearer token. Ignored when ServiceToken is configured.
	Token string `mapstructure:"token"`

	ServiceToken ServiceTokenConfig `mapstructure:"service_token"`

	// Timeout bounds each HTTP call. Zero leaves calls unbounded.
	Timeout time.Duration `mapstructure:"timeout"`

	// ReadRetries enables retries for GET calls. Zero disables them.
	ReadRetries uint64 `mapstructure:"read_retries"`

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// ServiceTokenConfig configures minted service JWTs for the backend.
type ServiceTokenConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	Subject    string        `mapstructure:"subject"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether service tokens should be minted.
func (s ServiceTokenConfig) Enabled() bool {
	return s.SigningKey != ""
}

// AuthConfig validates operator tokens on the console API.
type AuthConfig struct {
	SigningKey string `mapstructure:"signing_key"`
	Issuer     string `mapstructure:"issuer"`
	Audience   string `mapstructure:"audience"`
}

// ViewsConfig tunes every view controller.
type ViewsConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	ReloadDelay     time.Duration `mapstructure:"reload_delay"`
	LoadTimeout     time.Duration `mapstructure:"load_timeout"`
	AutoRefresh     bool          `mapstructure:"auto_refresh"`
}

// NotificationsConfig controls where notifications go.
type NotificationsConfig struct {
	InboxSize int          `mapstructure:"inbox_size"`
	PubSub    PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig names a Pub/Sub topic or subscription.
type PubSubConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ProjectID    string `mapstructure:"project_id"`
	Topic        string `mapstructure:"topic"`
	Subscription string `mapstructure:"subscription"`
}

// WorkerConfig controls the background worker.
type WorkerConfig struct {
	Port   int          `mapstructure:"port"`
	Sweep  SweepConfig  `mapstructure:"sweep"`
	PubSub PubSubConfig `mapstructure:"pubsub"`
}

// SweepConfig controls the DSAR auto-processing sweep.
type SweepConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	MinUrgency  string        `mapstructure:"min_urgency"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	db := database.DefaultConfig()

	defaults := map[string]any{
		"environment": "development",

		"log.level":  "info",
		"log.format": "json",

		"server.port":              8080,
		"server.read_timeout":      "15s",
		"server.write_timeout":     "15s",
		"server.idle_timeout":      "60s",
		"server.shutdown_timeout":  "30s",
		"server.rate_limit":        120,
		"server.action_rate_limit": 20,
		"server.require_tls":       false,

		"backend.base_url":                  "http://localhost:3000/api",
		"backend.token":                     "",
		"backend.timeout":                   "0s",
		"backend.read_retries":              0,
		"backend.breaker_timeout":           "30s",
		"backend.service_token.signing_key": "",
		"backend.service_token.issuer":      "consent-console",
		"backend.service_token.audience":    "consent-backend",
		"backend.service_token.subject":     "console",
		"backend.service_token.ttl":         "15m",

		"auth.signing_key": "",
		"auth.issuer":      "consent-console",
		"auth.audience":    "consent-console",

		"views.refresh_interval": "30s",
		"views.reload_delay":     "1s",
		"views.load_timeout":     "0s",
		"views.auto_refresh":     true,

		"notifications.inbox_size":          100,
		"notifications.pubsub.enabled":      false,
		"notifications.pubsub.project_id":   "",
		"notifications.pubsub.topic":        "console-notifications",
		"notifications.pubsub.subscription": "",

		"worker.port":                8081,
		"worker.sweep.enabled":       false,
		"worker.sweep.interval":      "15m",
		"worker.sweep.min_urgency":   string(dsar.UrgencyHigh),
		"worker.sweep.concurrency":   3,
		"worker.sweep.timeout":       "5m",
		"worker.pubsub.enabled":      false,
		"worker.pubsub.project_id":   "",
		"worker.pubsub.topic":        "",
		"worker.pubsub.subscription": "console-worker",

		"database.enabled":           false,
		"database.host":              db.Host,
		"database.port":              db.Port,
		"database.user":              db.User,
		"database.password":          db.Password,
		"database.name":              db.Database,
		"database.ssl_mode":          db.SSLMode,
		"database.max_open_conns":    db.MaxOpenConns,
		"database.max_idle_conns":    db.MaxIdleConns,
		"database.conn_max_lifetime": db.ConnMaxLifetime.String(),

		"telemetry.enabled":         false,
		"telemetry.otlp_endpoint":   "localhost:4317",
		"telemetry.insecure":        true,
		"telemetry.sample_ratio":    1.0,
		"telemetry.metric_interval": "15s",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Load reads configuration. path may be empty, in which case console.yaml
// is looked up in the working directory and /etc/consentdesk, and a missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("console")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/consentdesk")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Validate checks ranges and fills zero values with defaults.
func (c *Config) Validate() error {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "":
		c.Log.Level = "info"
	case "trace", "debug", "info", "warn", "error":
		c.Log.Level = level
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "":
		c.Log.Format = "json"
	case "json", "console":
		c.Log.Format = strings.ToLower(c.Log.Format)
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 120
	}
	if c.Server.ActionRateLimit <= 0 {
		c.Server.ActionRateLimit = 20
	}

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative, got %s", c.Backend.Timeout)
	}

	if c.Views.RefreshInterval <= 0 {
		c.Views.RefreshInterval = 30 * time.Second
	}
	if c.Views.ReloadDelay <= 0 {
		c.Views.ReloadDelay = time.Second
	}
	if c.Views.LoadTimeout < 0 {
		return fmt.Errorf("views.load_timeout must not be negative, got %s", c.Views.LoadTimeout)
	}

	if c.Notifications.InboxSize <= 0 {
		c.Notifications.InboxSize = 100
	}
	if c.Notifications.PubSub.Enabled && (c.Notifications.PubSub.ProjectID == "" || c.Notifications.PubSub.Topic == "") {
		return errors.New("notifications.pubsub requires project_id and topic")
	}

	if _, err := dsar.ParseUrgency(c.Worker.Sweep.MinUrgency); err != nil {
		return fmt.Errorf("worker.sweep.min_urgency: %w", err)
	}
	if c.Worker.Sweep.Concurrency <= 0 {
		c.Worker.Sweep.Concurrency = 3
	}
	if c.Worker.Sweep.Interval <= 0 {
		c.Worker.Sweep.Interval = 15 * time.Minute
	}
	if c.Worker.PubSub.Enabled && (c.Worker.PubSub.ProjectID == "" || c.Worker.PubSub.Subscription == "") {
		return errors.New("worker.pubsub requires project_id and subscription")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	return nil
}

// RequireOperatorAuth checks the settings the console API needs to
// authenticate operators.
func (c *Config) RequireOperatorAuth() error {
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required to serve the console API")
	}
	return nil
}

// RequireBackendCredentials checks that backend calls can be authenticated.
func (c *Config) RequireBackendCredentials() error {
	if c.Backend.Token == "" && !c.Backend.ServiceToken.Enabled() {
		return errors.New("backend.token or backend.service_token.signing_key is required")
	}
	return nil
}
