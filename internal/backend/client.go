package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/resilience"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the backend API root, including any "/api" prefix.
	BaseURL string

	// Credentials supplies the bearer token for every call.
	Credentials Credentials

	// HTTPClient is the resilient transport. Default: a client named "backend"
	// with retries disabled.
	HTTPClient *resilience.Client

	// Registry records per-resource health when set.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client calls the consent backend.
type Client struct {
	baseURL     string
	credentials Credentials
	httpClient  *resilience.Client
	registry    *resilience.Registry
	logger      zerolog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing backend base URL: %w", err)
	}
	if cfg.Credentials == nil {
		return nil, ErrMissingCredentials
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = resilience.NewClient(resilience.DefaultClientConfig("backend"))
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		credentials: cfg.Credentials,
		httpClient:  cfg.HTTPClient,
		registry:    cfg.Registry,
		logger:      cfg.Logger.With().Str("component", "backend_client").Logger(),
	}, nil
}

// Track registers resource with the health registry.
func (c *Client) Track(resource string) {
	if c.registry != nil {
		c.registry.Register(resource, c.httpClient)
	}
}

// List fetches every record of resource into out.
func (c *Client) List(ctx context.Context, resource string, out any) error {
	return c.do(ctx, http.MethodGet, resource, c.url(resource), nil, out)
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, resource, id string, out any) error {
	return c.do(ctx, http.MethodGet, resource, c.url(resource, id), nil, out)
}

// Create posts a new record.
func (c *Client) Create(ctx context.Context, resource string, in, out any) error {
	return c.do(ctx, http.MethodPost, resource, c.url(resource), in, out)
}

// Update replaces a record.
func (c *Client) Update(ctx context.Context, resource, id string, in, out any) error {
	return c.do(ctx, http.MethodPut, resource, c.url(resource, id), in, out)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	return c.do(ctx, http.MethodDelete, resource, c.url(resource, id), nil, nil)
}

// Action posts to a record sub-resource such as "auto-process".
func (c *Client) Action(ctx context.Context, resource, id, action string, in, out any) error {
	return c.do(ctx, http.MethodPost, resource, c.url(resource, id, action), in, out)
}

func (c *Client) url(resource string, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteByte('/')
	b.WriteString(strings.Trim(resource, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func (c *Client) do(ctx context.Context, method, resource, target string, in, out any) error {
	err := c.roundTrip(ctx, method, target, in, out)
	c.observe(resource, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, target string, in, out any) error {
	token, err := c.credentials.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolving credentials: %w", err)
	}

	body := io.Reader(http.NoBody)
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("method", method).
			Str("url", target).
			Dur("duration", time.Since(start)).
			Msg("backend request failed")
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, target, err)
	}
	defer resp.Body.Close()

	_, err = decodeEnvelope(resp, out)

	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Bool("success", err == nil).
		Msg("backend request")
	return err
}

// observe records the call outcome. A 4xx answer from the backend still
// proves the resource is reachable and counts as healthy.
func (c *Client) observe(resource string, err error) {
	if c.registry == nil {
		return
	}
	if apiErr, ok := IsAPIError(err); ok && apiErr.StatusCode < http.StatusInternalServerError {
		c.registry.RecordSuccess(resource)
		return
	}
	c.registry.Observe(resource, err)
}
