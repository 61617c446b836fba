// Package backend is the client for the consent backend REST API.
//
// Every response is wrapped in an envelope:
//
//	{"success": true, "data": ..., "message": "...", "count": 3}
//
// A call succeeds only on a 2xx status with success=true. Anything else is
// reported as an *APIError carrying the backend's message, or a generic
// fallback when the backend gave none.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// FallbackMessage is reported when a failed response carries no message.
const FallbackMessage = "request failed"

// maxBodySize caps the response body read from the backend.
const maxBodySize = 16 << 20

// Predefined errors for backend calls.
var (
	// ErrTransport wraps failures to reach the backend at all.
	ErrTransport = errors.New("backend unreachable")

	// ErrInvalidInput is returned when local validation rejects a request
	// before it is sent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingCredentials is returned when no token is available.
	ErrMissingCredentials = errors.New("missing backend credentials")
)

// Envelope is the response wrapper used by every backend endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Count   *int            `json:"count,omitempty"`
}

// APIError is a failure reported by the backend.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Message is the backend message, or FallbackMessage.
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsAPIError reports whether err is an *APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// decodeEnvelope reads resp and decodes the envelope data into out. out may
// be nil when the caller does not need the payload.
func decodeEnvelope(resp *http.Response, out any) (*Envelope, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: statusMessage(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}

	if !env.Success || resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = FallbackMessage
		}
		return &env, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &env, fmt.Errorf("decoding response data: %w", err)
		}
	}

	return &env, nil
}

func statusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return FallbackMessage
}
