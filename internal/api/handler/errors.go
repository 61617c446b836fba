package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/api/response"
	"github.com/consentdesk/console/internal/backend"
	"github.com/consentdesk/console/internal/console"
	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/view"
)

// maxBodyBytes caps request bodies accepted by mutating endpoints.
const maxBodyBytes = 1 << 20

// decodeJSON decodes the request body into dst. It writes a 400 response and
// returns false when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}
	return true
}

// writeError maps domain and backend errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, console.ErrValidation),
		errors.Is(err, backend.ErrInvalidInput),
		errors.Is(err, dsar.ErrInvalidRequest):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, dsar.ErrRequestNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, view.ErrActionInFlight),
		errors.Is(err, dsar.ErrInvalidTransition):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, backend.ErrTransport):
		response.BadGateway(w, r, "consent backend is unreachable")
	default:
		if apiErr, ok := backend.IsAPIError(err); ok {
			if apiErr.StatusCode == http.StatusNotFound {
				response.NotFound(w, r, apiErr.Message)
				return
			}
			response.BadGateway(w, r, apiErr.Message)
			return
		}
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
