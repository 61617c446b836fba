package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/api/models"
	"github.com/consentdesk/console/internal/api/response"
	"github.com/consentdesk/console/internal/dsar"
)

// DSARHandler handles the DSAR automation endpoints.
type DSARHandler struct {
	board  *dsar.Board
	logger zerolog.Logger
}

// NewDSARHandler creates a new DSARHandler.
func NewDSARHandler(board *dsar.Board, logger zerolog.Logger) *DSARHandler {
	return &DSARHandler{
		board:  board,
		logger: logger,
	}
}

// ListRequests handles GET /v1/dsar/requests - cached requests with their
// recommendations, filtered by ?search= and ?status=.
func (h *DSARHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := h.board.Entries(dsar.Query(q.Get("search"), q.Get("status")))
	response.JSON(w, r, http.StatusOK, models.NewDSARRequestList(entries, h.board.Snapshot()))
}

// ListRecommendations handles GET /v1/dsar/recommendations.
func (h *DSARHandler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewListResponse(h.board.Recommendations()))
}

// Stats handles GET /v1/dsar/stats.
func (h *DSARHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.board.Stats())
}

// Refresh handles POST /v1/dsar/refresh - reload requests from the backend.
func (h *DSARHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.board.Load(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, h.board.Status())
}

// AutoProcess handles POST /v1/dsar/requests/{id}/auto-process.
func (h *DSARHandler) AutoProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.board.Process(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("operator", GetOperator(r.Context())).
		Str("dsar_id", id).
		Msg("request auto-processed")

	response.Accepted(w, r, "", models.ActionAccepted{
		ID:     id,
		Action: dsar.ActionAutoProcess,
		Status: "completed",
	})
}

// UpdateStatus handles PUT /v1/dsar/requests/{id}/status.
func (h *DSARHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input models.StatusUpdateRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if !input.Status.Valid() {
		response.BadRequest(w, r, "unknown status", []models.FieldError{
			{Field: "status", Message: "must be one of pending, processing, completed, rejected"},
		})
		return
	}

	if err := h.board.Transition(r.Context(), id, input.Status); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("operator", GetOperator(r.Context())).
		Str("dsar_id", id).
		Str("status", string(input.Status)).
		Msg("request status updated")

	response.Accepted(w, r, "", models.ActionAccepted{
		ID:     id,
		Action: "status",
		Status: string(input.Status),
	})
}
