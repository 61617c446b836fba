package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/api/models"
	"github.com/consentdesk/console/internal/api/response"
	"github.com/consentdesk/console/internal/audit"
)

const maxAuditLimit = 200

// AuditHandler serves the action audit trail.
type AuditHandler struct {
	repo   audit.Repository
	logger zerolog.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(repo audit.Repository, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{repo: repo, logger: logger}
}

// List handles GET /v1/audit - filtered by ?resource=, ?recordId= and ?limit=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 0, maxAuditLimit)
	if !ok {
		return
	}

	q := r.URL.Query()
	entries, err := h.repo.List(r.Context(), audit.ListOptions{
		Resource: q.Get("resource"),
		RecordID: q.Get("recordId"),
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("listing audit entries")
		response.InternalError(w, r, "failed to list audit entries")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewListResponse(entries))
}
