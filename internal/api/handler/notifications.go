package handler

import (
	"net/http"
	"strconv"

	"github.com/consentdesk/console/internal/api/models"
	"github.com/consentdesk/console/internal/api/response"
	"github.com/consentdesk/console/internal/notify"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 500
)

// NotificationHandler serves the operator notification inbox.
type NotificationHandler struct {
	inbox *notify.Inbox
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(inbox *notify.Inbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List handles GET /v1/notifications - newest first, bounded by ?limit=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultNotificationLimit, maxNotificationLimit)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewListResponse(h.inbox.List(limit)))
}

// parseLimit reads ?limit=. It writes a 400 response and returns false when
// the value is not a positive integer.
func parseLimit(w http.ResponseWriter, r *http.Request, def, maxLimit int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		response.BadRequest(w, r, "limit must be a positive integer", []models.FieldError{
			{Field: "limit", Message: "must be a positive integer"},
		})
		return 0, false
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, true
}
