package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/api/models"
	"github.com/consentdesk/console/internal/api/response"
	"github.com/consentdesk/console/internal/console"
)

// ResourceHandler serves one admin resource table.
type ResourceHandler[T console.Record] struct {
	table  *console.Table[T]
	logger zerolog.Logger
}

// NewResourceHandler creates a handler for table.
func NewResourceHandler[T console.Record](table *console.Table[T], logger zerolog.Logger) *ResourceHandler[T] {
	return &ResourceHandler[T]{
		table:  table,
		logger: logger.With().Str("resource", table.Name()).Logger(),
	}
}

// Kind returns the resource kind used in the URL.
func (h *ResourceHandler[T]) Kind() string {
	return h.table.Name()
}

// List handles GET /v1/resources/{kind} - filtered by ?search= and ?category=.
func (h *ResourceHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	response.JSON(w, r, http.StatusOK, models.NewListResponse(h.table.Query(q.Get("search"), q.Get("category"))))
}

// Stats handles GET /v1/resources/{kind}/stats.
func (h *ResourceHandler[T]) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.table.Summary())
}

// Create handles POST /v1/resources/{kind}.
func (h *ResourceHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	var input T
	if !decodeJSON(w, r, &input) {
		return
	}

	created, err := h.table.Create(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, r, "", created)
}

// Update handles PUT /v1/resources/{kind}/{id}.
func (h *ResourceHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	var input T
	if !decodeJSON(w, r, &input) {
		return
	}

	updated, err := h.table.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, updated)
}

// Delete handles DELETE /v1/resources/{kind}/{id}.
func (h *ResourceHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.table.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}

// Routes mounts the read endpoints on r and the mutating endpoints on the
// router returned by mutating.
func (h *ResourceHandler[T]) Routes(r chi.Router, mutating func(chi.Router) chi.Router) {
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)

	m := mutating(r)
	m.Post("/", h.Create)
	m.Put("/{id}", h.Update)
	m.Delete("/{id}", h.Delete)
}
