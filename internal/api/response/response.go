// Package response writes console API responses: JSON bodies and RFC 7807
// problems, both tagged with the request id.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/consentdesk/console/internal/api/middleware"
	"github.com/consentdesk/console/internal/api/models"
)

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, "", data)
}

// Created writes a 201 response. location is optional.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	write(w, r, http.StatusCreated, location, data)
}

// Accepted writes a 202 response. location is optional.
func Accepted(w http.ResponseWriter, r *http.Request, location string, data any) {
	write(w, r, http.StatusAccepted, location, data)
}

// NoContent writes a 204 response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	write(w, r, http.StatusNoContent, "", nil)
}

func write(w http.ResponseWriter, r *http.Request, status int, location string, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	if location != "" {
		w.Header().Set("Location", location)
	}
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem writes the standard problem for status.
func Problem(w http.ResponseWriter, r *http.Request, status int, detail string, fields ...models.FieldError) {
	p := models.ProblemFor(status, middleware.GetRequestID(r.Context()), detail)
	p.Instance = r.URL.Path
	p.Errors = fields
	p.Write(w)
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	Problem(w, r, http.StatusBadRequest, detail, fields...)
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusNotFound, detail)
}

// Conflict writes a 409 problem.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusConflict, detail)
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusInternalServerError, detail)
}

// BadGateway writes a 502 problem for a failed backend call.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusBadGateway, detail)
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusServiceUnavailable, detail)
}
