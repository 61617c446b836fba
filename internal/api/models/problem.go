package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem types served by the console.
const (
	ProblemTypeValidation       = "https://problems.consentdesk.io/validation-error"
	ProblemTypeUnauthorized     = "https://problems.consentdesk.io/unauthorized"
	ProblemTypeForbidden        = "https://problems.consentdesk.io/forbidden"
	ProblemTypeNotFound         = "https://problems.consentdesk.io/not-found"
	ProblemTypeConflict         = "https://problems.consentdesk.io/conflict"
	ProblemTypeTooManyRequests  = "https://problems.consentdesk.io/too-many-requests"
	ProblemTypeInternal         = "https://problems.consentdesk.io/internal-error"
	ProblemTypeBadGateway       = "https://problems.consentdesk.io/backend-error"
	ProblemTypeUnavailable      = "https://problems.consentdesk.io/service-unavailable"
	ProblemTypeTLSRequired      = "https://problems.consentdesk.io/tls-required"
	ProblemTypeUnsupportedMedia = "https://problems.consentdesk.io/unsupported-media-type"
)

type problemKind struct {
	typ   string
	title string
}

var problemKinds = map[int]problemKind{
	http.StatusBadRequest:           {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:         {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusForbidden:            {ProblemTypeForbidden, "Forbidden"},
	http.StatusNotFound:             {ProblemTypeNotFound, "Not found"},
	http.StatusConflict:             {ProblemTypeConflict, "Conflict"},
	http.StatusUnsupportedMediaType: {ProblemTypeUnsupportedMedia, "Unsupported media type"},
	http.StatusTooManyRequests:      {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError:  {ProblemTypeInternal, "Internal server error"},
	http.StatusBadGateway:           {ProblemTypeBadGateway, "Backend error"},
	http.StatusServiceUnavailable:   {ProblemTypeUnavailable, "Service unavailable"},
}

// NewProblem creates a Problem with an explicit type and title.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// ProblemFor creates the console's standard problem for an HTTP status.
// Statuses without a console problem type use about:blank and the status
// text as title.
func ProblemFor(status int, traceID, detail string) *Problem {
	kind, ok := problemKinds[status]
	if !ok {
		kind = problemKind{typ: "about:blank", title: http.StatusText(status)}
	}
	p := NewProblem(kind.typ, kind.title, status, traceID)
	p.Detail = detail
	return p
}

// Write sends the problem. The trace id doubles as the X-Request-Id header.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
