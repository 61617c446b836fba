// Package dsar models data subject access requests and the heuristic that
// decides how urgently a pending request should be processed.
package dsar

import (
	"errors"
	"fmt"
	"time"
)

// Predefined errors for request handling.
var (
	// ErrInvalidRequest is returned when a request record violates its invariants.
	ErrInvalidRequest = errors.New("invalid dsar request")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the request's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRequestNotFound is returned when a request id is not in the loaded collection.
	ErrRequestNotFound = errors.New("dsar request not found")
)

// RequestType is the kind of data subject request.
type RequestType string

// Request type values.
const (
	TypeExport        RequestType = "export"
	TypeDeletion      RequestType = "deletion"
	TypePortability   RequestType = "portability"
	TypeRectification RequestType = "rectification"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	switch t {
	case TypeExport, TypeDeletion, TypePortability, TypeRectification:
		return true
	}
	return false
}

// Status is the processing status of a request.
type Status string

// Status values.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusRejected},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Requester identifies the data subject who submitted the request.
// It is immutable once the request is created.
type Requester struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProcessingResult holds the kind-specific outcome of a completed request.
type ProcessingResult struct {
	ExportSize           string `json:"exportSize,omitempty"`
	DeletionConfirmation string `json:"deletionConfirmation,omitempty"`
	Exported             *bool  `json:"dataExported,omitempty"`
	Deleted              *bool  `json:"dataDeleted,omitempty"`
}

// Request is a data subject access request as served by the backend.
type Request struct {
	ID          string            `json:"id"`
	Type        RequestType       `json:"requestType"`
	Status      Status            `json:"status"`
	Requester   Requester         `json:"requester"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Result      *ProcessingResult `json:"processingResult,omitempty"`
}

// Validate checks the record invariants: completedAt is present exactly when
// the request is completed, and a processing result only on completed requests.
func (r Request) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRequest)
	case !r.Type.Valid():
		return fmt.Errorf("%w: unknown request type %q", ErrInvalidRequest, r.Type)
	case !r.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, r.Status)
	case r.CreatedAt.IsZero():
		return fmt.Errorf("%w: createdAt is required", ErrInvalidRequest)
	case r.Status == StatusCompleted && r.CompletedAt == nil:
		return fmt.Errorf("%w: completed request %s has no completedAt", ErrInvalidRequest, r.ID)
	case r.Status != StatusCompleted && r.CompletedAt != nil:
		return fmt.Errorf("%w: %s request %s has completedAt", ErrInvalidRequest, r.Status, r.ID)
	case r.Status != StatusCompleted && r.Result != nil:
		return fmt.Errorf("%w: %s request %s has a processing result", ErrInvalidRequest, r.Status, r.ID)
	}
	return nil
}

// SearchFields returns the text fields matched by free-text search.
func (r Request) SearchFields() []string {
	return []string{r.ID, r.Requester.Name, r.Requester.Email}
}

// Category returns the value matched by the status filter.
func (r Request) Category() string {
	return string(r.Status)
}
