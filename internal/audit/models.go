// Package audit records the outcome of every mutating action operators
// trigger from the console.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEntry is returned when an entry is missing required fields.
var ErrInvalidEntry = errors.New("invalid audit entry")

// Outcome is the result of an audited action.
type Outcome string

// Outcome values.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// SystemActor is recorded when no operator is attached to the context.
const SystemActor = "system"

// Entry is one audited action.
type Entry struct {
	ID       string    `json:"id"`
	Resource string    `json:"resource"`
	RecordID string    `json:"recordId"`
	Action   string    `json:"action"`
	Outcome  Outcome   `json:"outcome"`
	Error    string    `json:"error,omitempty"`
	Actor    string    `json:"actor"`
	At       time.Time `json:"at"`
}

// NewEntry builds an entry for an action on resource/recordID. A non-nil err
// marks the entry failed.
func NewEntry(ctx context.Context, resource, recordID, action string, err error) *Entry {
	e := &Entry{
		ID:       uuid.NewString(),
		Resource: resource,
		RecordID: recordID,
		Action:   action,
		Outcome:  OutcomeSucceeded,
		Actor:    ActorFromContext(ctx),
		At:       time.Now().UTC(),
	}
	if err != nil {
		e.Outcome = OutcomeFailed
		e.Error = err.Error()
	}
	return e
}

func (e *Entry) validate() error {
	if e.ID == "" || e.Resource == "" || e.Action == "" {
		return ErrInvalidEntry
	}
	return nil
}

type actorKey struct{}

// WithActor attaches the acting operator to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the operator attached to ctx, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
