// Package notify carries user-facing notifications raised by views and
// background jobs to the operator.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notification.
type Level string

// Notification levels.
const (
	// LevelInfo confirms a routine outcome such as a successful load.
	LevelInfo Level = "info"
	// LevelUrgent reports a failed background load; the view keeps its last data.
	LevelUrgent Level = "urgent"
	// LevelBlocking reports a failed operator action that needs attention.
	LevelBlocking Level = "blocking"
)

// Notification is a single message for the operator.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Source  string    `json:"source"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// New builds a notification stamped with a fresh id and the current time.
func New(level Level, source, title, message string) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
		At:      time.Now().UTC(),
	}
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use and must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

type multi []Notifier

func (m multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}

// Multi fans a notification out to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) {})
