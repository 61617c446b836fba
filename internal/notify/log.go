package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs info at info level, urgent at
// warn level and blocking at error level.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	var event *zerolog.Event
	switch n.Level {
	case LevelUrgent:
		event = l.logger.Warn()
	case LevelBlocking:
		event = l.logger.Error()
	default:
		event = l.logger.Info()
	}
	event.
		Str("notification_id", n.ID).
		Str("level", string(n.Level)).
		Str("source", n.Source).
		Str("title", n.Title).
		Msg(n.Message)
}
