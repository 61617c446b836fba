package audit

import "context"

// ListOptions filters audit entries.
type ListOptions struct {
	Resource string
	RecordID string
	Limit    int
}

const defaultListLimit = 50

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return defaultListLimit
	}
	return o.Limit
}

// Repository persists audit entries.
type Repository interface {
	// Record stores an entry.
	Record(ctx context.Context, entry *Entry) error

	// List returns entries matching opts, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Entry, error)
}
