package audit

import (
	"context"
	"sync"
)

// InMemoryRepository keeps entries in process memory.
// This is intended for tests and single-instance deployments without a
// database. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Record stores a copy of entry.
func (r *InMemoryRepository) Record(_ context.Context, entry *Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *entry
	r.entries = append(r.entries, &cpy)
	return nil
}

// List returns matching entries, newest first.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := opts.limit()
	out := make([]*Entry, 0)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		if opts.Resource != "" && e.Resource != opts.Resource {
			continue
		}
		if opts.RecordID != "" && e.RecordID != opts.RecordID {
			continue
		}
		cpy := *e
		out = append(out, &cpy)
	}
	return out, nil
}
