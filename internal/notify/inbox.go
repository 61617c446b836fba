package notify

import (
	"context"
	"sync"
)

// DefaultInboxCapacity is the number of notifications an Inbox keeps.
const DefaultInboxCapacity = 100

// Inbox keeps the most recent notifications in memory so the console API can
// show them. Older notifications are dropped once capacity is reached.
type Inbox struct {
	mu    sync.RWMutex
	items []Notification
	next  int
	full  bool
}

// NewInbox creates an inbox holding up to capacity notifications.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &Inbox{items: make([]Notification, capacity)}
}

// Notify stores n, evicting the oldest notification when full.
func (i *Inbox) Notify(_ context.Context, n Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.items[i.next] = n
	i.next = (i.next + 1) % len(i.items)
	if i.next == 0 {
		i.full = true
	}
}

// Len returns the number of stored notifications.
func (i *Inbox) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lenLocked()
}

func (i *Inbox) lenLocked() int {
	if i.full {
		return len(i.items)
	}
	return i.next
}

// List returns up to limit notifications, newest first. A limit of zero or
// less returns all of them.
func (i *Inbox) List(limit int) []Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n := i.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Notification, 0, limit)
	idx := i.next
	for len(out) < limit {
		idx = (idx - 1 + len(i.items)) % len(i.items)
		out = append(out, i.items[idx])
	}
	return out
}

// Clear removes every stored notification.
func (i *Inbox) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.items = make([]Notification, len(i.items))
	i.next = 0
	i.full = false
}
