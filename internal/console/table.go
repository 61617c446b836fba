package console

import (
	"context"
	"time"

	"github.com/consentdesk/console/internal/view"
)

// Record is implemented by every admin resource type.
type Record interface {
	view.Searchable
	Validate() error
}

// Store persists one resource collection.
type Store[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Mutation action names recorded in the audit trail.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// newRecordKey holds the in-flight slot for creates, which have no id yet.
const newRecordKey = "new"

// Table is the cached, filterable view of one admin resource. Mutations run
// as controller actions and reload the table on success.
type Table[T Record] struct {
	*view.Controller[T]

	store Store[T]
}

// NewTable creates a table named kind over store.
func NewTable[T Record](kind string, store Store[T], cfg view.Config) *Table[T] {
	cfg.Name = kind
	return &Table[T]{
		Controller: view.NewController[T](store, cfg),
		store:      store,
	}
}

// Query returns the cached records matching search and category.
func (t *Table[T]) Query(search, category string) []T {
	return t.Visible(view.Match[T](search, category))
}

// Summary counts the cached records by category.
func (t *Table[T]) Summary() Summary {
	return Summarize(t.Items())
}

// Create validates item and creates it.
func (t *Table[T]) Create(ctx context.Context, item T) (T, error) {
	var created T
	if err := item.Validate(); err != nil {
		return created, err
	}
	err := t.TriggerAction(ctx, newRecordKey, ActionCreate, func(ctx context.Context) error {
		var err error
		created, err = t.store.Create(ctx, item)
		return err
	})
	return created, err
}

// Update validates item and replaces record id with it.
func (t *Table[T]) Update(ctx context.Context, id string, item T) (T, error) {
	var updated T
	if id == "" {
		return updated, invalid("id is required")
	}
	if err := item.Validate(); err != nil {
		return updated, err
	}
	err := t.TriggerAction(ctx, id, ActionUpdate, func(ctx context.Context) error {
		var err error
		updated, err = t.store.Update(ctx, id, item)
		return err
	})
	return updated, err
}

// Delete removes record id.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("id is required")
	}
	return t.TriggerAction(ctx, id, ActionDelete, func(ctx context.Context) error {
		return t.store.Delete(ctx, id)
	})
}

// Stores supplies the persistence for each admin resource.
type Stores struct {
	Rules            Store[Rule]
	Customers        Store[Customer]
	GuardianConsents Store[GuardianConsent]
	PrivacyNotices   Store[PrivacyNotice]
	TopicPreferences Store[TopicPreference]
}

// NewTables creates a table per resource sharing cfg.
func NewTables(s Stores, cfg view.Config) *Tables {
	return &Tables{
		Rules:            NewTable[Rule](KindRules, s.Rules, cfg),
		Customers:        NewTable[Customer](KindCustomers, s.Customers, cfg),
		GuardianConsents: NewTable[GuardianConsent](KindGuardianConsents, s.GuardianConsents, cfg),
		PrivacyNotices:   NewTable[PrivacyNotice](KindPrivacyNotices, s.PrivacyNotices, cfg),
		TopicPreferences: NewTable[TopicPreference](KindTopicPreferences, s.TopicPreferences, cfg),
	}
}

// Tables bundles the admin resource tables.
type Tables struct {
	Rules            *Table[Rule]
	Customers        *Table[Customer]
	GuardianConsents *Table[GuardianConsent]
	PrivacyNotices   *Table[PrivacyNotice]
	TopicPreferences *Table[TopicPreference]
}

// Kinds under which the tables are exposed.
const (
	KindRules            = "rules"
	KindCustomers        = "customers"
	KindGuardianConsents = "guardian-consents"
	KindPrivacyNotices   = "privacy-notices"
	KindTopicPreferences = "topic-preferences"
)

// Views returns every table as a status reporter, in a stable order.
func (t *Tables) Views() []view.StatusReporter {
	return []view.StatusReporter{t.Rules, t.Customers, t.GuardianConsents, t.PrivacyNotices, t.TopicPreferences}
}

// Close stops every table.
func (t *Tables) Close() {
	t.Rules.Close()
	t.Customers.Close()
	t.GuardianConsents.Close()
	t.PrivacyNotices.Close()
	t.TopicPreferences.Close()
}

// StartAutoRefresh starts auto refresh on every table.
func (t *Tables) StartAutoRefresh(interval time.Duration) {
	t.Rules.StartAutoRefresh(interval)
	t.Customers.StartAutoRefresh(interval)
	t.GuardianConsents.StartAutoRefresh(interval)
	t.PrivacyNotices.StartAutoRefresh(interval)
	t.TopicPreferences.StartAutoRefresh(interval)
}
