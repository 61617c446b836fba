package view

import "strings"

// AllCategories disables the categorical filter.
const AllCategories = "all"

// Query filters a cached collection on the client side.
type Query[T any] struct {
	// Search is matched case-insensitively as a substring of any field
	// returned by Fields. Empty matches everything.
	Search string
	Fields func(T) []string

	// Category must equal CategoryOf(item) exactly. Empty or "all" matches
	// everything.
	Category   string
	CategoryOf func(T) string
}

// Match reports whether item passes both the search and the category filter.
func (q Query[T]) Match(item T) bool {
	return q.matchSearch(item) && q.matchCategory(item)
}

func (q Query[T]) matchSearch(item T) bool {
	needle := strings.ToLower(q.Search)
	if needle == "" || q.Fields == nil {
		return true
	}
	for _, field := range q.Fields(item) {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (q Query[T]) matchCategory(item T) bool {
	if q.Category == "" || strings.EqualFold(q.Category, AllCategories) || q.CategoryOf == nil {
		return true
	}
	return q.CategoryOf(item) == q.Category
}

// Searchable is implemented by records that expose their searchable text
// and their category.
type Searchable interface {
	SearchFields() []string
	Category() string
}

// Match builds a query over a Searchable record type.
func Match[T Searchable](search, category string) Query[T] {
	return Query[T]{
		Search:     search,
		Fields:     func(item T) []string { return item.SearchFields() },
		Category:   category,
		CategoryOf: func(item T) string { return item.Category() },
	}
}

// Filter applies q to items and returns the matching subset in order.
// items is not modified.
func Filter[T any](items []T, q Query[T]) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if q.Match(item) {
			out = append(out, item)
		}
	}
	return out
}
