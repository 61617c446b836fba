package console

// CountBy counts items by the key returned for each.
func CountBy[T any](items []T, key func(T) string) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		counts[key(item)]++
	}
	return counts
}

// Summary is the aggregate shown on a resource dashboard card.
type Summary struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"byCategory"`
}

// Categorized is implemented by every console resource.
type Categorized interface {
	Category() string
}

// Summarize counts items by category.
func Summarize[T Categorized](items []T) Summary {
	return Summary{
		Total:      len(items),
		ByCategory: CountBy(items, func(item T) string { return item.Category() }),
	}
}
