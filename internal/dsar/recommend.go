package dsar

import (
	"fmt"
	"time"
)

// Urgency ranks how soon a pending request should be handled.
type Urgency string

// Urgency values.
const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Rank orders urgencies: low < medium < high. Unknown values rank 0.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	}
	return 0
}

// ParseUrgency parses an urgency name.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(s)
	if u.Rank() == 0 {
		return "", fmt.Errorf("unknown urgency %q", s)
	}
	return u, nil
}

// Action is the operation a recommendation suggests.
type Action string

// ActionProcess suggests auto-processing the request.
const ActionProcess Action = "process"

// Recommendation is derived from a request on demand and never stored.
type Recommendation struct {
	Urgency Urgency `json:"urgency"`
	Message string  `json:"message"`
	Action  Action  `json:"action"`
}

const (
	// OverdueAfterDays is the age at which a pending request is overdue.
	OverdueAfterDays = 7

	// ApproachingAfterDays is the age at which a pending request nears its deadline.
	ApproachingAfterDays = 3

	day = 24 * time.Hour
)

// AgeDays returns the whole number of days between the request's creation
// and now, rounded toward negative infinity. A request created in the future
// has a negative age.
func AgeDays(req Request, now time.Time) int {
	elapsed := now.Sub(req.CreatedAt)
	days := elapsed / day
	if elapsed%day < 0 {
		days--
	}
	return int(days)
}

// Recommend classifies a request. Only pending requests get a recommendation;
// nil means there is nothing to suggest.
func Recommend(req Request, now time.Time) *Recommendation {
	if req.Status != StatusPending {
		return nil
	}

	age := AgeDays(req, now)
	switch {
	case age >= OverdueAfterDays:
		return &Recommendation{
			Urgency: UrgencyHigh,
			Message: fmt.Sprintf("Overdue by %d days. Auto-processing recommended.", age-OverdueAfterDays),
			Action:  ActionProcess,
		}
	case age >= ApproachingAfterDays:
		return &Recommendation{
			Urgency: UrgencyMedium,
			Message: "Approaching deadline. Consider auto-processing.",
			Action:  ActionProcess,
		}
	case req.Type == TypeExport:
		return &Recommendation{
			Urgency: UrgencyLow,
			Message: "Data export can be automated.",
			Action:  ActionProcess,
		}
	}
	return nil
}

// Entry pairs a request with its recommendation.
type Entry struct {
	Request        Request         `json:"request"`
	AgeDays        int             `json:"ageDays"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// Recommendations returns an entry for every request that has a
// recommendation, in collection order.
func Recommendations(reqs []Request, now time.Time) []Entry {
	entries := make([]Entry, 0)
	for _, req := range reqs {
		rec := Recommend(req, now)
		if rec == nil {
			continue
		}
		entries = append(entries, Entry{Request: req, AgeDays: AgeDays(req, now), Recommendation: rec})
	}
	return entries
}

// Annotate returns an entry for every request, with or without a recommendation.
func Annotate(reqs []Request, now time.Time) []Entry {
	entries := make([]Entry, 0, len(reqs))
	for _, req := range reqs {
		entries = append(entries, Entry{Request: req, AgeDays: AgeDays(req, now), Recommendation: Recommend(req, now)})
	}
	return entries
}

// Stats aggregates a request collection for dashboard cards.
type Stats struct {
	Total     int                 `json:"total"`
	ByStatus  map[Status]int      `json:"byStatus"`
	ByType    map[RequestType]int `json:"byType"`
	ByUrgency map[Urgency]int     `json:"byUrgency"`
	Overdue   int                 `json:"overdue"`
}

// Summarize counts requests by status, type and recommendation urgency.
func Summarize(reqs []Request, now time.Time) Stats {
	stats := Stats{
		Total:     len(reqs),
		ByStatus:  make(map[Status]int),
		ByType:    make(map[RequestType]int),
		ByUrgency: make(map[Urgency]int),
	}
	for _, req := range reqs {
		stats.ByStatus[req.Status]++
		stats.ByType[req.Type]++
		if rec := Recommend(req, now); rec != nil {
			stats.ByUrgency[rec.Urgency]++
			if rec.Urgency == UrgencyHigh {
				stats.Overdue++
			}
		}
	}
	return stats
}
