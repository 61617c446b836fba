package models

import (
	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/view"
)

// DSARRequestList is the response for GET /v1/dsar/requests.
type DSARRequestList struct {
	Items    []dsar.Entry `json:"items"`
	Count    int          `json:"count"`
	Loaded   bool         `json:"loaded"`
	LoadedAt *Timestamp   `json:"loadedAt,omitempty"`
	Error    string       `json:"error,omitempty"`
	InFlight []string     `json:"inFlight"`
}

// NewDSARRequestList builds a list response from entries and the board state.
func NewDSARRequestList(entries []dsar.Entry, state view.State[dsar.Request]) DSARRequestList {
	if entries == nil {
		entries = []dsar.Entry{}
	}
	inFlight := state.InFlight
	if inFlight == nil {
		inFlight = []string{}
	}
	return DSARRequestList{
		Items:    entries,
		Count:    len(entries),
		Loaded:   state.Loaded,
		LoadedAt: NewTimestamp(state.LoadedAt),
		Error:    state.Error,
		InFlight: inFlight,
	}
}

// ActionAccepted is returned when an action completed and a reload is
// scheduled.
type ActionAccepted struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Status string `json:"status"`
}

// StatusUpdateRequest is the body of PUT /v1/dsar/requests/{id}/status.
type StatusUpdateRequest struct {
	Status dsar.Status `json:"status"`
}
