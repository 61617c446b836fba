package dsar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/consentdesk/console/internal/dsar"
)

func TestRequest_Validate(t *testing.T) {
	completedAt := now
	yes := true

	valid := request("r1", dsar.TypeExport, dsar.StatusPending, time.Hour)
	assert.NoError(t, valid.Validate())

	completed := request("r2", dsar.TypeExport, dsar.StatusCompleted, time.Hour)
	completed.CompletedAt = &completedAt
	completed.Result = &dsar.ProcessingResult{ExportSize: "2.4 MB", Exported: &yes}
	assert.NoError(t, completed.Validate())

	tests := []struct {
		name   string
		mutate func(r *dsar.Request)
	}{
		{"missing id", func(r *dsar.Request) { r.ID = "" }},
		{"unknown type", func(r *dsar.Request) { r.Type = "erase" }},
		{"unknown status", func(r *dsar.Request) { r.Status = "done" }},
		{"missing createdAt", func(r *dsar.Request) { r.CreatedAt = time.Time{} }},
		{"completed without completedAt", func(r *dsar.Request) { r.Status = dsar.StatusCompleted }},
		{"pending with completedAt", func(r *dsar.Request) { r.CompletedAt = &completedAt }},
		{"pending with result", func(r *dsar.Request) { r.Result = &dsar.ProcessingResult{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := request("r3", dsar.TypeExport, dsar.StatusPending, time.Hour)
			tt.mutate(&r)
			assert.ErrorIs(t, r.Validate(), dsar.ErrInvalidRequest)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, dsar.CanTransition(dsar.StatusPending, dsar.StatusProcessing))
	assert.True(t, dsar.CanTransition(dsar.StatusProcessing, dsar.StatusCompleted))
	assert.True(t, dsar.CanTransition(dsar.StatusProcessing, dsar.StatusRejected))

	assert.False(t, dsar.CanTransition(dsar.StatusPending, dsar.StatusCompleted))
	assert.False(t, dsar.CanTransition(dsar.StatusCompleted, dsar.StatusPending))
	assert.False(t, dsar.CanTransition(dsar.StatusRejected, dsar.StatusProcessing))
}

func TestRequest_SearchFields(t *testing.T) {
	r := request("r1", dsar.TypeExport, dsar.StatusPending, time.Hour)

	assert.Equal(t, []string{"r1", "User r1", "r1@example.com"}, r.SearchFields())
	assert.Equal(t, "pending", r.Category())
	assert.True(t, dsar.StatusRejected.Terminal())
	assert.False(t, dsar.StatusPending.Terminal())
}
