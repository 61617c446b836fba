package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/view"
	"github.com/consentdesk/console/internal/worker"
)

func newDispatcher(t *testing.T, source *fakeSource, proc *fakeProcessor) *worker.Dispatcher {
	t.Helper()
	board := newBoard(t, source, proc)
	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.SweepConfig{Enabled: true},
		Board:  board,
		Logger: zerolog.Nop(),
	})
	return worker.NewDispatcher(worker.DispatcherConfig{
		Sweep:  sweep,
		Views:  []view.StatusReporter{board},
		Health: board,
		Logger: zerolog.Nop(),
	})
}

func TestDispatcher_Handle(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantAck bool
		wantErr bool
	}{
		{"sweep", `{"job_type":"dsar_sweep"}`, true, false},
		{"refresh", `{"job_type":"refresh"}`, true, false},
		{"health check", `{"job_type":"health_check"}`, true, false},
		{"unknown type is dropped", `{"job_type":"provider_refresh"}`, true, true},
		{"malformed payload is retried", `{not json`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher(t, &fakeSource{reqs: sweepRequests()}, &fakeProcessor{})

			ack, err := d.Handle(context.Background(), []byte(tt.payload))
			assert.Equal(t, tt.wantAck, ack)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDispatcher_UnknownJob(t *testing.T) {
	d := newDispatcher(t, &fakeSource{}, &fakeProcessor{})

	err := d.Dispatch(context.Background(), "nope")
	assert.ErrorIs(t, err, worker.ErrUnknownJob)
}

func TestDispatcher_FailuresNack(t *testing.T) {
	source := &fakeSource{err: errors.New("backend down")}
	d := newDispatcher(t, source, &fakeProcessor{})

	for _, job := range []string{worker.JobSweep, worker.JobRefresh, worker.JobHealthCheck} {
		ack, err := d.Handle(context.Background(), []byte(`{"job_type":"`+job+`"}`))
		assert.False(t, ack, job)
		assert.Error(t, err, job)
	}
}

func TestDispatcher_RefreshLoadsViews(t *testing.T) {
	source := &fakeSource{reqs: sweepRequests()}
	d := newDispatcher(t, source, &fakeProcessor{})

	require.NoError(t, d.Dispatch(context.Background(), worker.JobRefresh))
	assert.Equal(t, 1, source.Calls())
}

func TestDispatcher_SweepTooManyFailures(t *testing.T) {
	proc := &fakeProcessor{failFor: map[string]error{
		"overdue-1": errors.New("boom"),
		"overdue-2": errors.New("boom"),
	}}
	d := newDispatcher(t, &fakeSource{reqs: sweepRequests()}, proc)

	err := d.Dispatch(context.Background(), worker.JobSweep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many sweep failures")
}

var _ dsar.Processor = (*fakeProcessor)(nil)
