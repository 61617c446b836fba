package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/dsar"
	"github.com/consentdesk/console/internal/view"
)

// SweepJob auto-processes overdue DSAR requests through the board, so the
// in-flight guard, notifications and audit trail apply as they do for an
// operator click.
type SweepJob struct {
	config SweepConfig
	board  *dsar.Board
	logger zerolog.Logger

	metrics *SweepMetrics
}

// SweepMetrics tracks sweep job statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	TotalRuns  int64
	Candidates int64
	Processed  int64
	Skipped    int64
	Failed     int64
	LoadErrors int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config SweepConfig
	Board  *dsar.Board
	Logger zerolog.Logger
}

// NewSweepJob creates a new sweep job.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	return &SweepJob{
		config:  cfg.Config.withDefaults(),
		board:   cfg.Board,
		logger:  cfg.Logger.With().Str("job", "dsar_sweep").Logger(),
		metrics: &SweepMetrics{},
	}
}

// SweepResult contains the result of a sweep.
type SweepResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	DryRun     bool
	Candidates int
	Processed  int
	Skipped    int
	Failed     int
	Errors     []SweepError
	LoadError  error
}

// SweepError records a request the sweep could not process.
type SweepError struct {
	RequestID string
	Urgency   dsar.Urgency
	Error     string
}

// Run loads the board and processes every pending request whose
// recommendation meets the configured urgency.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	startTime := time.Now()
	result := &SweepResult{
		StartTime: startTime,
		DryRun:    !j.config.Enabled,
	}

	if err := j.board.Load(ctx); err != nil {
		result.LoadError = err
		j.finish(result)
		j.logger.Error().Err(err).Msg("sweep aborted: loading requests failed")
		return result
	}

	candidates := j.board.Candidates(j.config.MinUrgency)
	result.Candidates = len(candidates)

	j.logger.Info().
		Int("candidates", result.Candidates).
		Str("min_urgency", string(j.config.MinUrgency)).
		Bool("dry_run", result.DryRun).
		Int("concurrency", j.config.Concurrency).
		Msg("starting dsar sweep")

	if result.DryRun {
		for _, entry := range candidates {
			j.logger.Info().
				Str("request_id", entry.Request.ID).
				Int("age_days", entry.AgeDays).
				Str("urgency", string(entry.Recommendation.Urgency)).
				Msg("would auto-process request")
		}
		result.Skipped = result.Candidates
		j.finish(result)
		return result
	}

	entriesChan := make(chan dsar.Entry, len(candidates))
	resultsChan := make(chan entryResult, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.sweepWorker(ctx, entriesChan, resultsChan)
		}()
	}

	for _, entry := range candidates {
		entriesChan <- entry
	}
	close(entriesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for er := range resultsChan {
		switch {
		case er.err == nil:
			result.Processed++
		case errors.Is(er.err, view.ErrActionInFlight), errors.Is(er.err, context.Canceled):
			result.Skipped++
		default:
			result.Failed++
			result.Errors = append(result.Errors, SweepError{
				RequestID: er.entry.Request.ID,
				Urgency:   er.entry.Recommendation.Urgency,
				Error:     er.err.Error(),
			})
		}
	}
	// Entries never picked up because ctx ended count as skipped.
	result.Skipped += result.Candidates - result.Processed - result.Skipped - result.Failed

	j.finish(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("dsar sweep completed")

	return result
}

type entryResult struct {
	entry dsar.Entry
	err   error
}

func (j *SweepJob) sweepWorker(ctx context.Context, entries <-chan dsar.Entry, results chan<- entryResult) {
	for entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
			results <- entryResult{entry: entry, err: j.process(ctx, entry)}
		}
	}
}

func (j *SweepJob) process(ctx context.Context, entry dsar.Entry) error {
	procCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	err := j.board.Process(procCtx, entry.Request.ID)
	if err != nil && !errors.Is(err, view.ErrActionInFlight) {
		j.logger.Warn().Err(err).Str("request_id", entry.Request.ID).Msg("auto-process failed")
	}
	return err
}

func (j *SweepJob) finish(result *SweepResult) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Candidates += int64(result.Candidates)
	j.metrics.Processed += int64(result.Processed)
	j.metrics.Skipped += int64(result.Skipped)
	j.metrics.Failed += int64(result.Failed)
	if result.LoadError != nil {
		j.metrics.LoadErrors++
	}
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		Candidates:      j.metrics.Candidates,
		Processed:       j.metrics.Processed,
		Skipped:         j.metrics.Skipped,
		Failed:          j.metrics.Failed,
		LoadErrors:      j.metrics.LoadErrors,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"candidates":        m.Candidates,
		"processed":         m.Processed,
		"skipped":           m.Skipped,
		"failed":            m.Failed,
		"load_errors":       m.LoadErrors,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}

// Schedule runs the sweep every interval until ctx is cancelled. The first
// run happens immediately.
func (j *SweepJob) Schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		j.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
