// Package worker runs background jobs for the consent console.
package worker

import (
	"time"

	"github.com/consentdesk/console/internal/dsar"
)

// SweepConfig holds configuration for the DSAR sweep job.
type SweepConfig struct {
	// Enabled turns on auto-processing. A disabled sweep only reports
	// candidates.
	Enabled bool

	// MinUrgency is the lowest recommendation urgency that is processed.
	// Default: high
	MinUrgency dsar.Urgency

	// Concurrency is the number of requests processed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds each auto-process call.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Enabled:     false,
		MinUrgency:  dsar.UrgencyHigh,
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	def := DefaultSweepConfig()
	if c.MinUrgency.Rank() == 0 {
		c.MinUrgency = def.MinUrgency
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
