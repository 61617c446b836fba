// Package logging builds the root zerolog logger for console binaries.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/consentdesk/console/internal/config"
)

// New returns a logger writing to os.Stderr for console format and
// os.Stdout otherwise.
func New(cfg config.LogConfig, service, version string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.Format == "console" {
		w = os.Stderr
	}
	return NewWithWriter(w, cfg, service, version)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg config.LogConfig, service, version string) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	if version != "" {
		ctx = ctx.Str("version", version)
	}
	return ctx.Logger()
}
