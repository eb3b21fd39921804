package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"helmet-guard-go/internal/config"
)

// NewServiceLogger returns a child of the global logger tagged with the worker
// and the owning service
func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	ctx := log.With().Str("service", service)
	if cfg != nil && cfg.WorkerID != "" {
		ctx = ctx.Str("worker_id", cfg.WorkerID)
	}
	return ctx.Logger()
}

// WithSession tags a logger with a detection session and its input mode
func WithSession(base zerolog.Logger, sessionID, mode string) zerolog.Logger {
	return base.With().Str("session_id", sessionID).Str("mode", mode).Logger()
}
