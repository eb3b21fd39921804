package violationlog

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"helmet-guard-go/internal/models"
)

// Logger stamps violation rows with the current time and appends them to a Store
type Logger struct {
	store Store
	clock clock.Clock
}

func NewLogger(store Store, clk clock.Clock) *Logger {
	if clk == nil {
		clk = clock.New()
	}
	return &Logger{store: store, clock: clk}
}

// Record appends one row. It does not filter on count; callers only record
// frames that contain violations. Store failures come back as *models.LogWriteError.
func (l *Logger) Record(ctx context.Context, source string, count int) error {
	rec := models.NewViolationRecord(l.clock.Now(), source, count)
	if err := l.store.Append(ctx, rec); err != nil {
		return &models.LogWriteError{Path: l.store.Path(), Err: err}
	}

	log.Debug().
		Str("record_time", rec.Time).
		Str("file", rec.File).
		Int("violation_count", rec.ViolationCount).
		Msg("Violation recorded")
	return nil
}

// Records returns every logged row in append order
func (l *Logger) Records(ctx context.Context) ([]models.ViolationRecord, error) {
	return l.store.Records(ctx)
}

func (l *Logger) Close() error {
	return l.store.Close()
}
