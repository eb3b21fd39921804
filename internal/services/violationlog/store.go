package violationlog

import (
	"context"
	"fmt"
	"strings"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/models"
)

// Store is an append-only violation log
type Store interface {
	Append(ctx context.Context, rec models.ViolationRecord) error
	Records(ctx context.Context) ([]models.ViolationRecord, error)
	Path() string
	Close() error
}

// Open creates the store selected by VIOLATION_LOG_BACKEND
func Open(cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.ViolationLogBackend) {
	case "", "xlsx":
		return NewXLSXStore(cfg.ViolationLogPath)
	case "sqlite":
		return NewSQLiteStore(cfg.ViolationLogPath)
	default:
		return nil, fmt.Errorf("unknown violation log backend %q (supported: xlsx, sqlite)", cfg.ViolationLogBackend)
	}
}
