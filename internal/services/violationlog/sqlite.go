package violationlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"helmet-guard-go/internal/models"
)

// SQLiteStore keeps the violation log in a single table with the same three columns
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s, err := newSQLiteStore(db, path)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLiteStore(db *sql.DB, path string) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS violations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time TEXT NOT NULL,
		file TEXT NOT NULL DEFAULT '',
		violation_count INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Append(ctx context.Context, rec models.ViolationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO violations (time, file, violation_count) VALUES (?, ?, ?)`,
		rec.Time, rec.File, rec.ViolationCount)
	if err != nil {
		return fmt.Errorf("insert violation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Records(ctx context.Context) ([]models.ViolationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT time, file, violation_count FROM violations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var out []models.ViolationRecord
	for rows.Next() {
		var rec models.ViolationRecord
		if err := rows.Scan(&rec.Time, &rec.File, &rec.ViolationCount); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
