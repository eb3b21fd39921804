package violationlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"helmet-guard-go/internal/models"
)

var errHeaderMismatch = errors.New("header row does not match Time | File | Violation Count")

// XLSXStore keeps the violation log in a single-sheet workbook. Every append
// reads the whole workbook, checks the header and writes it back.
type XLSXStore struct {
	mu   sync.Mutex
	path string
}

// NewXLSXStore opens the workbook at path, creating it with only the header row if absent
func NewXLSXStore(path string) (*XLSXStore, error) {
	s := &XLSXStore{path: path}
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *XLSXStore) ensure() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(models.LogColumns))
	for i, c := range models.LogColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(f.GetSheetName(0), "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}

	log.Info().Str("path", s.path).Msg("Created violation log workbook")
	return nil
}

func (s *XLSXStore) Path() string { return s.path }

func (s *XLSXStore) Append(ctx context.Context, rec models.ViolationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	if err := checkHeader(rows); err != nil {
		return err
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	row := []interface{}{rec.Time, rec.File, rec.ViolationCount}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (s *XLSXStore) Records(ctx context.Context) ([]models.ViolationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if err := checkHeader(rows); err != nil {
		return nil, err
	}

	out := make([]models.ViolationRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := models.ViolationRecord{}
		if len(row) > 0 {
			rec.Time = row[0]
		}
		if len(row) > 1 {
			rec.File = row[1]
		}
		if len(row) > 2 && row[2] != "" {
			n, err := strconv.Atoi(row[2])
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid violation count %q", i+2, row[2])
			}
			rec.ViolationCount = n
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *XLSXStore) Close() error { return nil }

func checkHeader(rows [][]string) error {
	if len(rows) == 0 || len(rows[0]) != len(models.LogColumns) {
		return errHeaderMismatch
	}
	for i, c := range models.LogColumns {
		if rows[0][i] != c {
			return errHeaderMismatch
		}
	}
	return nil
}
