package violationlog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/models"
)

func mockClockAt(t time.Time) *clock.Mock {
	clk := clock.NewMock()
	clk.Set(t)
	return clk
}

func readSheet(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	return rows
}

func TestXLSXStoreCreatesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "violations.xlsx")

	_, err := NewXLSXStore(path)
	require.NoError(t, err)

	rows := readSheet(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, models.LogColumns, rows[0])
}

func TestLoggerAppendsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "violations.xlsx")
	store, err := NewXLSXStore(path)
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local)
	clk := mockClockAt(start)
	logger := NewLogger(store, clk)
	ctx := context.Background()

	calls := []struct {
		source string
		count  int
	}{
		{"a.jpg", 1},
		{"site.mp4", 3},
		{"", 2},
	}
	for _, c := range calls {
		require.NoError(t, logger.Record(ctx, c.source, c.count))
		clk.Add(1500 * time.Millisecond)
	}

	rows := readSheet(t, path)
	require.Len(t, rows, 1+len(calls))
	assert.Equal(t, models.LogColumns, rows[0], "schema unchanged")
	assert.Equal(t, []string{"2024-05-01 08:00:00", "a.jpg", "1"}, rows[1])
	assert.Equal(t, []string{"2024-05-01 08:00:01", "site.mp4", "3"}, rows[2])
	assert.Equal(t, "2024-05-01 08:00:03", rows[3][0])
	assert.Equal(t, "", rows[3][1])
	assert.Equal(t, "2", rows[3][2])

	recs, err := logger.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, models.ViolationRecord{Time: "2024-05-01 08:00:01", File: "site.mp4", ViolationCount: 3}, recs[1])
	assert.Equal(t, "", recs[2].File)
}

func TestXLSXStoreReopensExistingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "violations.xlsx")
	first, err := NewXLSXStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(context.Background(), models.ViolationRecord{Time: "t1", File: "a", ViolationCount: 1}))

	second, err := NewXLSXStore(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(context.Background(), models.ViolationRecord{Time: "t2", File: "b", ViolationCount: 2}))

	rows := readSheet(t, path)
	assert.Len(t, rows, 3)
}

func TestCorruptWorkbookIsLogWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "violations.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a zip archive"), 0o644))

	store, err := NewXLSXStore(path)
	require.NoError(t, err)

	err = NewLogger(store, clock.NewMock()).Record(context.Background(), "x.jpg", 1)
	var logErr *models.LogWriteError
	require.True(t, errors.As(err, &logErr))
	assert.Equal(t, path, logErr.Path)
}

func TestHeaderMismatchFailsAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "violations.xlsx")
	f := excelize.NewFile()
	row := []interface{}{"Waktu", "File", "Jumlah"}
	require.NoError(t, f.SetSheetRow(f.GetSheetName(0), "A1", &row))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	store, err := NewXLSXStore(path)
	require.NoError(t, err)

	err = store.Append(context.Background(), models.ViolationRecord{Time: "t", File: "f", ViolationCount: 1})
	assert.ErrorIs(t, err, errHeaderMismatch)
	assert.Len(t, readSheet(t, path), 1, "log untouched")
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "violations.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	logger := NewLogger(store, mockClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)))
	require.NoError(t, logger.Record(context.Background(), "cam.avi", 4))
	require.NoError(t, logger.Record(context.Background(), "", 1))

	recs, err := logger.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.ViolationRecord{Time: "2024-01-02 03:04:05", File: "cam.avi", ViolationCount: 4}, recs[0])
	assert.Equal(t, "", recs[1].File)
}

func TestSQLiteStoreInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS violations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO violations").
		WithArgs("2024-01-02 03:04:05", "a.jpg", 1).
		WillReturnError(errors.New("disk I/O error"))

	store, err := newSQLiteStore(db, "mock.db")
	require.NoError(t, err)

	err = NewLogger(store, mockClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local))).Record(context.Background(), "a.jpg", 1)
	var logErr *models.LogWriteError
	require.True(t, errors.As(err, &logErr))
	assert.Contains(t, logErr.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(&config.Config{ViolationLogBackend: "sqlite", ViolationLogPath: filepath.Join(dir, "v.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(&config.Config{ViolationLogBackend: "xlsx", ViolationLogPath: filepath.Join(dir, "v.xlsx")})
	require.NoError(t, err)
	assert.IsType(t, &XLSXStore{}, s)

	_, err = Open(&config.Config{ViolationLogBackend: "csv"})
	assert.Error(t, err)
}

func TestRecordLogLineHasSingleTimeKey(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	store, err := NewXLSXStore(filepath.Join(t.TempDir(), "violations.xlsx"))
	require.NoError(t, err)
	logger := NewLogger(store, mockClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)))
	defer logger.Close()

	require.NoError(t, logger.Record(context.Background(), "site.jpg", 2))

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, `"time":`), line)
	assert.Contains(t, line, `"record_time":"2026-01-02 03:04:05"`)
}
