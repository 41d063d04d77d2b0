package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pahal-edu/pahal-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*AttendanceRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewAttendanceRepository(sqlxDB), mock, func() { db.Close() }
}

// Marking the same student and day twice must route through the
// conflict clause rather than a second insert.
func TestAttendanceRepositoryUpsertForDate(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO attendance .+ ON CONFLICT \\(student_id, date\\) DO UPDATE SET status = EXCLUDED.status").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	att := &models.Attendance{
		StudentID: "s1",
		Date:      time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		Status:    models.AttendanceStatusPresent,
	}
	err := repo.UpsertForDate(context.Background(), att)
	require.NoError(t, err)
	assert.NotEmpty(t, att.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByStudent(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM attendance WHERE student_id = \\$1 ORDER BY date DESC").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "date", "status", "created_at", "updated_at"}).
			AddRow("a2", "s1", time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC), "Absent", time.Now(), time.Now()).
			AddRow("a1", "s1", time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), "Present", time.Now(), time.Now()))

	entries, err := repo.ListByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AttendanceStatusAbsent, entries[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteMissing(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
