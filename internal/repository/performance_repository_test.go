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

func newPerformanceMock(t *testing.T) (*PerformanceRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewPerformanceRepository(sqlxDB), mock, func() { db.Close() }
}

func TestPerformanceRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newPerformanceMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO performance").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	perf := &models.Performance{
		StudentID: "s1",
		TestDate:  time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),
		Subject:   models.DefaultTestSubject,
		Marks:     87,
	}
	err := repo.Create(context.Background(), perf)
	require.NoError(t, err)
	assert.NotEmpty(t, perf.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPerformanceRepositoryUpdateMarksMissing(t *testing.T) {
	repo, mock, cleanup := newPerformanceMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE performance SET marks = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("ghost", 50, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateMarks(context.Background(), "ghost", 50)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
