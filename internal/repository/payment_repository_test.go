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

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{
		ParentID:      "p1",
		AmountPaid:    1200,
		PaymentDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		TransactionID: "TXN-1",
	}
	err := repo.Create(context.Background(), db, payment)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), db, "ghost")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryTotalPaidByParent(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount_paid), 0) FROM payments WHERE parent_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1800))

	total, err := repo.TotalPaidByParent(context.Background(), db, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryLatestPaymentDateEmpty(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(payment_date) FROM payments WHERE parent_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	latest, err := repo.LatestPaymentDate(context.Background(), db, "p1")
	require.NoError(t, err)
	assert.Nil(t, latest)
	assert.NoError(t, mock.ExpectationsWereMet())
}
