package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pahal-edu/pahal-api/internal/models"
)

func newReconciliationMock(t *testing.T) (*ReconciliationRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewReconciliationRepository(sqlxDB, NewParentRepository(sqlxDB), NewFeeRepository(sqlxDB), NewPaymentRepository(sqlxDB))
	return repo, mock, func() { db.Close() }
}

func allocationFeeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "amount", "due_date", "status", "payment_date", "transport", "accommodation", "created_at", "updated_at"})
}

// A 1200 payment against two pending fees of 600 and 900 covers only the
// oldest one; the second stays pending because fees are never split.
func TestReconciliationRecordPaymentMarksOldestFee(t *testing.T) {
	repo, mock, cleanup := newReconciliationMock(t)
	defer cleanup()

	paidAt := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM parents WHERE id = $1 FOR UPDATE")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount_paid), 0) FROM payments WHERE parent_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1200))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(payment_date) FROM payments WHERE parent_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(paidAt))
	mock.ExpectQuery("SELECT .+ FROM fees f JOIN students s ON s.id = f.student_id\\s+WHERE s.parent_id = \\$1\\s+ORDER BY f.due_date ASC, f.created_at ASC, f.id ASC\\s+FOR UPDATE OF f").
		WithArgs("p1").
		WillReturnRows(allocationFeeRows().
			AddRow("f1", "s1", 600, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), "Pending", nil, false, false, time.Now(), time.Now()).
			AddRow("f2", "s1", 900, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC), "Pending", nil, false, false, time.Now(), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fees SET status = $2, payment_date = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("f1", models.FeeStatusPaid, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := &models.Payment{ParentID: "p1", AmountPaid: 1200, PaymentDate: paidAt, TransactionID: "TXN-1"}
	err := repo.RecordPayment(context.Background(), payment)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciliationRecordPaymentUnknownParentRollsBack(t *testing.T) {
	repo, mock, cleanup := newReconciliationMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM parents WHERE id = $1 FOR UPDATE")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	payment := &models.Payment{ParentID: "ghost", AmountPaid: 500, PaymentDate: time.Now(), TransactionID: "TXN-2"}
	err := repo.RecordPayment(context.Background(), payment)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Deleting the only payment reverts the fee it covered back to pending.
func TestReconciliationDeletePaymentRevertsFees(t *testing.T) {
	repo, mock, cleanup := newReconciliationMock(t)
	defer cleanup()

	paidAt := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id = \\$1").
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_id", "amount_paid", "payment_date", "transaction_id", "created_at"}).
			AddRow("pay-1", "p1", 600, paidAt, "TXN-1", time.Now()))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM parents WHERE id = $1 FOR UPDATE")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).
		WithArgs("pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount_paid), 0) FROM payments WHERE parent_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(payment_date) FROM payments WHERE parent_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery("SELECT .+ FROM fees f JOIN students s ON s.id = f.student_id\\s+WHERE s.parent_id = \\$1\\s+ORDER BY f.due_date ASC, f.created_at ASC, f.id ASC\\s+FOR UPDATE OF f").
		WithArgs("p1").
		WillReturnRows(allocationFeeRows().
			AddRow("f1", "s1", 600, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), "Paid", paidAt, false, false, time.Now(), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fees SET status = $2, payment_date = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("f1", models.FeeStatusPending, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeletePayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
