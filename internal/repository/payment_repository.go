package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pahal-edu/pahal-api/internal/models"
)

// PaymentRepository manages persistence for payment records. Mutating
// queries accept an sqlx.ExtContext so the allocator can run them inside
// the reconciliation transaction.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = "id, parent_id, amount_paid, payment_date, transaction_id, created_at"

// Create inserts a payment row.
func (r *PaymentRepository) Create(ctx context.Context, q sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payments (id, parent_id, amount_paid, payment_date, transaction_id, created_at)
        VALUES (:id, :parent_id, :amount_paid, :payment_date, :transaction_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID fetches a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Delete removes a payment row inside the caller's transaction.
func (r *PaymentRepository) Delete(ctx context.Context, q sqlx.ExtContext, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByParent returns a parent's payment history, newest first.
func (r *PaymentRepository) ListByParent(ctx context.Context, parentID string) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE parent_id = $1 ORDER BY payment_date DESC, created_at DESC", paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, parentID); err != nil {
		return nil, fmt.Errorf("list payments by parent: %w", err)
	}
	return payments, nil
}

// ListAll returns every payment. The summary aggregator works over this
// snapshot together with the fee snapshot.
func (r *PaymentRepository) ListAll(ctx context.Context) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments ORDER BY payment_date ASC", paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("list all payments: %w", err)
	}
	return payments, nil
}

// TotalPaidByParent sums the parent's full payment history. Runs inside
// the reconciliation transaction so the recompute sees a consistent total.
func (r *PaymentRepository) TotalPaidByParent(ctx context.Context, q sqlx.ExtContext, parentID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount_paid), 0) FROM payments WHERE parent_id = $1`
	var total int64
	if err := sqlx.GetContext(ctx, q, &total, query, parentID); err != nil {
		return 0, fmt.Errorf("total paid by parent: %w", err)
	}
	return total, nil
}

// LatestPaymentDate returns the most recent payment date for a parent, or
// nil when the parent has no payments.
func (r *PaymentRepository) LatestPaymentDate(ctx context.Context, q sqlx.ExtContext, parentID string) (*time.Time, error) {
	const query = `SELECT MAX(payment_date) FROM payments WHERE parent_id = $1`
	var latest sql.NullTime
	if err := sqlx.GetContext(ctx, q, &latest, query, parentID); err != nil {
		return nil, fmt.Errorf("latest payment date: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time
	return &t, nil
}
