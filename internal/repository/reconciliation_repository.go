package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pahal-edu/pahal-api/internal/ledger"
	"github.com/pahal-edu/pahal-api/internal/models"
)

// ReconciliationRepository runs the payment ledger's write cycle: every
// payment insert or delete and the resulting fee recompute happen inside a
// single transaction, serialized per parent by the parent row lock. Either
// the payment and all fee updates land together or none of them do.
type ReconciliationRepository struct {
	db       *sqlx.DB
	parents  *ParentRepository
	fees     *FeeRepository
	payments *PaymentRepository
}

// NewReconciliationRepository constructs a ReconciliationRepository.
func NewReconciliationRepository(db *sqlx.DB, parents *ParentRepository, fees *FeeRepository, payments *PaymentRepository) *ReconciliationRepository {
	return &ReconciliationRepository{db: db, parents: parents, fees: fees, payments: payments}
}

// RecordPayment inserts the payment and reconciles the parent's fees
// against the new payment total. Returns sql.ErrNoRows when the parent
// does not exist.
func (r *ReconciliationRepository) RecordPayment(ctx context.Context, payment *models.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.parents.Lock(ctx, tx, payment.ParentID); err != nil {
		return err
	}
	if err := r.payments.Create(ctx, tx, payment); err != nil {
		return err
	}
	if err := r.reallocate(ctx, tx, payment.ParentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record payment: %w", err)
	}
	return nil
}

// DeletePayment removes the payment and reconciles the parent's fees
// against the reduced total, reverting rows the deleted payment had
// covered. Returns sql.ErrNoRows when the payment does not exist.
func (r *ReconciliationRepository) DeletePayment(ctx context.Context, id string) error {
	payment, err := r.payments.FindByID(ctx, id)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.parents.Lock(ctx, tx, payment.ParentID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("lock parent for payment delete: %w", err)
		}
		return err
	}
	if err := r.payments.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := r.reallocate(ctx, tx, payment.ParentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete payment: %w", err)
	}
	return nil
}

// reallocate recomputes every fee status of the parent from the full
// payment total. Must run inside a transaction holding the parent lock.
func (r *ReconciliationRepository) reallocate(ctx context.Context, tx *sqlx.Tx, parentID string) error {
	totalPaid, err := r.payments.TotalPaidByParent(ctx, tx, parentID)
	if err != nil {
		return err
	}
	paidAt, err := r.payments.LatestPaymentDate(ctx, tx, parentID)
	if err != nil {
		return err
	}
	fees, err := r.fees.ListByParentForUpdate(ctx, tx, parentID)
	if err != nil {
		return err
	}

	for i, allocation := range ledger.AllocateFees(fees, totalPaid, paidAt) {
		if !allocation.Changed(fees[i]) {
			continue
		}
		if err := r.fees.ApplyAllocation(ctx, tx, allocation.FeeID, allocation.Status, allocation.PaymentDate); err != nil {
			return err
		}
	}
	return nil
}
