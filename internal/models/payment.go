package models

import "time"

// Payment is one money-transfer event attributed to a parent. Immutable
// once created except for deletion, which triggers re-reconciliation.
type Payment struct {
	ID            string    `db:"id" json:"id"`
	ParentID      string    `db:"parent_id" json:"parent_id"`
	AmountPaid    int64     `db:"amount_paid" json:"amount_paid"`
	PaymentDate   time.Time `db:"payment_date" json:"payment_date"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
