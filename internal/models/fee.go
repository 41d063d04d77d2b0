package models

import "time"

// FeeStatus is the settlement state of one billing obligation.
type FeeStatus string

const (
	FeeStatusPending FeeStatus = "Pending"
	FeeStatusPartial FeeStatus = "Partial"
	FeeStatusPaid    FeeStatus = "Paid"
)

// Valid reports whether the status is one of the known values.
func (s FeeStatus) Valid() bool {
	switch s {
	case FeeStatusPending, FeeStatusPartial, FeeStatusPaid:
		return true
	}
	return false
}

// Fee is one billing obligation for one student for one period.
// At most one row exists per (student_id, due_date); the database enforces
// this with a unique index and generation upserts against it.
type Fee struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	Amount        int64      `db:"amount" json:"amount"`
	DueDate       time.Time  `db:"due_date" json:"due_date"`
	Status        FeeStatus  `db:"status" json:"status"`
	PaymentDate   *time.Time `db:"payment_date" json:"payment_date,omitempty"`
	Transport     bool       `db:"transport" json:"transport"`
	Accommodation bool       `db:"accommodation" json:"accommodation"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// FeeDetail joins student identity onto a fee row.
type FeeDetail struct {
	Fee
	StudentName  string `db:"student_name" json:"student_name"`
	StudentClass string `db:"student_class" json:"student_class"`
	ParentID     string `db:"parent_id" json:"parent_id"`
}

// FeeFilter captures filtering criteria for listing fees.
type FeeFilter struct {
	StudentID string
	ParentID  string
	Status    FeeStatus
	Page      int
	PageSize  int
	SortOrder string
}

// MonthlySummary is the read-only aggregation served by the summary endpoint.
type MonthlySummary struct {
	TotalFeesCurrentMonth int64           `json:"total_fees_current_month"`
	TotalUnpaidFees       int64           `json:"total_unpaid_fees"`
	Parents               []ParentBalance `json:"parents"`
	GeneratedAt           time.Time       `json:"generated_at"`
}

// ParentBalance reports one parent's owed-versus-paid position.
type ParentBalance struct {
	ParentID      string `json:"parent_id"`
	TotalFees     int64  `json:"total_fees"`
	TotalPayments int64  `json:"total_payments"`
	Due           int64  `json:"due"`
}
