package models

import "time"

// StatementFormat enumerates supported export formats.
type StatementFormat string

const (
	StatementFormatCSV StatementFormat = "csv"
	StatementFormatPDF StatementFormat = "pdf"
)

// StatementStatus tracks the lifecycle of an export job.
type StatementStatus string

const (
	StatementStatusQueued     StatementStatus = "queued"
	StatementStatusProcessing StatementStatus = "processing"
	StatementStatusDone       StatementStatus = "done"
	StatementStatusFailed     StatementStatus = "failed"
)

// StatementJob is an asynchronous fee-statement export request. A nil
// ParentID means the statement covers every parent.
type StatementJob struct {
	ID          string          `db:"id" json:"id"`
	ParentID    *string         `db:"parent_id" json:"parent_id,omitempty"`
	Format      StatementFormat `db:"format" json:"format"`
	Status      StatementStatus `db:"status" json:"status"`
	FilePath    string          `db:"file_path" json:"-"`
	Error       string          `db:"error" json:"error,omitempty"`
	Attempts    int             `db:"attempts" json:"attempts"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	FinishedAt  *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}
