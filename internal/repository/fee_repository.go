package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pahal-edu/pahal-api/internal/models"
)

// FeeRepository manages persistence for fee records. Allocation queries
// accept an sqlx.ExtContext so they can run inside the reconciliation
// transaction.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

const feeColumns = "id, student_id, amount, due_date, status, payment_date, transport, accommodation, created_at, updated_at"

const feeDetailColumns = `f.id, f.student_id, f.amount, f.due_date, f.status, f.payment_date, f.transport, f.accommodation, f.created_at, f.updated_at,
        s.name AS student_name, s.class AS student_class, s.parent_id`

// List returns fee details matching the provided filters, newest due first
// unless ascending order is requested.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	base := "FROM fees f JOIN students s ON s.id = f.student_id WHERE 1=1"
	var args []interface{}

	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND f.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.ParentID != "" {
		base += fmt.Sprintf(" AND s.parent_id = $%d", len(args)+1)
		args = append(args, filter.ParentID)
	}
	if filter.Status != "" {
		base += fmt.Sprintf(" AND f.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY f.due_date %s, f.created_at %s LIMIT %d OFFSET %d",
		feeDetailColumns, base, order, order, size, offset)
	var fees []models.FeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fees: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fees: %w", err)
	}
	return fees, total, nil
}

// FindByID fetches a fee detail by identifier.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.FeeDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM fees f JOIN students s ON s.id = f.student_id WHERE f.id = $1", feeDetailColumns)
	var fee models.FeeDetail
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// Create inserts a manually added fee record.
func (r *FeeRepository) Create(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = now
	}
	fee.UpdatedAt = now
	const query = `INSERT INTO fees (id, student_id, amount, due_date, status, payment_date, transport, accommodation, created_at, updated_at)
        VALUES (:id, :student_id, :amount, :due_date, :status, :payment_date, :transport, :accommodation, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// Upsert inserts a generated fee or, when a row already exists for the
// (student, due date) pair, refreshes its amount and flag snapshot in place.
// Status and payment date of an existing row are preserved.
func (r *FeeRepository) Upsert(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = now
	}
	fee.UpdatedAt = now
	const query = `INSERT INTO fees (id, student_id, amount, due_date, status, payment_date, transport, accommodation, created_at, updated_at)
        VALUES (:id, :student_id, :amount, :due_date, :status, :payment_date, :transport, :accommodation, :created_at, :updated_at)
        ON CONFLICT (student_id, due_date) DO UPDATE
        SET amount = EXCLUDED.amount, transport = EXCLUDED.transport, accommodation = EXCLUDED.accommodation, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("upsert fee: %w", err)
	}
	return nil
}

// UpdateStatus applies a manual status edit to one fee row.
func (r *FeeRepository) UpdateStatus(ctx context.Context, id string, status models.FeeStatus, paymentDate *time.Time) error {
	const query = `UPDATE fees SET status = $2, payment_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, paymentDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update fee status: %w", err)
	}
	return nil
}

// Delete removes a fee record.
func (r *FeeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM fees WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete fee: %w", err)
	}
	return nil
}

// ListByDueDate returns all fees due on the given date, keyed by nothing;
// the generator indexes them by student itself.
func (r *FeeRepository) ListByDueDate(ctx context.Context, dueDate time.Time) ([]models.Fee, error) {
	query := fmt.Sprintf("SELECT %s FROM fees WHERE due_date = $1", feeColumns)
	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, query, dueDate); err != nil {
		return nil, fmt.Errorf("list fees by due date: %w", err)
	}
	return fees, nil
}

// ListByParentForUpdate loads every fee belonging to the parent's students
// in allocation order, locking the rows for the enclosing transaction.
func (r *FeeRepository) ListByParentForUpdate(ctx context.Context, q sqlx.ExtContext, parentID string) ([]models.Fee, error) {
	const query = `SELECT f.id, f.student_id, f.amount, f.due_date, f.status, f.payment_date, f.transport, f.accommodation, f.created_at, f.updated_at
        FROM fees f JOIN students s ON s.id = f.student_id
        WHERE s.parent_id = $1
        ORDER BY f.due_date ASC, f.created_at ASC, f.id ASC
        FOR UPDATE OF f`
	var fees []models.Fee
	if err := sqlx.SelectContext(ctx, q, &fees, query, parentID); err != nil {
		return nil, fmt.Errorf("list fees for allocation: %w", err)
	}
	return fees, nil
}

// ApplyAllocation writes the reconciled status of a single fee row.
func (r *FeeRepository) ApplyAllocation(ctx context.Context, q sqlx.ExtContext, id string, status models.FeeStatus, paymentDate *time.Time) error {
	const query = `UPDATE fees SET status = $2, payment_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, id, status, paymentDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply fee allocation: %w", err)
	}
	return nil
}

// ListAllDetails returns every fee with its student and parent linkage.
// The summary aggregator works over this snapshot.
func (r *FeeRepository) ListAllDetails(ctx context.Context) ([]models.FeeDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM fees f JOIN students s ON s.id = f.student_id ORDER BY f.due_date ASC", feeDetailColumns)
	var fees []models.FeeDetail
	if err := r.db.SelectContext(ctx, &fees, query); err != nil {
		return nil, fmt.Errorf("list all fees: %w", err)
	}
	return fees, nil
}

// TotalOwedByParent sums the fee amounts of all the parent's students.
func (r *FeeRepository) TotalOwedByParent(ctx context.Context, parentID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(f.amount), 0) FROM fees f JOIN students s ON s.id = f.student_id WHERE s.parent_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, parentID); err != nil {
		return 0, fmt.Errorf("total owed by parent: %w", err)
	}
	return total, nil
}
