package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pahal-edu/pahal-api/internal/models"
)

// ParentRepository manages persistence for parent records.
type ParentRepository struct {
	db *sqlx.DB
}

// NewParentRepository constructs a ParentRepository.
func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

const parentColumns = "id, name, phone, whatsapp, created_at, updated_at"

// List returns parents matching the provided filters.
func (r *ParentRepository) List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, int, error) {
	base := "FROM parents WHERE 1=1"
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR phone LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "phone": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", parentColumns, base, sortBy, order, size, offset)
	var parents []models.Parent
	if err := r.db.SelectContext(ctx, &parents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list parents: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count parents: %w", err)
	}
	return parents, total, nil
}

// FindByID fetches a parent by identifier.
func (r *ParentRepository) FindByID(ctx context.Context, id string) (*models.Parent, error) {
	query := fmt.Sprintf("SELECT %s FROM parents WHERE id = $1", parentColumns)
	var parent models.Parent
	if err := r.db.GetContext(ctx, &parent, query, id); err != nil {
		return nil, err
	}
	return &parent, nil
}

// FindByPhone fetches a parent by registered phone number.
func (r *ParentRepository) FindByPhone(ctx context.Context, phone string) (*models.Parent, error) {
	query := fmt.Sprintf("SELECT %s FROM parents WHERE phone = $1 LIMIT 1", parentColumns)
	var parent models.Parent
	if err := r.db.GetContext(ctx, &parent, query, phone); err != nil {
		return nil, err
	}
	return &parent, nil
}

// Lock takes the parent's row lock inside the caller's transaction. All
// reconciliation work for a parent serializes on this lock. Returns
// sql.ErrNoRows when the parent does not exist.
func (r *ParentRepository) Lock(ctx context.Context, q sqlx.ExtContext, id string) error {
	var locked string
	if err := sqlx.GetContext(ctx, q, &locked, `SELECT id FROM parents WHERE id = $1 FOR UPDATE`, id); err != nil {
		return err
	}
	return nil
}

// ExistsByPhone checks if a parent with given phone exists optionally excluding an ID.
func (r *ParentRepository) ExistsByPhone(ctx context.Context, phone string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM parents WHERE phone = $1"
	args := []interface{}{phone}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check phone: %w", err)
	}
	return true, nil
}

// Create inserts a new parent record.
func (r *ParentRepository) Create(ctx context.Context, parent *models.Parent) error {
	if parent.ID == "" {
		parent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if parent.CreatedAt.IsZero() {
		parent.CreatedAt = now
	}
	parent.UpdatedAt = now
	const query = `INSERT INTO parents (id, name, phone, whatsapp, created_at, updated_at)
        VALUES (:id, :name, :phone, :whatsapp, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, parent); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	return nil
}

// Update modifies an existing parent.
func (r *ParentRepository) Update(ctx context.Context, parent *models.Parent) error {
	parent.UpdatedAt = time.Now().UTC()
	const query = `UPDATE parents SET name = :name, phone = :phone, whatsapp = :whatsapp, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, parent); err != nil {
		return fmt.Errorf("update parent: %w", err)
	}
	return nil
}

// DeleteCascade removes a parent together with their students and the
// students' fee records in a single transaction. The schema's ON DELETE
// CASCADE would cover this too; the explicit statements keep the cascade
// visible and let callers rely on it regardless of schema drift.
func (r *ParentRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete parent: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM fees WHERE student_id IN (SELECT id FROM students WHERE parent_id = $1)`, id); err != nil {
		return fmt.Errorf("delete fees for parent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE parent_id = $1`, id); err != nil {
		return fmt.Errorf("delete payments for parent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE parent_id = $1`, id); err != nil {
		return fmt.Errorf("delete students for parent: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM parents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete parent: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete parent: %w", err)
	}
	return nil
}
