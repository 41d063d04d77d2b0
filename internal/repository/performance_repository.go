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

// PerformanceRepository manages persistence for test results.
type PerformanceRepository struct {
	db *sqlx.DB
}

// NewPerformanceRepository constructs a PerformanceRepository.
func NewPerformanceRepository(db *sqlx.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

const performanceDetailColumns = `p.id, p.student_id, p.test_date, p.subject, p.marks, p.created_at, p.updated_at,
        s.name AS student_name, s.class AS student_class`

// Create inserts a new test result.
func (r *PerformanceRepository) Create(ctx context.Context, perf *models.Performance) error {
	if perf.ID == "" {
		perf.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if perf.CreatedAt.IsZero() {
		perf.CreatedAt = now
	}
	perf.UpdatedAt = now
	const query = `INSERT INTO performance (id, student_id, test_date, subject, marks, created_at, updated_at)
        VALUES (:id, :student_id, :test_date, :subject, :marks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, perf); err != nil {
		return fmt.Errorf("create performance: %w", err)
	}
	return nil
}

// List returns every test result with student linkage, newest test first.
func (r *PerformanceRepository) List(ctx context.Context) ([]models.PerformanceDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM performance p JOIN students s ON s.id = p.student_id
        ORDER BY p.test_date DESC, p.created_at DESC`, performanceDetailColumns)
	var results []models.PerformanceDetail
	if err := r.db.SelectContext(ctx, &results, query); err != nil {
		return nil, fmt.Errorf("list performance: %w", err)
	}
	return results, nil
}

// ListByStudent returns one student's test history, newest test first.
func (r *PerformanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.PerformanceDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM performance p JOIN students s ON s.id = p.student_id
        WHERE p.student_id = $1 ORDER BY p.test_date DESC, p.created_at DESC`, performanceDetailColumns)
	var results []models.PerformanceDetail
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list performance by student: %w", err)
	}
	return results, nil
}

// FindByID fetches one test result with student linkage.
func (r *PerformanceRepository) FindByID(ctx context.Context, id string) (*models.PerformanceDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM performance p JOIN students s ON s.id = p.student_id WHERE p.id = $1`, performanceDetailColumns)
	var detail models.PerformanceDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdateMarks corrects the marks on an existing result. Returns
// sql.ErrNoRows when the result does not exist.
func (r *PerformanceRepository) UpdateMarks(ctx context.Context, id string, marks int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE performance SET marks = $2, updated_at = $3 WHERE id = $1`, id, marks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update performance marks: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a test result. Returns sql.ErrNoRows when absent.
func (r *PerformanceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM performance WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete performance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
