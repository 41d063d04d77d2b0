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

// AttendanceRepository manages persistence for the daily register.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceDetailColumns = `a.id, a.student_id, a.date, a.status, a.created_at, a.updated_at,
        s.name AS student_name, s.class AS student_class`

// UpsertForDate writes one register entry. Marking the same student and
// day twice overwrites the status instead of duplicating the row.
func (r *AttendanceRepository) UpsertForDate(ctx context.Context, att *models.Attendance) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if att.CreatedAt.IsZero() {
		att.CreatedAt = now
	}
	att.UpdatedAt = now
	const query = `INSERT INTO attendance (id, student_id, date, status, created_at, updated_at)
        VALUES (:id, :student_id, :date, :status, :created_at, :updated_at)
        ON CONFLICT (student_id, date) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListByDate returns the full register for one day, ordered for the
// class-wise sheet the admin screen renders.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]models.AttendanceDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance a JOIN students s ON s.id = a.student_id
        WHERE a.date = $1 ORDER BY s.class ASC, s.name ASC`, attendanceDetailColumns)
	var entries []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &entries, query, date); err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	return entries, nil
}

// ListByStudent returns a student's register history, newest day first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Attendance, error) {
	const query = `SELECT id, student_id, date, status, created_at, updated_at
        FROM attendance WHERE student_id = $1 ORDER BY date DESC`
	var entries []models.Attendance
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list attendance by student: %w", err)
	}
	return entries, nil
}

// Delete removes one register entry. Returns sql.ErrNoRows when the
// entry does not exist.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
