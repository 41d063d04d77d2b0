package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/models"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
)

type attendanceRepository interface {
	UpsertForDate(ctx context.Context, att *models.Attendance) error
	ListByDate(ctx context.Context, date time.Time) ([]models.AttendanceDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Attendance, error)
	Delete(ctx context.Context, id string) error
}

// MarkAttendanceRequest records one register page: a date and one status
// per student.
type MarkAttendanceRequest struct {
	Date    time.Time                          `json:"date" validate:"required"`
	Entries map[string]models.AttendanceStatus `json:"entries" validate:"required,min=1"`
}

// MarkAttendanceResult reports one register write.
type MarkAttendanceResult struct {
	Date   string `json:"date"`
	Marked int    `json:"marked"`
	Failed int    `json:"failed"`
}

// AttendanceService handles the daily register use-cases.
type AttendanceService struct {
	repo      attendanceRepository
	students  studentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students studentReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, students: students, validator: validate, logger: logger}
}

// Mark upserts one register entry per student for the given day. An
// unknown status anywhere rejects the whole page; an unknown student is
// counted and skipped so one stale row cannot block the register.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*MarkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	for _, status := range req.Entries {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
		}
	}

	day := registerDay(req.Date)
	result := &MarkAttendanceResult{Date: day.Format("2006-01-02")}
	for studentID, status := range req.Entries {
		if _, err := s.students.FindByID(ctx, studentID); err != nil {
			result.Failed++
			s.logger.Warn("attendance entry skipped",
				zap.String("student_id", studentID),
				zap.Error(err))
			continue
		}
		att := &models.Attendance{StudentID: studentID, Date: day, Status: status}
		if err := s.repo.UpsertForDate(ctx, att); err != nil {
			result.Failed++
			s.logger.Error("attendance upsert failed",
				zap.String("student_id", studentID),
				zap.Error(err))
			continue
		}
		result.Marked++
	}
	return result, nil
}

// ByDate returns the full register for one day.
func (s *AttendanceService) ByDate(ctx context.Context, date time.Time) ([]models.AttendanceDetail, error) {
	entries, err := s.repo.ListByDate(ctx, registerDay(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return entries, nil
}

// ByStudent returns a student's register history.
func (s *AttendanceService) ByStudent(ctx context.Context, studentID string) ([]models.Attendance, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	entries, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return entries, nil
}

// Delete removes one register entry.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	return nil
}

// registerDay normalizes any timestamp to its UTC calendar day, the
// granularity the register's uniqueness works at.
func registerDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
