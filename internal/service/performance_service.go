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

type performanceRepository interface {
	Create(ctx context.Context, perf *models.Performance) error
	List(ctx context.Context) ([]models.PerformanceDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.PerformanceDetail, error)
	FindByID(ctx context.Context, id string) (*models.PerformanceDetail, error)
	UpdateMarks(ctx context.Context, id string, marks int) error
	Delete(ctx context.Context, id string) error
}

// RecordPerformanceRequest holds payload for entering a test result.
// The test date is server-set; results are entered the day of the test.
type RecordPerformanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Subject   string `json:"subject" validate:"max=100"`
	Marks     int    `json:"marks" validate:"gte=0,lte=100"`
}

// UpdatePerformanceRequest corrects the marks on an existing result.
type UpdatePerformanceRequest struct {
	Marks int `json:"marks" validate:"gte=0,lte=100"`
}

// PerformanceService handles test result use-cases.
type PerformanceService struct {
	repo      performanceRepository
	students  studentReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPerformanceService constructs the performance service.
func NewPerformanceService(repo performanceRepository, students studentReader, validate *validator.Validate, logger *zap.Logger) *PerformanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{repo: repo, students: students, validator: validate, logger: logger, now: time.Now}
}

// Record enters a test result for a student. An omitted subject gets the
// combined weekly test label.
func (s *PerformanceService) Record(ctx context.Context, req RecordPerformanceRequest) (*models.Performance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid performance payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	subject := req.Subject
	if subject == "" {
		subject = models.DefaultTestSubject
	}
	perf := &models.Performance{
		StudentID: req.StudentID,
		TestDate:  s.now().UTC(),
		Subject:   subject,
		Marks:     req.Marks,
	}
	if err := s.repo.Create(ctx, perf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record performance")
	}
	return perf, nil
}

// List returns every test result, newest test first.
func (s *PerformanceService) List(ctx context.Context) ([]models.PerformanceDetail, error) {
	results, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list performance")
	}
	return results, nil
}

// ByStudent returns one student's test history.
func (s *PerformanceService) ByStudent(ctx context.Context, studentID string) ([]models.PerformanceDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	results, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list performance")
	}
	return results, nil
}

// Update corrects the marks on an existing result.
func (s *PerformanceService) Update(ctx context.Context, id string, req UpdatePerformanceRequest) (*models.PerformanceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid performance payload")
	}
	if err := s.repo.UpdateMarks(ctx, id, req.Marks); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "performance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update performance")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load performance")
	}
	return detail, nil
}

// Delete removes a test result.
func (s *PerformanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "performance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete performance")
	}
	return nil
}
