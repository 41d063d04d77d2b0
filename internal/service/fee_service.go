package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/ledger"
	"github.com/pahal-edu/pahal-api/internal/models"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
)

const (
	summaryCacheKey     = "summary:monthly"
	summaryCachePattern = "summary:*"

	pqUniqueViolation = "23505"
)

type feeRepository interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.FeeDetail, error)
	Create(ctx context.Context, fee *models.Fee) error
	Upsert(ctx context.Context, fee *models.Fee) error
	UpdateStatus(ctx context.Context, id string, status models.FeeStatus, paymentDate *time.Time) error
	Delete(ctx context.Context, id string) error
	ListByDueDate(ctx context.Context, dueDate time.Time) ([]models.Fee, error)
	ListAllDetails(ctx context.Context) ([]models.FeeDetail, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ListAll(ctx context.Context) ([]models.Student, error)
}

type paymentReader interface {
	ListAll(ctx context.Context) ([]models.Payment, error)
}

// AddFeeRequest holds payload for manually adding a fee.
type AddFeeRequest struct {
	StudentID string    `json:"student_id" validate:"required"`
	Amount    int64     `json:"amount" validate:"gte=0"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

// UpdateFeeStatusRequest holds payload for a manual status edit.
type UpdateFeeStatusRequest struct {
	Status      models.FeeStatus `json:"status" validate:"required"`
	PaymentDate *time.Time       `json:"payment_date"`
}

// GenerationResult reports one generator run.
type GenerationResult struct {
	Period  string `json:"period"`
	DueDate string `json:"due_date"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// FeeService handles fee use-cases: the monthly generator, manual fee
// edits and the summary aggregation.
type FeeService struct {
	fees       feeRepository
	students   studentReader
	payments   paymentReader
	cache      *CacheService
	metrics    *MetricsService
	rates      ledger.BillingRates
	loc        *time.Location
	summaryTTL time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewFeeService constructs the fee service. timezone names the billing
// calendar's location; an unknown name falls back to UTC.
func NewFeeService(fees feeRepository, students studentReader, payments paymentReader, cache *CacheService, metrics *MetricsService, rates ledger.BillingRates, timezone string, summaryTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("unknown billing timezone, using UTC", zap.String("timezone", timezone))
		loc = time.UTC
	}
	return &FeeService{
		fees:       fees,
		students:   students,
		payments:   payments,
		cache:      cache,
		metrics:    metrics,
		rates:      rates,
		loc:        loc,
		summaryTTL: summaryTTL,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns fees and pagination metadata.
func (s *FeeService) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee status")
	}
	fees, total, err := s.fees.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return fees, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one fee with its student linkage.
func (s *FeeService) Get(ctx context.Context, id string) (*models.FeeDetail, error) {
	fee, err := s.fees.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	return fee, nil
}

// Add registers a manual fee for a student, outside the generator cycle.
func (s *FeeService) Add(ctx context.Context, req AddFeeRequest) (*models.Fee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	fee := &models.Fee{
		StudentID:     student.ID,
		Amount:        req.Amount,
		DueDate:       req.DueDate.UTC().Truncate(24 * time.Hour),
		Status:        models.FeeStatusPending,
		Transport:     student.Transport,
		Accommodation: student.Accommodation,
	}
	if err := s.fees.Create(ctx, fee); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateFeePeriod, "student already has a fee for this due date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee")
	}
	s.invalidateSummary(ctx)
	return fee, nil
}

// UpdateStatus applies a manual settlement edit to one fee.
func (s *FeeService) UpdateStatus(ctx context.Context, id string, req UpdateFeeStatusRequest) (*models.FeeDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee status")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	paymentDate := req.PaymentDate
	switch req.Status {
	case models.FeeStatusPaid:
		if paymentDate == nil {
			now := s.now().UTC()
			paymentDate = &now
		}
	case models.FeeStatusPending:
		paymentDate = nil
	}

	if err := s.fees.UpdateStatus(ctx, id, req.Status, paymentDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee")
	}
	s.invalidateSummary(ctx)
	return s.Get(ctx, id)
}

// Delete removes a fee record.
func (s *FeeService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.fees.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fee")
	}
	s.invalidateSummary(ctx)
	return nil
}

// GenerateForPreviousMonth runs one generator cycle for the billing period
// before the current wall-clock month. The cycle is idempotent: students
// already holding an up-to-date fee row for the period produce no writes,
// so the daily schedule and manual triggers can overlap freely. A failure
// on one student is logged and counted without aborting the rest.
func (s *FeeService) GenerateForPreviousMonth(ctx context.Context) (*GenerationResult, error) {
	period := ledger.PreviousPeriod(s.now(), s.loc)
	dueDate := period.DueDate()

	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	existingRows, err := s.fees.ListByDueDate(ctx, dueDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing fees")
	}
	existing := make(map[string]models.Fee, len(existingRows))
	for _, fee := range existingRows {
		existing[fee.StudentID] = fee
	}

	writes := ledger.BuildFeesForPeriod(students, existing, period, s.rates)
	result := &GenerationResult{
		Period:  dueDate.Format("2006-01"),
		DueDate: dueDate.Format("2006-01-02"),
		Skipped: len(students) - len(writes),
	}

	for _, write := range writes {
		fee := write.Fee
		if err := s.fees.Upsert(ctx, &fee); err != nil {
			result.Failed++
			s.logger.Error("fee generation failed for student",
				zap.String("student_id", fee.StudentID),
				zap.Time("due_date", fee.DueDate),
				zap.Error(err))
			continue
		}
		if write.Create {
			result.Created++
		} else {
			result.Updated++
		}
	}

	if s.metrics != nil {
		s.metrics.RecordFeeGeneration("created", result.Created)
		s.metrics.RecordFeeGeneration("updated", result.Updated)
		s.metrics.RecordFeeGeneration("skipped", result.Skipped)
		s.metrics.RecordFeeGeneration("failed", result.Failed)
	}
	if result.Created > 0 || result.Updated > 0 {
		s.invalidateSummary(ctx)
	}

	s.logger.Info("fee generation cycle finished",
		zap.String("period", result.Period),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// MonthlySummary aggregates owed-versus-paid balances across all parents.
// The payload is cached; any ledger write invalidates it.
func (s *FeeService) MonthlySummary(ctx context.Context) (*models.MonthlySummary, error) {
	var cached models.MonthlySummary
	if hit, _ := s.cache.Get(ctx, summaryCacheKey, &cached); hit {
		return &cached, nil
	}

	fees, err := s.fees.ListAllDetails(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fees")
	}
	payments, err := s.payments.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	currentDue := ledger.PreviousPeriod(s.now(), s.loc).DueDate()
	summary := ledger.BuildMonthlySummary(fees, payments, currentDue, s.now().UTC())

	_ = s.cache.Set(ctx, summaryCacheKey, summary, s.summaryTTL)
	return &summary, nil
}

// InvalidateSummary drops cached summary payloads. Exposed for the payment
// service, whose writes change the balances the summary reports.
func (s *FeeService) InvalidateSummary(ctx context.Context) {
	s.invalidateSummary(ctx)
}

func (s *FeeService) invalidateSummary(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, summaryCachePattern); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
