package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/models"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
)

type parentRepository interface {
	List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, int, error)
	FindByID(ctx context.Context, id string) (*models.Parent, error)
	ExistsByPhone(ctx context.Context, phone string, excludeID string) (bool, error)
	Create(ctx context.Context, parent *models.Parent) error
	Update(ctx context.Context, parent *models.Parent) error
	DeleteCascade(ctx context.Context, id string) error
}

type childLister interface {
	ListByParent(ctx context.Context, parentID string) ([]models.Student, error)
}

type feeTotalReader interface {
	TotalOwedByParent(ctx context.Context, parentID string) (int64, error)
}

type paymentHistoryReader interface {
	ListByParent(ctx context.Context, parentID string) ([]models.Payment, error)
}

// CreateParentRequest holds payload for registering a parent.
type CreateParentRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	WhatsApp string `json:"whatsapp"`
}

// UpdateParentRequest holds payload for updating a parent.
type UpdateParentRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	WhatsApp string `json:"whatsapp"`
}

// ParentService handles parent use-cases.
type ParentService struct {
	repo      parentRepository
	students  childLister
	fees      feeTotalReader
	payments  paymentHistoryReader
	summaries summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewParentService constructs the parent service.
func NewParentService(repo parentRepository, students childLister, fees feeTotalReader, payments paymentHistoryReader, summaries summaryInvalidator, validate *validator.Validate, logger *zap.Logger) *ParentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParentService{repo: repo, students: students, fees: fees, payments: payments, summaries: summaries, validator: validate, logger: logger}
}

// List returns parents and pagination metadata.
func (s *ParentService) List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, *models.Pagination, error) {
	parents, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parents")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return parents, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a parent together with their children.
func (s *ParentService) Get(ctx context.Context, id string) (*models.ParentDetail, error) {
	parent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	children, err := s.students.ListByParent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
	}
	return &models.ParentDetail{Parent: *parent, Children: children}, nil
}

// Balance reports the parent's owed-versus-paid position over the full
// ledger history.
func (s *ParentService) Balance(ctx context.Context, id string) (*models.ParentBalance, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	totalFees, err := s.fees.TotalOwedByParent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total fees")
	}
	payments, err := s.payments.ListByParent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	var totalPaid int64
	for _, payment := range payments {
		totalPaid += payment.AmountPaid
	}
	return &models.ParentBalance{
		ParentID:      id,
		TotalFees:     totalFees,
		TotalPayments: totalPaid,
		Due:           totalFees - totalPaid,
	}, nil
}

// Create registers a new parent. Phone numbers are unique: they double as
// the parent login identifier.
func (s *ParentService) Create(ctx context.Context, req CreateParentRequest) (*models.Parent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}
	exists, err := s.repo.ExistsByPhone(ctx, req.Phone, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate phone")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicatePhone, "phone already registered")
	}
	parent := &models.Parent{
		Name:     req.Name,
		Phone:    req.Phone,
		WhatsApp: req.WhatsApp,
	}
	if err := s.repo.Create(ctx, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create parent")
	}
	return parent, nil
}

// Update modifies an existing parent.
func (s *ParentService) Update(ctx context.Context, id string, req UpdateParentRequest) (*models.Parent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}
	parent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	exists, err := s.repo.ExistsByPhone(ctx, req.Phone, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate phone")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicatePhone, "phone already registered")
	}

	parent.Name = req.Name
	parent.Phone = req.Phone
	parent.WhatsApp = req.WhatsApp
	if err := s.repo.Update(ctx, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update parent")
	}
	return parent, nil
}

// Delete removes a parent and, through the cascade, their students, fees
// and payments.
func (s *ParentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete parent")
	}
	if s.summaries != nil {
		s.summaries.InvalidateSummary(ctx)
	}
	s.logger.Info("parent deleted", zap.String("parent_id", id))
	return nil
}
