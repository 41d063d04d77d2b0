package service

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/models"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/export"
)

// paymentReconciler runs the atomic payment-plus-recompute cycle.
type paymentReconciler interface {
	RecordPayment(ctx context.Context, payment *models.Payment) error
	DeletePayment(ctx context.Context, id string) error
}

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	ListByParent(ctx context.Context, parentID string) ([]models.Payment, error)
	ListAll(ctx context.Context) ([]models.Payment, error)
}

type parentReader interface {
	FindByID(ctx context.Context, id string) (*models.Parent, error)
}

type summaryInvalidator interface {
	InvalidateSummary(ctx context.Context)
}

// ProcessPaymentRequest holds payload for recording a payment.
type ProcessPaymentRequest struct {
	ParentID      string     `json:"parent_id" validate:"required"`
	AmountPaid    int64      `json:"amount_paid" validate:"required,gt=0"`
	PaymentDate   *time.Time `json:"payment_date"`
	TransactionID string     `json:"transaction_id"`
}

// PaymentService records and deletes payments. Both mutations run through
// the reconciler so fee statuses always reflect the full payment history.
type PaymentService struct {
	reconciler paymentReconciler
	payments   paymentRepository
	parents    parentReader
	students   childLister
	summaries  summaryInvalidator
	metrics    *MetricsService
	pdf        *export.PDFExporter
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewPaymentService constructs the payment service.
func NewPaymentService(reconciler paymentReconciler, payments paymentRepository, parents parentReader, students childLister, summaries summaryInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		reconciler: reconciler,
		payments:   payments,
		parents:    parents,
		students:   students,
		summaries:  summaries,
		metrics:    metrics,
		pdf:        export.NewPDFExporter(),
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// Record validates and persists a payment, reconciling the parent's fees
// in the same transaction.
func (s *PaymentService) Record(ctx context.Context, req ProcessPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidAmount.Code, appErrors.ErrInvalidAmount.Status, "invalid payment payload")
	}
	if _, err := s.parents.FindByID(ctx, req.ParentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}

	paymentDate := s.now().UTC()
	if req.PaymentDate != nil {
		paymentDate = req.PaymentDate.UTC()
	}
	transactionID := req.TransactionID
	if transactionID == "" {
		transactionID = newTransactionID(s.now())
	}

	payment := &models.Payment{
		ParentID:      req.ParentID,
		AmountPaid:    req.AmountPaid,
		PaymentDate:   paymentDate,
		TransactionID: transactionID,
	}

	start := s.now()
	if err := s.reconciler.RecordPayment(ctx, payment); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	if s.metrics != nil {
		s.metrics.RecordPaymentAction("recorded")
		s.metrics.ObserveReconciliation(time.Since(start))
	}
	if s.summaries != nil {
		s.summaries.InvalidateSummary(ctx)
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("parent_id", payment.ParentID),
		zap.Int64("amount_paid", payment.AmountPaid),
		zap.String("transaction_id", payment.TransactionID))
	return payment, nil
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// List returns payments, optionally restricted to one parent.
func (s *PaymentService) List(ctx context.Context, parentID string) ([]models.Payment, error) {
	if parentID == "" {
		payments, err := s.payments.ListAll(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
		}
		return payments, nil
	}
	if _, err := s.parents.FindByID(ctx, parentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	payments, err := s.payments.ListByParent(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Receipt renders a one-page PDF receipt for a recorded payment.
func (s *PaymentService) Receipt(ctx context.Context, id string) ([]byte, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	parent, err := s.parents.FindByID(ctx, payment.ParentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	children, err := s.students.ListByParent(ctx, parent.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	names := make([]string, 0, len(children))
	for _, child := range children {
		names = append(names, child.Name)
	}

	receipt := export.Receipt{
		SchoolName:    "Pahal School",
		TransactionID: payment.TransactionID,
		ParentName:    parent.Name,
		ParentPhone:   parent.Phone,
		AmountPaid:    fmt.Sprintf("Rs. %d", payment.AmountPaid),
		PaymentDate:   payment.PaymentDate.Format("2006-01-02"),
		Children:      names,
	}
	data, err := s.pdf.RenderReceipt(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}

// Delete removes a payment and reverses its effect on the parent's fees.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	start := s.now()
	if err := s.reconciler.DeletePayment(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	if s.metrics != nil {
		s.metrics.RecordPaymentAction("deleted")
		s.metrics.ObserveReconciliation(time.Since(start))
	}
	if s.summaries != nil {
		s.summaries.InvalidateSummary(ctx)
	}

	s.logger.Info("payment deleted", zap.String("payment_id", id))
	return nil
}

// newTransactionID builds a human-scannable receipt reference.
func newTransactionID(now time.Time) string {
	return fmt.Sprintf("TXN-%d-%04d", now.UnixMilli(), rand.Intn(10000)) //nolint:gosec
}
