package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/models"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
)

type mockReconciler struct {
	recorded  []*models.Payment
	deleted   []string
	recordErr error
	deleteErr error
}

func (m *mockReconciler) RecordPayment(ctx context.Context, payment *models.Payment) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	payment.ID = "new-payment"
	m.recorded = append(m.recorded, payment)
	return nil
}

func (m *mockReconciler) DeletePayment(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockPaymentRepo struct {
	payments map[string]models.Payment
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if payment, ok := m.payments[id]; ok {
		return &payment, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) ListByParent(ctx context.Context, parentID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, payment := range m.payments {
		if payment.ParentID == parentID {
			out = append(out, payment)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) ListAll(ctx context.Context) ([]models.Payment, error) {
	var out []models.Payment
	for _, payment := range m.payments {
		out = append(out, payment)
	}
	return out, nil
}

type mockParentRepo struct {
	parents map[string]models.Parent
}

func (m *mockParentRepo) FindByID(ctx context.Context, id string) (*models.Parent, error) {
	if parent, ok := m.parents[id]; ok {
		return &parent, nil
	}
	return nil, sql.ErrNoRows
}

type mockChildLister struct {
	children map[string][]models.Student
}

func (m *mockChildLister) ListByParent(ctx context.Context, parentID string) ([]models.Student, error) {
	return m.children[parentID], nil
}

type noopInvalidator struct{ calls int }

func (n *noopInvalidator) InvalidateSummary(ctx context.Context) { n.calls++ }

func newTestPaymentService(reconciler *mockReconciler, payments *mockPaymentRepo, parents *mockParentRepo) (*PaymentService, *noopInvalidator) {
	invalidator := &noopInvalidator{}
	students := &mockChildLister{children: map[string][]models.Student{
		"p1": {{ID: "s1", Name: "Asha", ParentID: "p1"}},
	}}
	svc := NewPaymentService(reconciler, payments, parents, students, invalidator, nil, validator.New(), zap.NewNop())
	return svc, invalidator
}

func TestPaymentServiceRecord(t *testing.T) {
	reconciler := &mockReconciler{}
	parents := &mockParentRepo{parents: map[string]models.Parent{"p1": {ID: "p1", Name: "Ravi"}}}
	svc, invalidator := newTestPaymentService(reconciler, &mockPaymentRepo{}, parents)

	payment, err := svc.Record(context.Background(), ProcessPaymentRequest{ParentID: "p1", AmountPaid: 1200})
	require.NoError(t, err)
	assert.Equal(t, "new-payment", payment.ID)
	assert.Equal(t, int64(1200), payment.AmountPaid)
	assert.True(t, strings.HasPrefix(payment.TransactionID, "TXN-"), "transaction id %q", payment.TransactionID)
	require.Len(t, reconciler.recorded, 1)
	assert.Equal(t, 1, invalidator.calls)
}

func TestPaymentServiceRecordRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestPaymentService(&mockReconciler{}, &mockPaymentRepo{}, &mockParentRepo{})

	for _, amount := range []int64{0, -500} {
		_, err := svc.Record(context.Background(), ProcessPaymentRequest{ParentID: "p1", AmountPaid: amount})
		require.Error(t, err, "amount %d", amount)

		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrInvalidAmount.Code, appErr.Code)
	}
}

func TestPaymentServiceRecordUnknownParent(t *testing.T) {
	svc, _ := newTestPaymentService(&mockReconciler{}, &mockPaymentRepo{}, &mockParentRepo{})

	_, err := svc.Record(context.Background(), ProcessPaymentRequest{ParentID: "ghost", AmountPaid: 600})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPaymentServiceRecordKeepsProvidedTransactionID(t *testing.T) {
	reconciler := &mockReconciler{}
	parents := &mockParentRepo{parents: map[string]models.Parent{"p1": {ID: "p1"}}}
	svc, _ := newTestPaymentService(reconciler, &mockPaymentRepo{}, parents)

	payment, err := svc.Record(context.Background(), ProcessPaymentRequest{
		ParentID:      "p1",
		AmountPaid:    600,
		TransactionID: "UPI-12345",
	})
	require.NoError(t, err)
	assert.Equal(t, "UPI-12345", payment.TransactionID)
}

func TestPaymentServiceDelete(t *testing.T) {
	reconciler := &mockReconciler{}
	svc, invalidator := newTestPaymentService(reconciler, &mockPaymentRepo{}, &mockParentRepo{})

	require.NoError(t, svc.Delete(context.Background(), "pay1"))
	assert.Equal(t, []string{"pay1"}, reconciler.deleted)
	assert.Equal(t, 1, invalidator.calls)
}

func TestPaymentServiceDeleteMissing(t *testing.T) {
	reconciler := &mockReconciler{deleteErr: sql.ErrNoRows}
	svc, _ := newTestPaymentService(reconciler, &mockPaymentRepo{}, &mockParentRepo{})

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPaymentServiceReceipt(t *testing.T) {
	payments := &mockPaymentRepo{payments: map[string]models.Payment{
		"pay1": {
			ID:            "pay1",
			ParentID:      "p1",
			AmountPaid:    1200,
			PaymentDate:   time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
			TransactionID: "TXN-1-0001",
		},
	}}
	parents := &mockParentRepo{parents: map[string]models.Parent{"p1": {ID: "p1", Name: "Ravi", Phone: "9876500001"}}}
	svc, _ := newTestPaymentService(&mockReconciler{}, payments, parents)

	data, err := svc.Receipt(context.Background(), "pay1")
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}
