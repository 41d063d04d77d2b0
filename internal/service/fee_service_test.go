package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/ledger"
	"github.com/pahal-edu/pahal-api/internal/models"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
)

type mockFeeRepo struct {
	fees      map[string]models.Fee
	createErr error
	upserts   []models.Fee
	statuses  map[string]models.FeeStatus
}

func (m *mockFeeRepo) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	return nil, 0, nil
}

func (m *mockFeeRepo) FindByID(ctx context.Context, id string) (*models.FeeDetail, error) {
	if fee, ok := m.fees[id]; ok {
		return &models.FeeDetail{Fee: fee}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) Create(ctx context.Context, fee *models.Fee) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.fees == nil {
		m.fees = make(map[string]models.Fee)
	}
	if fee.ID == "" {
		fee.ID = "new-fee"
	}
	m.fees[fee.ID] = *fee
	return nil
}

func (m *mockFeeRepo) Upsert(ctx context.Context, fee *models.Fee) error {
	if m.fees == nil {
		m.fees = make(map[string]models.Fee)
	}
	if fee.ID == "" {
		fee.ID = "fee-" + fee.StudentID
	}
	m.fees[fee.ID] = *fee
	m.upserts = append(m.upserts, *fee)
	return nil
}

func (m *mockFeeRepo) UpdateStatus(ctx context.Context, id string, status models.FeeStatus, paymentDate *time.Time) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.FeeStatus)
	}
	m.statuses[id] = status
	if fee, ok := m.fees[id]; ok {
		fee.Status = status
		fee.PaymentDate = paymentDate
		m.fees[id] = fee
	}
	return nil
}

func (m *mockFeeRepo) Delete(ctx context.Context, id string) error {
	delete(m.fees, id)
	return nil
}

func (m *mockFeeRepo) ListByDueDate(ctx context.Context, dueDate time.Time) ([]models.Fee, error) {
	var out []models.Fee
	for _, fee := range m.fees {
		if fee.DueDate.Equal(dueDate) {
			out = append(out, fee)
		}
	}
	return out, nil
}

func (m *mockFeeRepo) ListAllDetails(ctx context.Context) ([]models.FeeDetail, error) {
	var out []models.FeeDetail
	for _, fee := range m.fees {
		out = append(out, models.FeeDetail{Fee: fee, ParentID: "p-" + fee.StudentID})
	}
	return out, nil
}

type mockStudentRepo struct {
	students []models.Student
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	for _, student := range m.students {
		if student.ID == id {
			return &models.StudentDetail{Student: student}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ListAll(ctx context.Context) ([]models.Student, error) {
	return m.students, nil
}

type mockPaymentHistory struct {
	payments []models.Payment
}

func (m *mockPaymentHistory) ListAll(ctx context.Context) ([]models.Payment, error) {
	return m.payments, nil
}

func newTestFeeService(fees *mockFeeRepo, students *mockStudentRepo, payments *mockPaymentHistory) *FeeService {
	rates := ledger.BillingRates{Base: 600, Transport: 600, Accommodation: 2500}
	svc := NewFeeService(fees, students, payments, NewCacheService(nil, nil, 0, zap.NewNop(), false), nil, rates, "UTC", time.Minute, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestFeeServiceGenerateCreatesAndIsIdempotent(t *testing.T) {
	fees := &mockFeeRepo{}
	students := &mockStudentRepo{students: []models.Student{
		{ID: "s1"},
		{ID: "s2", Transport: true},
	}}
	svc := newTestFeeService(fees, students, &mockPaymentHistory{})

	result, err := svc.GenerateForPreviousMonth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, "2026-07-30", result.DueDate)

	// Second run sees the rows it just wrote and touches nothing.
	again, err := svc.GenerateForPreviousMonth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 2, again.Skipped)
	assert.Len(t, fees.upserts, 2)
}

func TestFeeServiceGenerateRefreshesOnFlagChange(t *testing.T) {
	dueDate := time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC)
	fees := &mockFeeRepo{fees: map[string]models.Fee{
		"f1": {ID: "f1", StudentID: "s1", Amount: 600, DueDate: dueDate, Status: models.FeeStatusPaid},
	}}
	students := &mockStudentRepo{students: []models.Student{{ID: "s1", Accommodation: true}}}
	svc := newTestFeeService(fees, students, &mockPaymentHistory{})

	result, err := svc.GenerateForPreviousMonth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)

	refreshed := fees.fees["f1"]
	assert.Equal(t, int64(3100), refreshed.Amount)
	assert.True(t, refreshed.Accommodation)
	assert.Equal(t, models.FeeStatusPaid, refreshed.Status)
}

func TestFeeServiceAddUnknownStudent(t *testing.T) {
	svc := newTestFeeService(&mockFeeRepo{}, &mockStudentRepo{}, &mockPaymentHistory{})

	_, err := svc.Add(context.Background(), AddFeeRequest{
		StudentID: "ghost",
		Amount:    600,
		DueDate:   time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestFeeServiceAddDuplicatePeriod(t *testing.T) {
	fees := &mockFeeRepo{createErr: &pq.Error{Code: "23505"}}
	students := &mockStudentRepo{students: []models.Student{{ID: "s1"}}}
	svc := newTestFeeService(fees, students, &mockPaymentHistory{})

	_, err := svc.Add(context.Background(), AddFeeRequest{
		StudentID: "s1",
		Amount:    600,
		DueDate:   time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrDuplicateFeePeriod.Code, appErr.Code)
}

func TestFeeServiceUpdateStatusDefaultsPaymentDate(t *testing.T) {
	fees := &mockFeeRepo{fees: map[string]models.Fee{
		"f1": {ID: "f1", StudentID: "s1", Amount: 600, Status: models.FeeStatusPending},
	}}
	svc := newTestFeeService(fees, &mockStudentRepo{}, &mockPaymentHistory{})

	updated, err := svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.FeeStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, updated.Status)
	require.NotNil(t, updated.PaymentDate)

	// Reverting to pending clears the payment date.
	reverted, err := svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.FeeStatusPending})
	require.NoError(t, err)
	assert.Nil(t, reverted.PaymentDate)
}

func TestFeeServiceMonthlySummary(t *testing.T) {
	dueDate := time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC)
	fees := &mockFeeRepo{fees: map[string]models.Fee{
		"f1": {ID: "f1", StudentID: "s1", Amount: 1200, DueDate: dueDate},
	}}
	payments := &mockPaymentHistory{payments: []models.Payment{
		{ID: "pay1", ParentID: "p-s1", AmountPaid: 600},
	}}
	svc := newTestFeeService(fees, &mockStudentRepo{}, payments)

	summary, err := svc.MonthlySummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1200), summary.TotalFeesCurrentMonth)
	assert.Equal(t, int64(600), summary.TotalUnpaidFees)
	require.Len(t, summary.Parents, 1)
	assert.Equal(t, int64(600), summary.Parents[0].Due)
}
