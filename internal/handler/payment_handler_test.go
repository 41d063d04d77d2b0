package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/models"
	"github.com/pahal-edu/pahal-api/internal/service"
)

type fakeReconciler struct {
	recorded []*models.Payment
	deleted  []string
}

func (f *fakeReconciler) RecordPayment(ctx context.Context, payment *models.Payment) error {
	payment.ID = "pay-1"
	f.recorded = append(f.recorded, payment)
	return nil
}

func (f *fakeReconciler) DeletePayment(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePaymentRepo struct {
	payments map[string]models.Payment
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if payment, ok := f.payments[id]; ok {
		return &payment, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentRepo) ListByParent(ctx context.Context, parentID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, payment := range f.payments {
		if payment.ParentID == parentID {
			out = append(out, payment)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) ListAll(ctx context.Context) ([]models.Payment, error) {
	var out []models.Payment
	for _, payment := range f.payments {
		out = append(out, payment)
	}
	return out, nil
}

type fakeParentRepo struct {
	parents map[string]models.Parent
}

func (f *fakeParentRepo) FindByID(ctx context.Context, id string) (*models.Parent, error) {
	if parent, ok := f.parents[id]; ok {
		return &parent, nil
	}
	return nil, sql.ErrNoRows
}

type fakeChildLister struct{}

func (fakeChildLister) ListByParent(ctx context.Context, parentID string) ([]models.Student, error) {
	return []models.Student{{ID: "s1", Name: "Asha", ParentID: parentID}}, nil
}

type fakeInvalidator struct{}

func (fakeInvalidator) InvalidateSummary(ctx context.Context) {}

func newTestPaymentHandler(reconciler *fakeReconciler, payments *fakePaymentRepo, parents *fakeParentRepo) *PaymentHandler {
	svc := service.NewPaymentService(reconciler, payments, parents, fakeChildLister{}, fakeInvalidator{}, nil, validator.New(), zap.NewNop())
	return NewPaymentHandler(svc)
}

func TestPaymentHandlerRecord(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reconciler := &fakeReconciler{}
	parents := &fakeParentRepo{parents: map[string]models.Parent{"p1": {ID: "p1", Name: "Ravi", Phone: "9876500001"}}}
	handler := newTestPaymentHandler(reconciler, &fakePaymentRepo{}, parents)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := strings.NewReader(`{"parent_id":"p1","amount_paid":1200}`)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments", body)
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Record(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, reconciler.recorded, 1)

	var envelope struct {
		Data models.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "pay-1", envelope.Data.ID)
	assert.True(t, strings.HasPrefix(envelope.Data.TransactionID, "TXN-"))
}

func TestPaymentHandlerRecordInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestPaymentHandler(&fakeReconciler{}, &fakePaymentRepo{}, &fakeParentRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"parent_id":`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Record(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentHandlerGetMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestPaymentHandler(&fakeReconciler{}, &fakePaymentRepo{}, &fakeParentRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/payments/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reconciler := &fakeReconciler{}
	handler := newTestPaymentHandler(reconciler, &fakePaymentRepo{}, &fakeParentRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/payments/pay-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"pay-1"}, reconciler.deleted)
}
