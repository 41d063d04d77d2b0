package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/ledger"
	"github.com/pahal-edu/pahal-api/internal/models"
	"github.com/pahal-edu/pahal-api/internal/service"
)

type fakeFeeRepo struct {
	filters []models.FeeFilter
}

func (f *fakeFeeRepo) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	f.filters = append(f.filters, filter)
	return nil, 0, nil
}

func (f *fakeFeeRepo) FindByID(ctx context.Context, id string) (*models.FeeDetail, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeFeeRepo) Create(ctx context.Context, fee *models.Fee) error { return nil }

func (f *fakeFeeRepo) Upsert(ctx context.Context, fee *models.Fee) error { return nil }

func (f *fakeFeeRepo) UpdateStatus(ctx context.Context, id string, status models.FeeStatus, paymentDate *time.Time) error {
	return nil
}

func (f *fakeFeeRepo) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeFeeRepo) ListByDueDate(ctx context.Context, dueDate time.Time) ([]models.Fee, error) {
	return nil, nil
}

func (f *fakeFeeRepo) ListAllDetails(ctx context.Context) ([]models.FeeDetail, error) {
	return nil, nil
}

type fakeStudentReader struct{}

func (fakeStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	return nil, sql.ErrNoRows
}

func (fakeStudentReader) ListAll(ctx context.Context) ([]models.Student, error) { return nil, nil }

type fakePaymentLister struct{}

func (fakePaymentLister) ListAll(ctx context.Context) ([]models.Payment, error) { return nil, nil }

func newTestFeeHandler(fees *fakeFeeRepo) *FeeHandler {
	svc := service.NewFeeService(fees, fakeStudentReader{}, fakePaymentLister{}, nil, nil, ledger.BillingRates{}, "UTC", time.Minute, validator.New(), zap.NewNop())
	return NewFeeHandler(svc)
}

// A parent's ledger pages like the admin list does; the parentId path
// param and the paging query params all reach the repository filter.
func TestFeeHandlerListByParentPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fees := &fakeFeeRepo{}
	handler := newTestFeeHandler(fees)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/fees/parent/p1?page=3&limit=25", nil)
	c.Params = gin.Params{{Key: "parentId", Value: "p1"}}

	handler.ListByParent(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fees.filters, 1)
	assert.Equal(t, "p1", fees.filters[0].ParentID)
	assert.Equal(t, 3, fees.filters[0].Page)
	assert.Equal(t, 25, fees.filters[0].PageSize)
}

func TestFeeHandlerListByParentDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fees := &fakeFeeRepo{}
	handler := newTestFeeHandler(fees)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/fees/parent/p1", nil)
	c.Params = gin.Params{{Key: "parentId", Value: "p1"}}

	handler.ListByParent(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fees.filters, 1)
	assert.Equal(t, 1, fees.filters[0].Page)
	assert.Equal(t, 50, fees.filters[0].PageSize)
}
