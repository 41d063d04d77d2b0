package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pahal-edu/pahal-api/internal/models"
	"github.com/pahal-edu/pahal-api/internal/service"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/response"
)

// PaymentHandler exposes payment endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param parentId query string false "Filter by parent"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	payments, err := h.payments.List(c.Request.Context(), c.Query("parentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// ListByParent godoc
// @Summary List a parent's payment history
// @Tags Payments
// @Produce json
// @Param parentId path string true "Parent ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/parent/{parentId} [get]
func (h *PaymentHandler) ListByParent(c *gin.Context) {
	payments, err := h.payments.List(c.Request.Context(), c.Param("parentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Record godoc
// @Summary Record payment
// @Description Records a payment and reconciles the parent's fees atomically
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.ProcessPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	var req service.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Receipt godoc
// @Summary Download payment receipt
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	// Parents can fetch receipts for their own payments only.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleParent {
		payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		if payment.ParentID != claims.SubjectID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}

	data, err := h.payments.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("receipt-%s.pdf", c.Param("id"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// Delete godoc
// @Summary Delete payment
// @Description Deletes a payment and reverses its effect on fee statuses
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 204
// @Security BearerAuth
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.payments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
