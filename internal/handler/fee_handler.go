package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pahal-edu/pahal-api/internal/models"
	"github.com/pahal-edu/pahal-api/internal/service"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/response"
)

// FeeHandler exposes fee endpoints, including the generator trigger and
// the monthly summary.
type FeeHandler struct {
	fees *service.FeeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees *service.FeeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// List godoc
// @Summary List fees
// @Tags Fees
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param parentId query string false "Filter by parent"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	var filter models.FeeFilter
	filter.StudentID = c.Query("studentId")
	filter.ParentID = c.Query("parentId")
	filter.Status = models.FeeStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortOrder = c.Query("order")

	fees, pagination, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// ListPending godoc
// @Summary List pending fees
// @Tags Fees
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/pending [get]
func (h *FeeHandler) ListPending(c *gin.Context) {
	var filter models.FeeFilter
	filter.Status = models.FeeStatusPending
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	fees, pagination, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// ListByParent godoc
// @Summary List a parent's fees
// @Tags Fees
// @Produce json
// @Param parentId path string true "Parent ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/parent/{parentId} [get]
func (h *FeeHandler) ListByParent(c *gin.Context) {
	var filter models.FeeFilter
	filter.ParentID = c.Param("parentId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	fees, pagination, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// Get godoc
// @Summary Get fee detail
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	fee, err := h.fees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Add godoc
// @Summary Add fee manually
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.AddFeeRequest true "Fee payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /fees [post]
func (h *FeeHandler) Add(c *gin.Context) {
	var req service.AddFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fee, err := h.fees.Add(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fee)
}

// UpdateStatus godoc
// @Summary Update fee status
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.UpdateFeeStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id}/status [patch]
func (h *FeeHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateFeeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fee, err := h.fees.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Delete godoc
// @Summary Delete fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 204
// @Security BearerAuth
// @Router /fees/{id} [delete]
func (h *FeeHandler) Delete(c *gin.Context) {
	if err := h.fees.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Generate godoc
// @Summary Run fee generation
// @Description Generate fees for the previous billing month; safe to re-run
// @Tags Fees
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/generate [post]
func (h *FeeHandler) Generate(c *gin.Context) {
	result, err := h.fees.GenerateForPreviousMonth(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Summary godoc
// @Summary Monthly fee summary
// @Description Aggregated owed-versus-paid balances across all parents
// @Tags Fees
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/summary [get]
func (h *FeeHandler) Summary(c *gin.Context) {
	summary, err := h.fees.MonthlySummary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
