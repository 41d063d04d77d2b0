package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pahal-edu/pahal-api/internal/service"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/response"
)

// PerformanceHandler exposes test result endpoints.
type PerformanceHandler struct {
	performance *service.PerformanceService
}

// NewPerformanceHandler constructs PerformanceHandler.
func NewPerformanceHandler(performance *service.PerformanceService) *PerformanceHandler {
	return &PerformanceHandler{performance: performance}
}

// Record godoc
// @Summary Record a test result
// @Tags Performance
// @Accept json
// @Produce json
// @Param payload body service.RecordPerformanceRequest true "Result payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /performance [post]
func (h *PerformanceHandler) Record(c *gin.Context) {
	var req service.RecordPerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	perf, err := h.performance.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, perf)
}

// List godoc
// @Summary List test results
// @Tags Performance
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /performance [get]
func (h *PerformanceHandler) List(c *gin.Context) {
	results, err := h.performance.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// ByStudent godoc
// @Summary Get a student's test history
// @Tags Performance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /performance/student/{studentId} [get]
func (h *PerformanceHandler) ByStudent(c *gin.Context) {
	results, err := h.performance.ByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Update godoc
// @Summary Correct a test result's marks
// @Tags Performance
// @Accept json
// @Produce json
// @Param id path string true "Performance ID"
// @Param payload body service.UpdatePerformanceRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /performance/{id} [patch]
func (h *PerformanceHandler) Update(c *gin.Context) {
	var req service.UpdatePerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.performance.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete a test result
// @Tags Performance
// @Produce json
// @Param id path string true "Performance ID"
// @Success 204
// @Security BearerAuth
// @Router /performance/{id} [delete]
func (h *PerformanceHandler) Delete(c *gin.Context) {
	if err := h.performance.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
