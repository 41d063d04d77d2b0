package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pahal-edu/pahal-api/internal/service"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/response"
)

const registerDateLayout = "2006-01-02"

// AttendanceHandler exposes the daily register endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Mark godoc
// @Summary Mark attendance
// @Description Records one register page: a date and a status per student
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Register payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ByDate godoc
// @Summary Get register for a day
// @Tags Attendance
// @Produce json
// @Param date path string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/date/{date} [get]
func (h *AttendanceHandler) ByDate(c *gin.Context) {
	date, err := time.Parse(registerDateLayout, c.Param("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	entries, err := h.attendance.ByDate(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ByStudent godoc
// @Summary Get a student's register history
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/student/{studentId} [get]
func (h *AttendanceHandler) ByStudent(c *gin.Context) {
	entries, err := h.attendance.ByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Delete godoc
// @Summary Delete a register entry
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 204
// @Security BearerAuth
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.attendance.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
