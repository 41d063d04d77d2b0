package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pahal-edu/pahal-api/internal/service"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/response"
)

// ReminderHandler exposes due-fee SMS reminder endpoints.
type ReminderHandler struct {
	reminders *service.ReminderService
}

// NewReminderHandler constructs ReminderHandler.
func NewReminderHandler(reminders *service.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders}
}

type manualReminderRequest struct {
	Due int64 `json:"due"`
}

// Run godoc
// @Summary Send due-fee reminders
// @Description Texts every parent whose outstanding balance crosses the threshold
// @Tags Reminders
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /reminders/run [post]
func (h *ReminderHandler) Run(c *gin.Context) {
	result, err := h.reminders.SendDueReminders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SendToParent godoc
// @Summary Send reminder to one parent
// @Description Texts a single parent regardless of the threshold
// @Tags Reminders
// @Accept json
// @Produce json
// @Param parentId path string true "Parent ID"
// @Param payload body manualReminderRequest false "Amount to quote in the message"
// @Success 204
// @Security BearerAuth
// @Router /reminders/parents/{parentId} [post]
func (h *ReminderHandler) SendToParent(c *gin.Context) {
	var req manualReminderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	if err := h.reminders.SendReminderToParent(c.Request.Context(), c.Param("parentId"), req.Due); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
