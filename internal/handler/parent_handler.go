package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pahal-edu/pahal-api/internal/models"
	"github.com/pahal-edu/pahal-api/internal/service"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/response"
)

// ParentHandler exposes parent endpoints.
type ParentHandler struct {
	parents *service.ParentService
}

// NewParentHandler constructs ParentHandler.
func NewParentHandler(parents *service.ParentService) *ParentHandler {
	return &ParentHandler{parents: parents}
}

// List godoc
// @Summary List parents
// @Tags Parents
// @Produce json
// @Param search query string false "Search by name or phone"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /parents [get]
func (h *ParentHandler) List(c *gin.Context) {
	var filter models.ParentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	parents, pagination, err := h.parents.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parents, pagination)
}

// Get godoc
// @Summary Get parent detail with children
// @Tags Parents
// @Produce json
// @Param parentId path string true "Parent ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /parents/{parentId} [get]
func (h *ParentHandler) Get(c *gin.Context) {
	parent, err := h.parents.Get(c.Request.Context(), c.Param("parentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parent, nil)
}

// Balance godoc
// @Summary Get parent balance
// @Description Owed-versus-paid position over the full ledger history
// @Tags Parents
// @Produce json
// @Param parentId path string true "Parent ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /parents/{parentId}/balance [get]
func (h *ParentHandler) Balance(c *gin.Context) {
	balance, err := h.parents.Balance(c.Request.Context(), c.Param("parentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// Create godoc
// @Summary Register parent
// @Tags Parents
// @Accept json
// @Produce json
// @Param payload body service.CreateParentRequest true "Parent payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /parents [post]
func (h *ParentHandler) Create(c *gin.Context) {
	var req service.CreateParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	parent, err := h.parents.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, parent)
}

// Update godoc
// @Summary Update parent
// @Tags Parents
// @Accept json
// @Produce json
// @Param parentId path string true "Parent ID"
// @Param payload body service.UpdateParentRequest true "Parent payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /parents/{parentId} [put]
func (h *ParentHandler) Update(c *gin.Context) {
	var req service.UpdateParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	parent, err := h.parents.Update(c.Request.Context(), c.Param("parentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parent, nil)
}

// Delete godoc
// @Summary Delete parent
// @Description Removes the parent with their students, fees and payments
// @Tags Parents
// @Produce json
// @Param parentId path string true "Parent ID"
// @Success 204
// @Security BearerAuth
// @Router /parents/{parentId} [delete]
func (h *ParentHandler) Delete(c *gin.Context) {
	if err := h.parents.Delete(c.Request.Context(), c.Param("parentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
