package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pahal-edu/pahal-api/internal/service"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/response"
)

// StatementHandler exposes the asynchronous statement export endpoints.
type StatementHandler struct {
	statements *service.StatementService
}

// NewStatementHandler constructs StatementHandler.
func NewStatementHandler(statements *service.StatementService) *StatementHandler {
	return &StatementHandler{statements: statements}
}

// Request godoc
// @Summary Queue a statement export
// @Description Queues a CSV or PDF fee statement, optionally scoped to one parent
// @Tags Statements
// @Accept json
// @Produce json
// @Param payload body service.RequestStatementRequest true "Statement payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /statements [post]
func (h *StatementHandler) Request(c *gin.Context) {
	var req service.RequestStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	requestedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		requestedBy = claims.SubjectID
	}
	job, err := h.statements.Request(c.Request.Context(), req, requestedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Get godoc
// @Summary Get statement job
// @Description Returns job status, with a signed download link once done
// @Tags Statements
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /statements/{id} [get]
func (h *StatementHandler) Get(c *gin.Context) {
	job, err := h.statements.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a rendered statement
// @Description Streams the statement file for a valid signed token
// @Tags Statements
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /statements/download [get]
func (h *StatementHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, err := h.statements.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.File(file.Name())
}
