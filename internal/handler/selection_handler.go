package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniplan/enrollment-api/internal/service"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/response"
)

// SelectionRequest is the subject set a student wants to enroll in.
type SelectionRequest struct {
	SubjectIDs []string `json:"subject_ids"`
}

// SelectionHandler exposes the two-step enrollment workflow.
type SelectionHandler struct {
	service *service.SelectionService
}

// NewSelectionHandler constructs a selection handler.
func NewSelectionHandler(svc *service.SelectionService) *SelectionHandler {
	return &SelectionHandler{service: svc}
}

// Propose godoc
// @Summary Propose a subject selection
// @Description Validate a candidate subject set and report load and schedule conflicts
// @Tags Selection
// @Accept json
// @Produce json
// @Param payload body SelectionRequest true "Selection payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /selection/propose [post]
func (h *SelectionHandler) Propose(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	summary, err := h.service.Propose(c.Request.Context(), claims.UserID, req.SubjectIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Confirm godoc
// @Summary Confirm a subject selection
// @Description Commit the proposed subjects as in-progress history entries
// @Tags Selection
// @Accept json
// @Produce json
// @Param payload body SelectionRequest true "Selection payload"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /selection/confirm [post]
func (h *SelectionHandler) Confirm(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.Confirm(c.Request.Context(), claims.UserID, req.SubjectIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}
