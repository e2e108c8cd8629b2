package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/boardinghub/boardinghub-api/internal/models"
	"github.com/boardinghub/boardinghub-api/internal/service"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
	"github.com/boardinghub/boardinghub-api/pkg/response"
)

// RegistrationHandler covers the admin review queue: listing responses,
// approving them into student accounts and rejecting them.
type RegistrationHandler struct {
	surveys      *service.SurveyService
	registration *service.RegistrationService
	trash        *service.TrashService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(surveys *service.SurveyService, registration *service.RegistrationService, trash *service.TrashService) *RegistrationHandler {
	return &RegistrationHandler{surveys: surveys, registration: registration, trash: trash}
}

// ListResponses godoc
// @Summary List survey responses
// @Tags Registration
// @Produce json
// @Param id path string true "Survey ID"
// @Param status query string false "Filter by status"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /surveys/{id}/responses [get]
func (h *RegistrationHandler) ListResponses(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ResponseFilter
	filter.SurveyID = c.Param("id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if status := c.Query("status"); status != "" {
		s := models.ResponseStatus(status)
		filter.Status = &s
	}
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"
	filter.Page, filter.PageSize = pageParams(c)

	responses, total, err := h.surveys.ListResponses(c.Request.Context(), claims.SchoolID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, responses, paginate(filter.Page, filter.PageSize, total))
}

// GetResponse godoc
// @Summary Get one response with answers
// @Tags Registration
// @Produce json
// @Param id path string true "Response ID"
// @Success 200 {object} response.Envelope
// @Router /responses/{id} [get]
func (h *RegistrationHandler) GetResponse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.surveys.GetResponse(c.Request.Context(), c.Param("id"), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve a response and register the student
// @Tags Registration
// @Produce json
// @Param id path string true "Response ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /responses/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.registration.ApproveAndRegister(c.Request.Context(), c.Param("id"), claims.UserID, claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a response
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Response ID"
// @Param payload body map[string]string false "Rejection notes"
// @Success 204 {object} response.Envelope
// @Router /responses/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&payload)

	if err := h.registration.Reject(c.Request.Context(), c.Param("id"), claims.UserID, claims.SchoolID, payload.Notes); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteResponse godoc
// @Summary Move a response to trash
// @Tags Registration
// @Produce json
// @Param id path string true "Response ID"
// @Success 200 {object} response.Envelope
// @Router /responses/{id} [delete]
func (h *RegistrationHandler) DeleteResponse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.trash.DeleteResponse(c.Request.Context(), c.Param("id"), claims.SchoolID, &claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
