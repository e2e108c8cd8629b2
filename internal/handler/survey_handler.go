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

// SurveyHandler exposes survey authoring and the public take flow.
type SurveyHandler struct {
	surveys *service.SurveyService
	trash   *service.TrashService
}

// NewSurveyHandler constructs SurveyHandler.
func NewSurveyHandler(surveys *service.SurveyService, trash *service.TrashService) *SurveyHandler {
	return &SurveyHandler{surveys: surveys, trash: trash}
}

// List godoc
// @Summary List surveys
// @Tags Surveys
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Search by title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /surveys [get]
func (h *SurveyHandler) List(c *gin.Context) {
	var filter models.SurveyFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if claims := claimsFromContext(c); claims != nil {
		filter.SchoolID = claims.SchoolID
	}
	if status := c.Query("status"); status != "" {
		s := models.SurveyStatus(status)
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)

	surveys, total, err := h.surveys.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, surveys, paginate(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get survey with sections and questions
// @Tags Surveys
// @Produce json
// @Param id path string true "Survey ID"
// @Success 200 {object} response.Envelope
// @Router /surveys/{id} [get]
func (h *SurveyHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.surveys.Get(c.Request.Context(), c.Param("id"), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create survey
// @Tags Surveys
// @Accept json
// @Produce json
// @Param payload body service.CreateSurveyRequest true "Survey payload"
// @Success 201 {object} response.Envelope
// @Router /surveys [post]
func (h *SurveyHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	survey, err := h.surveys.Create(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, survey)
}

// Update godoc
// @Summary Update survey metadata
// @Tags Surveys
// @Accept json
// @Produce json
// @Param id path string true "Survey ID"
// @Param payload body service.UpdateSurveyRequest true "Survey payload"
// @Success 200 {object} response.Envelope
// @Router /surveys/{id} [put]
func (h *SurveyHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	survey, err := h.surveys.Update(c.Request.Context(), c.Param("id"), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, survey, nil)
}

// Activate godoc
// @Summary Open survey for submissions
// @Tags Surveys
// @Produce json
// @Param id path string true "Survey ID"
// @Success 204 {object} response.Envelope
// @Router /surveys/{id}/activate [post]
func (h *SurveyHandler) Activate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.surveys.Activate(c.Request.Context(), c.Param("id"), claims.SchoolID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Close godoc
// @Summary Close survey
// @Tags Surveys
// @Produce json
// @Param id path string true "Survey ID"
// @Success 204 {object} response.Envelope
// @Router /surveys/{id}/close [post]
func (h *SurveyHandler) Close(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.surveys.Close(c.Request.Context(), c.Param("id"), claims.SchoolID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Move a survey to trash
// @Tags Surveys
// @Produce json
// @Param id path string true "Survey ID"
// @Success 200 {object} response.Envelope
// @Router /surveys/{id} [delete]
func (h *SurveyHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.trash.DeleteSurvey(c.Request.Context(), c.Param("id"), claims.SchoolID, &claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// AddSection godoc
// @Summary Add a section
// @Tags Surveys
// @Accept json
// @Produce json
// @Param id path string true "Survey ID"
// @Param payload body service.SectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /surveys/{id}/sections [post]
func (h *SurveyHandler) AddSection(c *gin.Context) {
	var req service.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	section, err := h.surveys.AddSection(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// UpdateSection godoc
// @Summary Update a section
// @Tags Surveys
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body service.SectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [put]
func (h *SurveyHandler) UpdateSection(c *gin.Context) {
	var req service.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	section, err := h.surveys.UpdateSection(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// RemoveSection godoc
// @Summary Delete a section
// @Tags Surveys
// @Produce json
// @Param id path string true "Section ID"
// @Success 204 {object} response.Envelope
// @Router /sections/{id} [delete]
func (h *SurveyHandler) RemoveSection(c *gin.Context) {
	if err := h.surveys.RemoveSection(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddQuestion godoc
// @Summary Add a question to a section
// @Tags Surveys
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body service.QuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Router /sections/{id}/questions [post]
func (h *SurveyHandler) AddQuestion(c *gin.Context) {
	var req service.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.surveys.AddQuestion(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// UpdateQuestion godoc
// @Summary Update a question
// @Tags Surveys
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body service.QuestionRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Router /questions/{id} [put]
func (h *SurveyHandler) UpdateQuestion(c *gin.Context) {
	var req service.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.surveys.UpdateQuestion(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// RemoveQuestion godoc
// @Summary Delete a question
// @Tags Surveys
// @Produce json
// @Param id path string true "Question ID"
// @Success 204 {object} response.Envelope
// @Router /questions/{id} [delete]
func (h *SurveyHandler) RemoveQuestion(c *gin.Context) {
	if err := h.surveys.RemoveQuestion(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetPublic godoc
// @Summary Get public survey form by code
// @Tags Public
// @Produce json
// @Param code path string true "Survey code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /survey/{code} [get]
func (h *SurveyHandler) GetPublic(c *gin.Context) {
	detail, err := h.surveys.GetPublic(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Submit godoc
// @Summary Submit a survey response
// @Tags Public
// @Accept json
// @Produce json
// @Param code path string true "Survey code"
// @Param payload body service.SubmitResponseRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /survey/{code}/submit [post]
func (h *SurveyHandler) Submit(c *gin.Context) {
	var req service.SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	resp, err := h.surveys.Submit(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}
