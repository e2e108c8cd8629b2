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

// PropertyHandler exposes boarding house endpoints.
type PropertyHandler struct {
	properties *service.PropertyService
	trash      *service.TrashService
}

// NewPropertyHandler constructs PropertyHandler.
func NewPropertyHandler(properties *service.PropertyService, trash *service.TrashService) *PropertyHandler {
	return &PropertyHandler{properties: properties, trash: trash}
}

// List godoc
// @Summary List boarding houses
// @Tags Properties
// @Produce json
// @Param status query string false "Filter by status"
// @Param owner query string false "Filter by owner"
// @Param search query string false "Search by name or address"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /properties [get]
func (h *PropertyHandler) List(c *gin.Context) {
	var filter models.PropertyFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.OwnerID = c.Query("owner")
	claims := claimsFromContext(c)
	if claims != nil {
		filter.SchoolID = claims.SchoolID
		// Owners only ever see their own listings.
		if claims.Role == models.RolePropertyOwner {
			filter.OwnerID = claims.UserID
		}
	}
	if status := c.Query("status"); status != "" {
		s := models.PropertyStatus(status)
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	properties, total, err := h.properties.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, properties, paginate(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get boarding house detail
// @Tags Properties
// @Produce json
// @Param id path string true "Property ID"
// @Success 200 {object} response.Envelope
// @Router /properties/{id} [get]
func (h *PropertyHandler) Get(c *gin.Context) {
	property, err := h.properties.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, property, nil)
}

// Create godoc
// @Summary Register a boarding house
// @Tags Properties
// @Accept json
// @Produce json
// @Param payload body service.PropertyRequest true "Property payload"
// @Success 201 {object} response.Envelope
// @Router /properties [post]
func (h *PropertyHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	property, err := h.properties.Create(c.Request.Context(), claims.UserID, claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, property)
}

// Update godoc
// @Summary Update a boarding house
// @Tags Properties
// @Accept json
// @Produce json
// @Param id path string true "Property ID"
// @Param payload body service.PropertyRequest true "Property payload"
// @Success 200 {object} response.Envelope
// @Router /properties/{id} [put]
func (h *PropertyHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	property, err := h.properties.Update(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, property, nil)
}

// Verify godoc
// @Summary Verify a boarding house
// @Tags Properties
// @Produce json
// @Param id path string true "Property ID"
// @Success 204 {object} response.Envelope
// @Router /properties/{id}/verify [post]
func (h *PropertyHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.properties.Verify(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject godoc
// @Summary Reject a boarding house
// @Tags Properties
// @Produce json
// @Param id path string true "Property ID"
// @Success 204 {object} response.Envelope
// @Router /properties/{id}/reject [post]
func (h *PropertyHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.properties.Reject(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Suspend godoc
// @Summary Suspend a boarding house
// @Tags Properties
// @Produce json
// @Param id path string true "Property ID"
// @Success 204 {object} response.Envelope
// @Router /properties/{id}/suspend [post]
func (h *PropertyHandler) Suspend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.properties.Suspend(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Move a boarding house to trash
// @Tags Properties
// @Produce json
// @Param id path string true "Property ID"
// @Success 200 {object} response.Envelope
// @Router /properties/{id} [delete]
func (h *PropertyHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.trash.DeleteProperty(c.Request.Context(), c.Param("id"), claims.SchoolID, &claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
