package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boardinghub/boardinghub-api/internal/models"
	"github.com/boardinghub/boardinghub-api/internal/service"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
	"github.com/boardinghub/boardinghub-api/pkg/response"
)

// TrashHandler exposes the trash bin: listing, restore and purge.
type TrashHandler struct {
	trash *service.TrashService
}

// NewTrashHandler constructs TrashHandler.
func NewTrashHandler(trash *service.TrashService) *TrashHandler {
	return &TrashHandler{trash: trash}
}

// List godoc
// @Summary List trash entries
// @Tags Trash
// @Produce json
// @Param type query string false "Filter by item type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /trash [get]
func (h *TrashHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.TrashFilter
	filter.SchoolID = claims.SchoolID
	if raw := c.Query("type"); raw != "" {
		itemType := models.TrashItemType(raw)
		if !itemType.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown trash item type"))
			return
		}
		filter.ItemType = &itemType
	}
	filter.Page, filter.PageSize = pageParams(c)

	entries, total, err := h.trash.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, paginate(filter.Page, filter.PageSize, total))
}

// Restore godoc
// @Summary Restore a trash entry
// @Tags Trash
// @Produce json
// @Param id path string true "Trash entry ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /trash/{id}/restore [post]
func (h *TrashHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.trash.Restore(c.Request.Context(), c.Param("id"), &claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RestoreAll godoc
// @Summary Restore every pending trash entry
// @Tags Trash
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /trash/restore-all [post]
func (h *TrashHandler) RestoreAll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.trash.RestoreAll(c.Request.Context(), claims.SchoolID, &claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Purge godoc
// @Summary Permanently delete a trash entry
// @Tags Trash
// @Produce json
// @Param id path string true "Trash entry ID"
// @Success 204 {object} response.Envelope
// @Router /trash/{id} [delete]
func (h *TrashHandler) Purge(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.trash.Purge(c.Request.Context(), c.Param("id"), &claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PurgeAll godoc
// @Summary Permanently delete every pending trash entry
// @Tags Trash
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /trash [delete]
func (h *TrashHandler) PurgeAll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.trash.PurgeAll(c.Request.Context(), claims.SchoolID, &claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
