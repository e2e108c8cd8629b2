package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boardinghub/boardinghub-api/internal/service"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
	"github.com/boardinghub/boardinghub-api/pkg/response"
)

// RoomHandler exposes room inventory and boarding key endpoints.
type RoomHandler struct {
	rooms *service.RoomService
}

// NewRoomHandler constructs RoomHandler.
func NewRoomHandler(rooms *service.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// List godoc
// @Summary List rooms of a boarding house
// @Tags Rooms
// @Produce json
// @Param id path string true "Property ID"
// @Success 200 {object} response.Envelope
// @Router /properties/{id}/rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rooms, err := h.rooms.List(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Create godoc
// @Summary Add a room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Property ID"
// @Param payload body service.RoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Router /properties/{id}/rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// Update godoc
// @Summary Update a room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.RoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [put]
func (h *RoomHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.rooms.Update(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Trash godoc
// @Summary Soft-delete a room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 204 {object} response.Envelope
// @Router /rooms/{id} [delete]
func (h *RoomHandler) Trash(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.rooms.Trash(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore godoc
// @Summary Restore a soft-deleted room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 204 {object} response.Envelope
// @Router /rooms/{id}/restore [post]
func (h *RoomHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.rooms.Restore(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// LookupBoardingKey godoc
// @Summary Look up a room by boarding key
// @Tags Rooms
// @Produce json
// @Param key path string true "Boarding key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /boarding-key/{key} [get]
func (h *RoomHandler) LookupBoardingKey(c *gin.Context) {
	result, err := h.rooms.LookupBoardingKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AddImage godoc
// @Summary Attach an image to a room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body map[string]interface{} true "Image payload"
// @Success 201 {object} response.Envelope
// @Router /rooms/{id}/images [post]
func (h *RoomHandler) AddImage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		URL   string `json:"url" binding:"required,url"`
		Order int    `json:"order"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	image, err := h.rooms.AddImage(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, payload.URL, payload.Order)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, image)
}

// RemoveImage godoc
// @Summary Remove a room image
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param imageId path string true "Image ID"
// @Success 204 {object} response.Envelope
// @Router /rooms/{id}/images/{imageId} [delete]
func (h *RoomHandler) RemoveImage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.rooms.RemoveImage(c.Request.Context(), c.Param("id"), c.Param("imageId"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
