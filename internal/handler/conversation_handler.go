package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boardinghub/boardinghub-api/internal/models"
	"github.com/boardinghub/boardinghub-api/internal/service"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
	"github.com/boardinghub/boardinghub-api/pkg/response"
)

// ConversationHandler exposes the direct messaging endpoints.
type ConversationHandler struct {
	messaging *service.MessagingService
}

// NewConversationHandler constructs ConversationHandler.
func NewConversationHandler(messaging *service.MessagingService) *ConversationHandler {
	return &ConversationHandler{messaging: messaging}
}

// Send godoc
// @Summary Send a direct message
// @Tags Messaging
// @Accept json
// @Produce json
// @Param payload body models.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Router /messages [post]
func (h *ConversationHandler) Send(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	msg, err := h.messaging.Send(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// List godoc
// @Summary List own conversations
// @Tags Messaging
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summaries, err := h.messaging.ListConversations(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Messages godoc
// @Summary List a conversation's messages
// @Tags Messaging
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	messages, err := h.messaging.ListMessages(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// DeleteMessage godoc
// @Summary Delete an own message
// @Tags Messaging
// @Produce json
// @Param id path string true "Message ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /messages/{id} [delete]
func (h *ConversationHandler) DeleteMessage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.messaging.DeleteMessage(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnreadCount godoc
// @Summary Get total unread message count
// @Tags Messaging
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /messages/unread-count [get]
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	total, err := h.messaging.UnreadCount(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": total}, nil)
}
