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

// FeedHandler exposes the social feed endpoints.
type FeedHandler struct {
	feed *service.FeedService
}

// NewFeedHandler constructs FeedHandler.
func NewFeedHandler(feed *service.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// Get godoc
// @Summary Get the combined feed
// @Tags Feed
// @Produce json
// @Param region query string false "Region filter"
// @Param province query string false "Province filter"
// @Param city query string false "City filter"
// @Param barangay query string false "Barangay filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /feed [get]
func (h *FeedHandler) Get(c *gin.Context) {
	var filter models.FeedFilter
	filter.Region = strings.TrimSpace(c.Query("region"))
	filter.Province = strings.TrimSpace(c.Query("province"))
	filter.City = strings.TrimSpace(c.Query("city"))
	filter.Barangay = strings.TrimSpace(c.Query("barangay"))
	filter.Page, filter.PageSize = pageParams(c)

	page, err := h.feed.GetFeed(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, &page.Pagination)
}

// Create godoc
// @Summary Publish a feed post
// @Tags Feed
// @Accept json
// @Produce json
// @Param payload body models.CreatePostRequest true "Post payload"
// @Success 201 {object} response.Envelope
// @Router /feed/posts [post]
func (h *FeedHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.feed.CreatePost(c.Request.Context(), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Edit an own post
// @Tags Feed
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param payload body models.CreatePostRequest true "Post payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /feed/posts/{id} [put]
func (h *FeedHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.feed.UpdatePost(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddComment godoc
// @Summary Comment on a feed post
// @Tags Feed
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param source query string true "student or property_owner"
// @Param payload body models.CreateCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Router /feed/posts/{id}/comments [post]
func (h *FeedHandler) AddComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	source := models.PostSource(c.Query("source"))
	comment, err := h.feed.AddComment(c.Request.Context(), source, c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// ListComments godoc
// @Summary List a post's comments
// @Tags Feed
// @Produce json
// @Param id path string true "Post ID"
// @Param source query string true "student or property_owner"
// @Success 200 {object} response.Envelope
// @Router /feed/posts/{id}/comments [get]
func (h *FeedHandler) ListComments(c *gin.Context) {
	source := models.PostSource(c.Query("source"))
	comments, err := h.feed.ListComments(c.Request.Context(), source, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}

// ToggleLike godoc
// @Summary Toggle a like on a feed post
// @Tags Feed
// @Produce json
// @Param id path string true "Post ID"
// @Param source query string true "student or property_owner"
// @Success 200 {object} response.Envelope
// @Router /feed/posts/{id}/like [post]
func (h *FeedHandler) ToggleLike(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	source := models.PostSource(c.Query("source"))
	result, err := h.feed.ToggleLike(c.Request.Context(), source, c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete an own post
// @Tags Feed
// @Produce json
// @Param id path string true "Post ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /feed/posts/{id} [delete]
func (h *FeedHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.feed.DeletePost(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
