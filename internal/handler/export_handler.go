package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/boardinghub/boardinghub-api/internal/models"
	"github.com/boardinghub/boardinghub-api/internal/service"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
	"github.com/boardinghub/boardinghub-api/pkg/response"
	"github.com/boardinghub/boardinghub-api/pkg/storage"
)

// ExportHandler exposes survey export endpoints. Download is served off a
// signed token so the file link can be shared without an access token.
type ExportHandler struct {
	exports *service.ExportService
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService, files *storage.LocalStorage, signer *storage.SignedURLSigner) *ExportHandler {
	return &ExportHandler{exports: exports, files: files, signer: signer}
}

// Request godoc
// @Summary Request a survey export
// @Tags Exports
// @Produce json
// @Param id path string true "Survey ID"
// @Param format query string true "csv or pdf"
// @Success 202 {object} response.Envelope
// @Router /surveys/{id}/export [post]
func (h *ExportHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := models.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.exports.Request(c.Request.Context(), c.Param("id"), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// Status godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Link godoc
// @Summary Get a signed download link for a finished export
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exports/{id}/link [get]
func (h *ExportHandler) Link(c *gin.Context) {
	link, err := h.exports.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download an export file with a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}

	c.FileAttachment(h.files.Path(relPath), filepath.Base(relPath))
}
