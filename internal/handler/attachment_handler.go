package handler

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/internal/service"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
	"github.com/arbos-dev/arbos-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, requestID, filename, contentType string, size int64, r io.Reader, actor *models.JWTClaims) (*service.UploadResult, error)
	SignedLink(ctx context.Context, requestID string, actor *models.JWTClaims) (*service.UploadResult, error)
	Download(token string) (*os.File, string, error)
}

// AttachmentHandler exposes formal letter upload and signed downloads.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs an AttachmentHandler.
func NewAttachmentHandler(service attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Upload stores the formal letter for a request.
// @Summary Attach a formal letter to a request
// @Tags attachments
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Request ID"
// @Param file formData file true "Formal letter"
// @Success 201 {object} response.Envelope{data=service.UploadResult}
// @Failure 400 {object} response.Envelope
// @Router /requests/{id}/attachment [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a file field is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.service.Upload(
		c.Request.Context(),
		c.Param("id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
		claims,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Link re-issues a signed download link for an attached letter.
// @Summary Get a signed download link
// @Tags attachments
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope{data=service.UploadResult}
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/attachment [get]
func (h *AttachmentHandler) Link(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	result, err := h.service.SignedLink(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download streams a stored letter given a valid signed token. No JWT is
// required; the token itself authorises the read.
// @Summary Download an attachment by signed token
// @Tags attachments
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token query parameter is required"))
		return
	}

	file, filename, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}
