package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arbos-dev/arbos-api/internal/dto"
	"github.com/arbos-dev/arbos-api/internal/models"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
	"github.com/arbos-dev/arbos-api/pkg/response"
)

type draftingService interface {
	ExtractFields(ctx context.Context, req dto.ExtractOrderRequest, actor *models.JWTClaims) (*models.OrderExtraction, error)
	RenderOrder(ctx context.Context, req dto.RenderOrderRequest, actor *models.JWTClaims) ([]byte, error)
}

// DraftingHandler exposes Procedural Order No. 1 drafting.
type DraftingHandler struct {
	service draftingService
}

// NewDraftingHandler constructs a DraftingHandler.
func NewDraftingHandler(service draftingService) *DraftingHandler {
	return &DraftingHandler{service: service}
}

// Extract mines PO1 fields from preliminary meeting report text.
// @Summary Extract order fields from a meeting report
// @Tags drafting
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.ExtractOrderRequest true "Report text"
// @Success 200 {object} response.Envelope{data=models.OrderExtraction}
// @Failure 400 {object} response.Envelope
// @Router /orders/extract [post]
func (h *DraftingHandler) Extract(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	var req dto.ExtractOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extraction payload"))
		return
	}

	extraction, err := h.service.ExtractFields(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, extraction, nil)
}

// Render produces the PO1 PDF from reviewed fields.
// @Summary Render Procedural Order No. 1
// @Tags drafting
// @Security BearerAuth
// @Accept json
// @Produce application/pdf
// @Param payload body dto.RenderOrderRequest true "Reviewed order fields"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /orders/render [post]
func (h *DraftingHandler) Render(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	var req dto.RenderOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload"))
		return
	}

	payload, err := h.service.RenderOrder(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="procedural_order_no_1.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
