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

type timelineService interface {
	List(ctx context.Context) ([]models.TimelineEvent, error)
	Gantt(ctx context.Context) ([]models.GanttSpan, error)
	Import(ctx context.Context, req dto.ImportTimelineRequest, actor *models.JWTClaims) ([]models.TimelineEvent, error)
	Export(ctx context.Context, format string) ([]byte, string, string, error)
}

// TimelineHandler exposes the procedural timeline.
type TimelineHandler struct {
	service timelineService
}

// NewTimelineHandler constructs a TimelineHandler.
func NewTimelineHandler(service timelineService) *TimelineHandler {
	return &TimelineHandler{service: service}
}

// List returns the timeline ordered by date.
// @Summary List timeline events
// @Tags timeline
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.TimelineEvent}
// @Router /timeline [get]
func (h *TimelineHandler) List(c *gin.Context) {
	events, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Gantt returns derived chart spans.
// @Summary Timeline chart spans
// @Tags timeline
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.GanttSpan}
// @Router /timeline/gantt [get]
func (h *TimelineHandler) Gantt(c *gin.Context) {
	spans, err := h.service.Gantt(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, spans, nil)
}

// Import replaces the whole timeline with the provided snapshot.
// @Summary Import the timeline
// @Tags timeline
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.ImportTimelineRequest true "Timeline snapshot"
// @Success 200 {object} response.Envelope{data=[]models.TimelineEvent}
// @Failure 400 {object} response.Envelope
// @Router /timeline [put]
func (h *TimelineHandler) Import(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	var req dto.ImportTimelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timeline payload"))
		return
	}

	events, err := h.service.Import(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Export streams the timeline as CSV or PDF.
// @Summary Export the timeline
// @Tags timeline
// @Security BearerAuth
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /timeline/export [get]
func (h *TimelineHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	payload, contentType, filename, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}
