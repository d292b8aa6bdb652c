package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arbos-dev/arbos-api/internal/dto"
	"github.com/arbos-dev/arbos-api/internal/models"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
	"github.com/arbos-dev/arbos-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Request, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Request, error)
	List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, error)
	ListPending(ctx context.Context, actor *models.JWTClaims) ([]dto.PendingRequestView, error)
	Decide(ctx context.Context, id string, req dto.DecideRequestRequest, actor *models.JWTClaims) (*models.Request, error)
}

type decisionCounter interface {
	RecordDecision(outcome string)
}

// RequestHandler exposes the procedural request workflow.
type RequestHandler struct {
	service requestService
	metrics decisionCounter
}

// NewRequestHandler constructs a RequestHandler. Metrics may be nil.
func NewRequestHandler(service requestService, metrics decisionCounter) *RequestHandler {
	return &RequestHandler{service: service, metrics: metrics}
}

// Create files a new procedural request.
// @Summary File a procedural request
// @Tags requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestRequest true "Request"
// @Success 201 {object} response.Envelope{data=models.Request}
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List returns requests visible to the caller in insertion order. Without
// limit/offset the full list is returned.
// @Summary List requests
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Param status query string false "Comma separated statuses (PENDING,APPROVED,REJECTED)"
// @Param limit query int false "Maximum rows to return; omit for all"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} response.Envelope{data=[]models.Request}
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	var query dto.RequestQuery
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.RequestStatus(strings.ToUpper(strings.TrimSpace(part)))
			switch status {
			case models.RequestStatusPending, models.RequestStatusApproved, models.RequestStatusRejected:
				query.Status = append(query.Status, status)
			default:
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
				return
			}
		}
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		query.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "offset must be a non-negative integer"))
			return
		}
		query.Offset = n
	}

	requests, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get returns a single request.
// @Summary Get a request
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope{data=models.Request}
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Pending returns the tribunal inbox with delay impact estimates.
// @Summary List pending requests
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]dto.PendingRequestView}
// @Failure 403 {object} response.Envelope
// @Router /requests/pending [get]
func (h *RequestHandler) Pending(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	views, err := h.service.ListPending(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Decide records the tribunal ruling. A 409 with DANGLING_REFERENCE still
// carries the decided request: the ruling committed, the timeline did not
// move.
// @Summary Decide a pending request
// @Tags requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecideRequestRequest true "Decision"
// @Success 200 {object} response.Envelope{data=models.Request}
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/decision [post]
func (h *RequestHandler) Decide(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	var req dto.DecideRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload"))
		return
	}

	decided, err := h.service.Decide(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		if decided != nil && errors.Is(err, appErrors.ErrDanglingReference) {
			if h.metrics != nil {
				h.metrics.RecordDecision(string(decided.Status))
			}
			response.ErrorWithData(c, err, decided)
			return
		}
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordDecision(string(decided.Status))
	}
	response.JSON(c, http.StatusOK, decided, nil)
}
