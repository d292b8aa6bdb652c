package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arbos-dev/arbos-api/internal/dto"
	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/internal/policy"
	"github.com/arbos-dev/arbos-api/internal/repository"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
)

// DefaultDocType labels requests filed without an explicit document type.
const DefaultDocType = "Extension Request"

type requestStore interface {
	Create(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	RecordDecision(ctx context.Context, params repository.DecisionParams) error
}

type requestTimelineStore interface {
	GetByEvent(ctx context.Context, event string) (*models.TimelineEvent, error)
	Reschedule(ctx context.Context, event string, newDate time.Time) error
}

type requestAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type requestNotifier interface {
	RequestFiled(request *models.Request)
	RequestDecided(request *models.Request)
}

// RequestService drives the procedural request workflow: filing, the pending
// inbox with delay impact analysis, and the one-shot tribunal decision.
type RequestService struct {
	requests requestStore
	timeline requestTimelineStore
	audit    requestAuditLogger
	logger   *zap.Logger

	notifier           requestNotifier
	invalidateTimeline func(ctx context.Context)
	burnRatePerDayUSD  int64
	now                func() time.Time
}

// RequestServiceOption customises optional collaborators.
type RequestServiceOption func(*RequestService)

// WithRequestNotifier attaches the background notification dispatcher.
func WithRequestNotifier(n requestNotifier) RequestServiceOption {
	return func(s *RequestService) { s.notifier = n }
}

// WithTimelineInvalidation registers a cache invalidation hook fired after an
// approval moves a timeline event.
func WithTimelineInvalidation(fn func(ctx context.Context)) RequestServiceOption {
	return func(s *RequestService) { s.invalidateTimeline = fn }
}

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) { s.now = now }
}

// NewRequestService constructs the workflow service.
func NewRequestService(requests requestStore, timeline requestTimelineStore, audit requestAuditLogger, logger *zap.Logger, burnRatePerDayUSD int64, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burnRatePerDayUSD <= 0 {
		burnRatePerDayUSD = 15000
	}
	s := &RequestService{
		requests:          requests,
		timeline:          timeline,
		audit:             audit,
		logger:            logger,
		burnRatePerDayUSD: burnRatePerDayUSD,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create files a new procedural request. The target event must exist on the
// timeline at filing time and the proposed date must be a real calendar date.
func (s *RequestService) Create(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil || !policy.Allowed(actor.Role, policy.ActionCreateRequest) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not file requests")
	}

	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "summary is required")
	}
	targetEvent := strings.TrimSpace(req.TargetEvent)
	if targetEvent == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target_event is required")
	}

	proposedDate, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(req.ProposedDate), time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidDate, "proposed_date must be a valid YYYY-MM-DD date")
	}

	if _, err := s.timeline.GetByEvent(ctx, targetEvent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "target event does not exist on the timeline")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify target event")
	}

	docType := strings.TrimSpace(req.DocType)
	if docType == "" {
		docType = DefaultDocType
	}

	request := &models.Request{
		Party:        actor.Role,
		DocType:      docType,
		Summary:      summary,
		ProposedDate: proposedDate,
		TargetEvent:  targetEvent,
		Status:       models.RequestStatusPending,
		CreatedBy:    actor.UserID,
		CreatedAt:    s.now(),
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file request")
	}

	s.recordAudit(ctx, actor.UserID, models.AuditActionRequestCreate, request.ID, nil, request)
	if s.notifier != nil {
		s.notifier.RequestFiled(request)
	}

	s.logger.Info("procedural request filed",
		zap.String("request_id", request.ID),
		zap.String("party", string(request.Party)),
		zap.String("target_event", request.TargetEvent))

	return request, nil
}

// Get returns one request, scoped to the caller. Parties may only read their
// own filings.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if !policy.Allowed(actor.Role, policy.ActionViewAllRequests) && request.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another party")
	}

	return request, nil
}

// List returns requests in insertion order. Arbitrators see every filing;
// parties only see their own.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	filter := models.RequestFilter{Status: query.Status, Limit: query.Limit, Offset: query.Offset}
	switch {
	case policy.Allowed(actor.Role, policy.ActionViewAllRequests):
		// unscoped
	case policy.Allowed(actor.Role, policy.ActionViewOwnRequests):
		filter.CreatedBy = actor.UserID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not view requests")
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// ListPending builds the tribunal inbox: every undecided request, decorated
// with the estimated cost of granting the delay.
func (s *RequestService) ListPending(ctx context.Context, actor *models.JWTClaims) ([]dto.PendingRequestView, error) {
	if actor == nil || !policy.Allowed(actor.Role, policy.ActionDecide) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the tribunal may review the pending inbox")
	}

	pending, err := s.requests.List(ctx, models.RequestFilter{Status: []models.RequestStatus{models.RequestStatusPending}})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}

	views := make([]dto.PendingRequestView, 0, len(pending))
	for _, request := range pending {
		views = append(views, dto.PendingRequestView{
			Request: request,
			Impact:  s.estimateImpact(ctx, &request),
		})
	}
	return views, nil
}

// Decide records the tribunal ruling on a pending request. The transition is
// guarded by a compare-and-set so a request can only ever be decided once; on
// approval the target event is rescheduled to the proposed date.
func (s *RequestService) Decide(ctx context.Context, id string, req dto.DecideRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil || !policy.Allowed(actor.Role, policy.ActionDecide) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the tribunal may decide requests")
	}

	if req.Outcome != models.RequestStatusApproved && req.Outcome != models.RequestStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "outcome must be APPROVED or REJECTED")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a decision reason is required")
	}

	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request does not exist or was already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
	}

	previous := *request
	decisionDate := dateOnly(s.now())

	err = s.requests.RecordDecision(ctx, repository.DecisionParams{
		ID:           request.ID,
		Status:       req.Outcome,
		Reason:       reason,
		DecisionDate: decisionDate,
		DecidedBy:    actor.UserID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	request.Status = req.Outcome
	request.DecisionReason = reason
	request.DecisionDate = &decisionDate
	request.DecidedBy = &actor.UserID

	s.recordAudit(ctx, actor.UserID, models.AuditActionRequestDecide, request.ID, &previous, request)
	if s.notifier != nil {
		s.notifier.RequestDecided(request)
	}

	if req.Outcome != models.RequestStatusApproved {
		s.logger.Info("request rejected",
			zap.String("request_id", request.ID),
			zap.String("decided_by", actor.UserID))
		return request, nil
	}

	if err := s.timeline.Reschedule(ctx, request.TargetEvent, request.ProposedDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The decision stands; only the timeline update was lost.
			s.logger.Warn("approved request targets a missing timeline event",
				zap.String("request_id", request.ID),
				zap.String("target_event", request.TargetEvent))
			return request, appErrors.Clone(appErrors.ErrDanglingReference, "approved request references a timeline event that no longer exists")
		}
		return request, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule timeline event")
	}

	if s.invalidateTimeline != nil {
		s.invalidateTimeline(ctx)
	}

	s.logger.Info("request approved and event rescheduled",
		zap.String("request_id", request.ID),
		zap.String("target_event", request.TargetEvent),
		zap.Time("new_date", request.ProposedDate))

	return request, nil
}

func (s *RequestService) estimateImpact(ctx context.Context, request *models.Request) models.DelayImpact {
	event, err := s.timeline.GetByEvent(ctx, request.TargetEvent)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load target event for impact estimate",
				zap.String("request_id", request.ID), zap.Error(err))
		}
		return models.DelayImpact{}
	}

	days := int(dateOnly(request.ProposedDate).Sub(dateOnly(event.Date)).Hours() / 24)
	impact := models.DelayImpact{DaysDelayed: days}
	if days > 0 {
		impact.EstimatedCostUSD = int64(days) * s.burnRatePerDayUSD
	}
	return impact
}

func (s *RequestService) recordAudit(ctx context.Context, userID, action, resourceID string, oldValue, newValue *models.Request) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "requests",
		ResourceID: &resourceID,
	}
	if oldValue != nil {
		if raw, err := json.Marshal(oldValue); err == nil {
			log.OldValues = raw
		}
	}
	if newValue != nil {
		if raw, err := json.Marshal(newValue); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record request audit log", zap.Error(err))
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
