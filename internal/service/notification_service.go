package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/pkg/jobs"
)

const (
	jobTypeRequestFiled   = "request.filed"
	jobTypeRequestDecided = "request.decided"
)

// notificationPayload is the job body carried through the queue.
type notificationPayload struct {
	RequestID   string               `json:"request_id"`
	Party       models.UserRole      `json:"party"`
	DocType     string               `json:"doc_type"`
	TargetEvent string               `json:"target_event"`
	Status      models.RequestStatus `json:"status"`
	Reason      string               `json:"reason,omitempty"`
}

type notificationAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// NotificationService dispatches workflow notifications off the request path
// via an in-memory worker queue. Delivery today is the audit trail plus the
// application log; the queue boundary keeps room for an email or webhook
// sender without touching the workflow.
type NotificationService struct {
	queue  *jobs.Queue
	audit  notificationAuditLogger
	logger *zap.Logger
}

// NewNotificationService builds the dispatcher and its backing queue.
func NewNotificationService(audit notificationAuditLogger, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{audit: audit, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// RequestFiled notifies the tribunal that a new request awaits review.
func (s *NotificationService) RequestFiled(request *models.Request) {
	s.enqueue(jobTypeRequestFiled, request)
}

// RequestDecided notifies the filing party of the ruling.
func (s *NotificationService) RequestDecided(request *models.Request) {
	s.enqueue(jobTypeRequestDecided, request)
}

func (s *NotificationService) enqueue(jobType string, request *models.Request) {
	payload := notificationPayload{
		RequestID:   request.ID,
		Party:       request.Party,
		DocType:     request.DocType,
		TargetEvent: request.TargetEvent,
		Status:      request.Status,
		Reason:      request.DecisionReason,
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("type", jobType),
			zap.String("request_id", request.ID),
			zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}

	s.logger.Info("workflow notification",
		zap.String("type", job.Type),
		zap.String("request_id", payload.RequestID),
		zap.String("party", string(payload.Party)),
		zap.String("status", string(payload.Status)))

	if s.audit == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	return s.audit.CreateAuditLog(ctx, &models.AuditLog{
		Action:     models.AuditActionNotify,
		Resource:   "notifications",
		ResourceID: &payload.RequestID,
		NewValues:  body,
	})
}
