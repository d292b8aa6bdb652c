package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arbos-dev/arbos-api/internal/dto"
	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/internal/policy"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
	"github.com/arbos-dev/arbos-api/pkg/export"
)

const (
	timelineCacheKey     = "timeline:list"
	timelineCachePattern = "timeline:*"

	// Spans are padded so single-day deadlines stay visible on the chart.
	ganttSpanDays = 3
)

// ownerColors maps each party to its chart colour.
var ownerColors = map[models.EventOwner]string{
	models.OwnerTribunal:   "#0f2e52",
	models.OwnerClaimant:   "#ff4b4b",
	models.OwnerRespondent: "#FFA500",
	models.OwnerAll:        "#808080",
}

type timelineStore interface {
	List(ctx context.Context) ([]models.TimelineEvent, error)
	GetByEvent(ctx context.Context, event string) (*models.TimelineEvent, error)
	ReplaceAll(ctx context.Context, events []models.TimelineEvent) error
}

type timelineAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// TimelineService serves the procedural timeline: cached reads, the derived
// chart view, whole-snapshot imports and tabular exports.
type TimelineService struct {
	store  timelineStore
	cache  *CacheService
	audit  timelineAuditLogger
	logger *zap.Logger

	csvExporter *export.CSVExporter
	pdfExporter *export.PDFExporter
}

// NewTimelineService constructs the timeline service. The cache may be nil.
func NewTimelineService(store timelineStore, cache *CacheService, audit timelineAuditLogger, logger *zap.Logger) *TimelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimelineService{
		store:       store,
		cache:       cache,
		audit:       audit,
		logger:      logger,
		csvExporter: export.NewCSVExporter(),
		pdfExporter: export.NewPDFExporter(),
	}
}

// List returns all timeline events ordered by date, serving from cache when
// one is configured.
func (s *TimelineService) List(ctx context.Context) ([]models.TimelineEvent, error) {
	if s.cache.Enabled() {
		var cached []models.TimelineEvent
		if err := s.cache.Get(ctx, timelineCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("timeline cache read failed", zap.Error(err))
		}
	}

	events, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}

	s.cache.Set(ctx, timelineCacheKey, events)
	return events, nil
}

// Gantt derives chart spans from the timeline. Each event becomes a fixed
// three-day bar coloured by owner.
func (s *TimelineService) Gantt(ctx context.Context) ([]models.GanttSpan, error) {
	events, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	spans := make([]models.GanttSpan, 0, len(events))
	for _, event := range events {
		color, ok := ownerColors[event.Owner]
		if !ok {
			color = ownerColors[models.OwnerAll]
		}
		spans = append(spans, models.GanttSpan{
			Event:  event.Event,
			Start:  event.Date.Format(models.DateLayout),
			Finish: event.Date.AddDate(0, 0, ganttSpanDays).Format(models.DateLayout),
			Owner:  event.Owner,
			Color:  color,
		})
	}
	return spans, nil
}

// Import replaces the whole timeline with the provided rows. Event names must
// be unique, owners known and dates valid calendar dates; a single bad row
// rejects the entire snapshot.
func (s *TimelineService) Import(ctx context.Context, req dto.ImportTimelineRequest, actor *models.JWTClaims) ([]models.TimelineEvent, error) {
	if actor == nil || !policy.Allowed(actor.Role, policy.ActionImportTimeline) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the tribunal may import the timeline")
	}
	if len(req.Events) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one timeline event is required")
	}

	seen := make(map[string]struct{}, len(req.Events))
	events := make([]models.TimelineEvent, 0, len(req.Events))
	for i, row := range req.Events {
		name := strings.TrimSpace(row.Event)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: event name is required", i+1))
		}
		if _, dup := seen[name]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: duplicate event name %q", i+1, name))
		}
		seen[name] = struct{}{}

		date, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(row.Date), time.UTC)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidDate, fmt.Sprintf("row %d: date must be a valid YYYY-MM-DD date", i+1))
		}

		owner := models.EventOwner(strings.ToUpper(strings.TrimSpace(row.Owner)))
		if !models.ValidOwner(owner) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: unknown owner %q", i+1, row.Owner))
		}

		events = append(events, models.TimelineEvent{
			Event:  name,
			Date:   date,
			Owner:  owner,
			Status: models.EventStatusScheduled,
		})
	}

	if err := s.store.ReplaceAll(ctx, events); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace timeline")
	}

	s.InvalidateCache(ctx)

	if s.audit != nil {
		payload, _ := json.Marshal(map[string]interface{}{"events": len(events)})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &actor.UserID,
			Action:    models.AuditActionTimelineImport,
			Resource:  "timeline",
			NewValues: payload,
		}); err != nil {
			s.logger.Warn("failed to record timeline import audit log", zap.Error(err))
		}
	}

	s.logger.Info("timeline imported", zap.Int("events", len(events)), zap.String("user_id", actor.UserID))
	return events, nil
}

// Export renders the timeline in the requested format ("csv" or "pdf") and
// returns the bytes, content type and suggested filename.
func (s *TimelineService) Export(ctx context.Context, format string) ([]byte, string, string, error) {
	events, err := s.List(ctx)
	if err != nil {
		return nil, "", "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Event", "Date", "Owner", "Status"},
		Rows:    make([]map[string]string, 0, len(events)),
	}
	for _, event := range events {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Event":  event.Event,
			"Date":   event.Date.Format(models.DateLayout),
			"Owner":  string(event.Owner),
			"Status": string(event.Status),
		})
	}

	switch strings.ToLower(format) {
	case "csv":
		payload, err := s.csvExporter.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", "timeline.csv", nil
	case "pdf":
		payload, err := s.pdfExporter.Render(dataset, "Procedural Timeline")
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", "timeline.pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// InvalidateCache drops cached timeline payloads after a write.
func (s *TimelineService) InvalidateCache(ctx context.Context) {
	s.cache.InvalidatePattern(ctx, timelineCachePattern)
}

// GetByEvent exposes single-event lookup for collaborating services.
func (s *TimelineService) GetByEvent(ctx context.Context, event string) (*models.TimelineEvent, error) {
	return s.store.GetByEvent(ctx, event)
}
