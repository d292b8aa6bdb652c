package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/arbos-dev/arbos-api/internal/dto"
	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/internal/policy"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
	"github.com/arbos-dev/arbos-api/pkg/export"
)

const extractionPrompt = `You are an arbitration assistant. Extract the following fields from the preliminary meeting report below and respond with a single JSON object using exactly these keys: meeting_date, claimant_rep_1, claimant_rep_2, respondent_rep_1, respondent_rep_2, claimant_contact, respondent_contact, arbitrator_contact. Use an empty string for any field the report does not mention.

Report:
%s`

// Extractor mines PO1 fields out of preliminary meeting report text.
type Extractor interface {
	Extract(ctx context.Context, reportText string) (models.OrderExtraction, error)
}

type jsonCompleter interface {
	CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error)
}

// LLMExtractor delegates field mining to a chat-completions model in JSON
// mode.
type LLMExtractor struct {
	client jsonCompleter
}

// NewLLMExtractor wraps the completion client.
func NewLLMExtractor(client jsonCompleter) *LLMExtractor {
	return &LLMExtractor{client: client}
}

// Extract submits the report and decodes the model's JSON answer.
func (e *LLMExtractor) Extract(ctx context.Context, reportText string) (models.OrderExtraction, error) {
	var extraction models.OrderExtraction
	raw, err := e.client.CompleteJSON(ctx, fmt.Sprintf(extractionPrompt, reportText))
	if err != nil {
		return extraction, fmt.Errorf("extract order fields: %w", err)
	}
	if err := json.Unmarshal(raw, &extraction); err != nil {
		return extraction, fmt.Errorf("decode extraction: %w", err)
	}
	return extraction, nil
}

// KeywordExtractor is the offline fallback used in privacy mode: report text
// never leaves the process. It matches labelled lines such as
// "Claimant Rep 1: Jane Doe" and picks up the first date-like token for the
// meeting date.
type KeywordExtractor struct{}

// NewKeywordExtractor constructs the offline extractor.
func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

var (
	labelledLine = regexp.MustCompile(`(?i)^\s*([a-z0-9 ._'-]+?)\s*[:\-]\s*(.+?)\s*$`)
	dateToken    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})\b`)
)

var labelFields = map[string]func(*models.OrderExtraction, string){
	"meeting date":         func(e *models.OrderExtraction, v string) { e.MeetingDate = v },
	"date of meeting":      func(e *models.OrderExtraction, v string) { e.MeetingDate = v },
	"claimant rep 1":       func(e *models.OrderExtraction, v string) { e.ClaimantRep1 = v },
	"claimant rep":         func(e *models.OrderExtraction, v string) { e.ClaimantRep1 = v },
	"claimant rep 2":       func(e *models.OrderExtraction, v string) { e.ClaimantRep2 = v },
	"respondent rep 1":     func(e *models.OrderExtraction, v string) { e.RespondentRep1 = v },
	"respondent rep":       func(e *models.OrderExtraction, v string) { e.RespondentRep1 = v },
	"respondent rep 2":     func(e *models.OrderExtraction, v string) { e.RespondentRep2 = v },
	"claimant contact":     func(e *models.OrderExtraction, v string) { e.ClaimantContact = v },
	"respondent contact":   func(e *models.OrderExtraction, v string) { e.RespondentContact = v },
	"arbitrator contact":   func(e *models.OrderExtraction, v string) { e.ArbitratorContact = v },
	"arbitrator":           func(e *models.OrderExtraction, v string) { e.ArbitratorContact = v },
	"presiding arbitrator": func(e *models.OrderExtraction, v string) { e.ArbitratorContact = v },
}

// Extract parses labelled lines without any network call.
func (e *KeywordExtractor) Extract(_ context.Context, reportText string) (models.OrderExtraction, error) {
	var extraction models.OrderExtraction
	for _, line := range strings.Split(reportText, "\n") {
		match := labelledLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(match[1]))
		if assign, ok := labelFields[label]; ok {
			assign(&extraction, strings.TrimSpace(match[2]))
		}
	}
	if extraction.MeetingDate == "" {
		if token := dateToken.FindString(reportText); token != "" {
			extraction.MeetingDate = token
		}
	}
	return extraction, nil
}

type draftingTimeline interface {
	List(ctx context.Context) ([]models.TimelineEvent, error)
}

type draftingAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DraftingService produces Procedural Order No. 1: field extraction from the
// preliminary meeting report, then document rendering after human review.
type DraftingService struct {
	extractor Extractor
	timeline  draftingTimeline
	audit     draftingAuditLogger
	exporter  *export.OrderExporter
	logger    *zap.Logger
}

// NewDraftingService constructs the drafting service.
func NewDraftingService(extractor Extractor, timeline draftingTimeline, audit draftingAuditLogger, logger *zap.Logger) *DraftingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftingService{
		extractor: extractor,
		timeline:  timeline,
		audit:     audit,
		exporter:  export.NewOrderExporter(),
		logger:    logger,
	}
}

// ExtractFields mines PO1 fields from the report text. The result is a draft
// for review, never a final document.
func (s *DraftingService) ExtractFields(ctx context.Context, req dto.ExtractOrderRequest, actor *models.JWTClaims) (*models.OrderExtraction, error) {
	if actor == nil || !policy.Allowed(actor.Role, policy.ActionDraftOrder) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the tribunal may draft orders")
	}
	if s.extractor == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "order drafting is not enabled")
	}
	if strings.TrimSpace(req.ReportText) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report_text is required")
	}

	extraction, err := s.extractor.Extract(ctx, req.ReportText)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "field extraction failed")
	}
	return &extraction, nil
}

// RenderOrder builds the PO1 PDF from reviewed fields, optionally embedding
// the current procedural timetable.
func (s *DraftingService) RenderOrder(ctx context.Context, req dto.RenderOrderRequest, actor *models.JWTClaims) ([]byte, error) {
	if actor == nil || !policy.Allowed(actor.Role, policy.ActionDraftOrder) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the tribunal may draft orders")
	}
	if strings.TrimSpace(req.ClaimantRep1) == "" || strings.TrimSpace(req.RespondentRep1) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lead representatives are required for both parties")
	}

	doc := export.OrderDocument{
		CaseReference:      req.CaseReference,
		MeetingDate:        req.MeetingDate,
		ClaimantRep1:       req.ClaimantRep1,
		ClaimantRep2:       req.ClaimantRep2,
		RespondentRep1:     req.RespondentRep1,
		RespondentRep2:     req.RespondentRep2,
		ClaimantContact:    req.ClaimantContact,
		RespondentContact:  req.RespondentContact,
		ArbitratorContact:  req.ArbitratorContact,
		TimetableClause:    req.TimetableClause,
		ConfirmationPeriod: req.ConfirmationPeriod,
	}

	if req.IncludeTimetable && s.timeline != nil {
		events, err := s.timeline.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
		}
		doc.TimetableRowHeaders = []string{"Event", "Date", "Owner"}
		doc.TimetableRows = make([]map[string]string, 0, len(events))
		for _, event := range events {
			doc.TimetableRows = append(doc.TimetableRows, map[string]string{
				"Event": event.Event,
				"Date":  event.Date.Format(models.DateLayout),
				"Owner": string(event.Owner),
			})
		}
	}

	payload, err := s.exporter.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render order")
	}

	if s.audit != nil {
		meta, _ := json.Marshal(map[string]string{"case_reference": req.CaseReference})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &actor.UserID,
			Action:    models.AuditActionOrderDraft,
			Resource:  "orders",
			NewValues: meta,
		}); err != nil {
			s.logger.Warn("failed to record order draft audit log", zap.Error(err))
		}
	}

	s.logger.Info("procedural order rendered",
		zap.String("user_id", actor.UserID),
		zap.Bool("timetable", req.IncludeTimetable))

	return payload, nil
}
