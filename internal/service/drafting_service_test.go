package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbos-dev/arbos-api/internal/dto"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
)

const sampleReport = `PRELIMINARY MEETING REPORT

Meeting Date: 2025-10-20
Claimant Rep 1: Jane Okafor
Claimant Rep 2: Tom Lindqvist
Respondent Rep 1: Priya Sharma
Claimant Contact: jane.okafor@example.com
Respondent Contact: p.sharma@example.com
Presiding Arbitrator: arbitrator@chambers.example
`

func TestKeywordExtractorParsesLabelledLines(t *testing.T) {
	extraction, err := NewKeywordExtractor().Extract(context.Background(), sampleReport)
	require.NoError(t, err)

	assert.Equal(t, "2025-10-20", extraction.MeetingDate)
	assert.Equal(t, "Jane Okafor", extraction.ClaimantRep1)
	assert.Equal(t, "Tom Lindqvist", extraction.ClaimantRep2)
	assert.Equal(t, "Priya Sharma", extraction.RespondentRep1)
	assert.Empty(t, extraction.RespondentRep2)
	assert.Equal(t, "jane.okafor@example.com", extraction.ClaimantContact)
	assert.Equal(t, "arbitrator@chambers.example", extraction.ArbitratorContact)
}

func TestKeywordExtractorFallsBackToFirstDate(t *testing.T) {
	extraction, err := NewKeywordExtractor().Extract(context.Background(),
		"The parties convened on 20 October 2025 in Geneva.")
	require.NoError(t, err)
	assert.Equal(t, "20 October 2025", extraction.MeetingDate)
}

type fakeCompleter struct {
	raw json.RawMessage
	err error
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _ string) (json.RawMessage, error) {
	return f.raw, f.err
}

func TestLLMExtractorDecodesModelOutput(t *testing.T) {
	completer := &fakeCompleter{raw: json.RawMessage(`{
		"meeting_date": "2025-10-20",
		"claimant_rep_1": "Jane Okafor",
		"respondent_rep_1": "Priya Sharma"
	}`)}

	extraction, err := NewLLMExtractor(completer).Extract(context.Background(), sampleReport)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-20", extraction.MeetingDate)
	assert.Equal(t, "Jane Okafor", extraction.ClaimantRep1)
	assert.Equal(t, "Priya Sharma", extraction.RespondentRep1)
}

func TestExtractFieldsRequiresTribunalAndText(t *testing.T) {
	svc := NewDraftingService(NewKeywordExtractor(), nil, &fakeAuditLogger{}, nil)

	_, err := svc.ExtractFields(context.Background(), dto.ExtractOrderRequest{ReportText: sampleReport}, claimantClaims())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.ExtractFields(context.Background(), dto.ExtractOrderRequest{ReportText: "  "}, arbitratorClaims())
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	extraction, err := svc.ExtractFields(context.Background(), dto.ExtractOrderRequest{ReportText: sampleReport}, arbitratorClaims())
	require.NoError(t, err)
	assert.Equal(t, "Jane Okafor", extraction.ClaimantRep1)
}

func TestExtractFieldsDisabledWithoutExtractor(t *testing.T) {
	svc := NewDraftingService(nil, nil, &fakeAuditLogger{}, nil)
	_, err := svc.ExtractFields(context.Background(), dto.ExtractOrderRequest{ReportText: sampleReport}, arbitratorClaims())
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRenderOrderProducesPDFWithTimetable(t *testing.T) {
	_, repo := newTimelineFixture(t)
	timeline := NewTimelineService(repo, nil, &fakeAuditLogger{}, nil)
	svc := NewDraftingService(NewKeywordExtractor(), timeline, &fakeAuditLogger{}, nil)

	payload, err := svc.RenderOrder(context.Background(), dto.RenderOrderRequest{
		CaseReference:    "Case No. ARB/2025/014",
		MeetingDate:      "2025-10-20",
		ClaimantRep1:     "Jane Okafor",
		RespondentRep1:   "Priya Sharma",
		TimetableClause:  "The procedural timetable annexed hereto shall govern the proceedings.",
		IncludeTimetable: true,
	}, arbitratorClaims())
	require.NoError(t, err)
	assert.True(t, len(payload) > 500)
	assert.Equal(t, "%PDF", string(payload[:4]))
}

func TestRenderOrderRequiresLeadRepresentatives(t *testing.T) {
	svc := NewDraftingService(NewKeywordExtractor(), nil, &fakeAuditLogger{}, nil)

	_, err := svc.RenderOrder(context.Background(), dto.RenderOrderRequest{
		ClaimantRep1: "Jane Okafor",
	}, arbitratorClaims())
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
