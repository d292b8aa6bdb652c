package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbos-dev/arbos-api/internal/dto"
	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/internal/repository"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
)

type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[string]*models.Request
	order    []string
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[string]*models.Request)}
}

func (s *fakeRequestStore) Create(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	clone := *request
	s.requests[request.ID] = &clone
	s.order = append(s.order, request.ID)
	return nil
}

func (s *fakeRequestStore) GetByID(_ context.Context, id string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *request
	return &clone, nil
}

func (s *fakeRequestStore) List(_ context.Context, filter models.RequestFilter) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Request, 0, len(s.order))
	for _, id := range s.order {
		request := s.requests[id]
		if len(filter.Status) > 0 {
			matched := false
			for _, status := range filter.Status {
				if request.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if filter.CreatedBy != "" && request.CreatedBy != filter.CreatedBy {
			continue
		}
		result = append(result, *request)
	}
	return result, nil
}

// RecordDecision mirrors the store's compare-and-set: the write only lands
// while the row is still PENDING.
func (s *fakeRequestStore) RecordDecision(_ context.Context, params repository.DecisionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[params.ID]
	if !ok || request.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	request.Status = params.Status
	request.DecisionReason = params.Reason
	decisionDate := params.DecisionDate
	request.DecisionDate = &decisionDate
	decidedBy := params.DecidedBy
	request.DecidedBy = &decidedBy
	return nil
}

type fakeTimelineStore struct {
	events map[string]*models.TimelineEvent
}

func newFakeTimelineStore(events ...models.TimelineEvent) *fakeTimelineStore {
	s := &fakeTimelineStore{events: make(map[string]*models.TimelineEvent)}
	for i := range events {
		clone := events[i]
		s.events[clone.Event] = &clone
	}
	return s
}

func (s *fakeTimelineStore) GetByEvent(_ context.Context, event string) (*models.TimelineEvent, error) {
	found, ok := s.events[event]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *found
	return &clone, nil
}

func (s *fakeTimelineStore) Reschedule(_ context.Context, event string, newDate time.Time) error {
	found, ok := s.events[event]
	if !ok {
		return sql.ErrNoRows
	}
	found.Date = newDate
	found.Status = models.EventStatusRescheduled
	return nil
}

type fakeAuditLogger struct {
	entries []*models.AuditLog
}

func (l *fakeAuditLogger) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	l.entries = append(l.entries, log)
	return nil
}

type fakeNotifier struct {
	filed   []*models.Request
	decided []*models.Request
}

func (n *fakeNotifier) RequestFiled(request *models.Request)   { n.filed = append(n.filed, request) }
func (n *fakeNotifier) RequestDecided(request *models.Request) { n.decided = append(n.decided, request) }

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation(models.DateLayout, value, time.UTC)
	require.NoError(t, err)
	return parsed
}

func arbitratorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "arb-1", Role: models.RoleArbitrator}
}

func claimantClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "clm-1", Role: models.RoleClaimant}
}

func newWorkflow(t *testing.T) (*RequestService, *fakeRequestStore, *fakeTimelineStore, *fakeNotifier) {
	t.Helper()
	requests := newFakeRequestStore()
	timeline := newFakeTimelineStore(models.TimelineEvent{
		Event:  "Statement of Defence",
		Date:   mustDate(t, "2026-01-15"),
		Owner:  models.OwnerRespondent,
		Status: models.EventStatusScheduled,
	})
	notifier := &fakeNotifier{}
	svc := NewRequestService(requests, timeline, &fakeAuditLogger{}, nil, 15000,
		WithRequestNotifier(notifier),
		WithClock(func() time.Time { return mustDate(t, "2026-01-10") }))
	return svc, requests, timeline, notifier
}

func TestCreateRequestAppearsInPendingInbox(t *testing.T) {
	svc, _, _, notifier := newWorkflow(t)

	created, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Need two more weeks for expert evidence",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, created.Status)
	assert.Equal(t, models.RoleClaimant, created.Party)
	assert.Equal(t, DefaultDocType, created.DocType)

	views, err := svc.ListPending(context.Background(), arbitratorClaims())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, created.ID, views[0].Request.ID)
	assert.Equal(t, 14, views[0].Impact.DaysDelayed)
	assert.Equal(t, int64(14*15000), views[0].Impact.EstimatedCostUSD)
	assert.Len(t, notifier.filed, 1)
}

func TestCreateRequestUnknownTargetEventWritesNothing(t *testing.T) {
	svc, requests, _, _ := newWorkflow(t)

	_, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Move a deadline that is not on the calendar",
		ProposedDate: "2026-03-01",
		TargetEvent:  "Closing Submissions",
	}, claimantClaims())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, requests.order)
}

func TestCreateRequestRejectsMalformedDate(t *testing.T) {
	svc, requests, _, _ := newWorkflow(t)

	for _, bad := range []string{"2026-02-30", "29/01/2026", "soon", ""} {
		_, err := svc.Create(context.Background(), dto.CreateRequestRequest{
			Summary:      "Extension",
			ProposedDate: bad,
			TargetEvent:  "Statement of Defence",
		}, claimantClaims())
		require.Error(t, err, "date %q should be rejected", bad)
		assert.ErrorIs(t, err, appErrors.ErrInvalidDate)
	}
	assert.Empty(t, requests.order)
}

func TestCreateRequestForbiddenForArbitrator(t *testing.T) {
	svc, _, _, _ := newWorkflow(t)

	_, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, arbitratorClaims())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestApproveReschedulesTargetEvent(t *testing.T) {
	svc, _, timeline, notifier := newWorkflow(t)

	created, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		DocType:      "Extension Request",
		Summary:      "Respondent needs additional time for the defence",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
		Outcome: models.RequestStatusApproved,
		Reason:  "Good cause shown",
	}, arbitratorClaims())
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusApproved, decided.Status)
	assert.Equal(t, "Good cause shown", decided.DecisionReason)
	require.NotNil(t, decided.DecisionDate)
	assert.Equal(t, mustDate(t, "2026-01-10"), *decided.DecisionDate)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "arb-1", *decided.DecidedBy)

	event, err := timeline.GetByEvent(context.Background(), "Statement of Defence")
	require.NoError(t, err)
	assert.Equal(t, mustDate(t, "2026-01-29"), event.Date)
	assert.Equal(t, models.EventStatusRescheduled, event.Status)

	assert.Len(t, notifier.decided, 1)
}

func TestRejectLeavesTimelineUntouched(t *testing.T) {
	svc, _, timeline, _ := newWorkflow(t)

	created, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
		Outcome: models.RequestStatusRejected,
		Reason:  "No prejudice shown",
	}, arbitratorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, decided.Status)

	event, err := timeline.GetByEvent(context.Background(), "Statement of Defence")
	require.NoError(t, err)
	assert.Equal(t, mustDate(t, "2026-01-15"), event.Date)
	assert.Equal(t, models.EventStatusScheduled, event.Status)
}

func TestDecideTwiceFailsAndPreservesFirstDecision(t *testing.T) {
	svc, requests, _, _ := newWorkflow(t)

	created, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
		Outcome: models.RequestStatusRejected,
		Reason:  "No prejudice shown",
	}, arbitratorClaims())
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
		Outcome: models.RequestStatusApproved,
		Reason:  "Changed my mind",
	}, arbitratorClaims())
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	stored, err := requests.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, stored.Status)
	assert.Equal(t, "No prejudice shown", stored.DecisionReason)
}

func TestConcurrentDecidesHaveOneWinner(t *testing.T) {
	svc, requests, _, notifier := newWorkflow(t)

	created, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	outcomes := []models.RequestStatus{models.RequestStatusApproved, models.RequestStatusRejected}
	errs := make([]error, 8)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
				Outcome: outcomes[i%2],
				Reason:  fmt.Sprintf("ruling %d", i),
			}, arbitratorClaims())
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, decideErr := range errs {
		if decideErr == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, decideErr, appErrors.ErrInvalidTransition)
	}
	assert.Equal(t, 1, winners)

	stored, err := requests.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.RequestStatusPending, stored.Status)
	require.NotNil(t, stored.DecidedBy)
	assert.Len(t, notifier.decided, 1)
}

func TestDecideUnknownRequestFails(t *testing.T) {
	svc, _, _, _ := newWorkflow(t)

	_, err := svc.Decide(context.Background(), uuid.NewString(), dto.DecideRequestRequest{
		Outcome: models.RequestStatusApproved,
		Reason:  "Good cause shown",
	}, arbitratorClaims())
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestDecideRequiresReasonAndKnownOutcome(t *testing.T) {
	svc, requests, _, _ := newWorkflow(t)

	created, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
		Outcome: models.RequestStatusApproved,
		Reason:  "   ",
	}, arbitratorClaims())
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
		Outcome: "MAYBE",
		Reason:  "Good cause shown",
	}, arbitratorClaims())
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	stored, err := requests.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, stored.Status)
}

func TestDecideForbiddenForParties(t *testing.T) {
	svc, _, _, _ := newWorkflow(t)

	created, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
		Outcome: models.RequestStatusApproved,
		Reason:  "Granting my own request",
	}, claimantClaims())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestApproveDanglingReferenceKeepsDecision(t *testing.T) {
	svc, requests, timeline, _ := newWorkflow(t)

	created, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	// The event disappears between filing and decision.
	delete(timeline.events, "Statement of Defence")

	decided, err := svc.Decide(context.Background(), created.ID, dto.DecideRequestRequest{
		Outcome: models.RequestStatusApproved,
		Reason:  "Good cause shown",
	}, arbitratorClaims())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDanglingReference)
	require.NotNil(t, decided)
	assert.Equal(t, models.RequestStatusApproved, decided.Status)

	stored, err := requests.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, stored.Status)
}

func TestListScopesPartiesToOwnRequests(t *testing.T) {
	svc, _, _, _ := newWorkflow(t)

	_, err := svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Claimant filing",
		ProposedDate: "2026-01-20",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	respondent := &models.JWTClaims{UserID: "rsp-1", Role: models.RoleRespondent}
	_, err = svc.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Respondent filing",
		ProposedDate: "2026-01-22",
		TargetEvent:  "Statement of Defence",
	}, respondent)
	require.NoError(t, err)

	all, err := svc.List(context.Background(), dto.RequestQuery{}, arbitratorClaims())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := svc.List(context.Background(), dto.RequestQuery{}, respondent)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Respondent filing", own[0].Summary)
}

func TestPendingInboxForbiddenForParties(t *testing.T) {
	svc, _, _, _ := newWorkflow(t)
	_, err := svc.ListPending(context.Background(), claimantClaims())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
