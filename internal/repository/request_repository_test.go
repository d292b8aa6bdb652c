package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/arbos-dev/arbos-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestColumns() []string {
	return []string{"id", "party", "doc_type", "summary", "proposed_date", "target_event", "status",
		"decision_reason", "decision_date", "decided_by", "created_by", "created_at", "attachment"}
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.Request{
		Party:        models.RoleClaimant,
		DocType:      "Extension Request",
		Summary:      "Two more weeks for expert evidence",
		ProposedDate: time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC),
		TargetEvent:  "Statement of Defence",
		CreatedBy:    "clm-1",
	}
	require.NoError(t, repo.Create(context.Background(), request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.RequestStatusPending, request.Status)

	rows := sqlmock.NewRows(requestColumns()).
		AddRow(request.ID, "CLAIMANT", "Extension Request", request.Summary, request.ProposedDate,
			"Statement of Defence", "PENDING", "", nil, nil, "clm-1", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, party, doc_type, summary")).
		WithArgs(request.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, request.ID, found.ID)
	require.Equal(t, models.RequestStatusPending, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	rows := sqlmock.NewRows(requestColumns()).
		AddRow("req-1", "RESPONDENT", "Extension Request", "summary", time.Now(),
			"Final Hearing", "PENDING", "", nil, nil, "rsp-1", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, party, doc_type, summary")).
		WithArgs("PENDING", "rsp-1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.RequestFilter{
		Status:    []models.RequestStatus{models.RequestStatusPending},
		CreatedBy: "rsp-1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListWithoutLimitReturnsAllRows(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	rows := sqlmock.NewRows(requestColumns())
	for i := 0; i < 150; i++ {
		rows.AddRow(fmt.Sprintf("req-%d", i), "CLAIMANT", "Extension Request", "summary", time.Now(),
			"Final Hearing", "PENDING", "", nil, nil, "clm-1", time.Now(), nil)
	}
	// The statement must end at the ordering clause: no implicit LIMIT.
	mock.ExpectQuery(`ORDER BY created_at ASC$`).
		WithArgs("PENDING").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.RequestFilter{
		Status: []models.RequestStatus{models.RequestStatusPending},
	})
	require.NoError(t, err)
	require.Len(t, list, 150)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListAppliesRequestedPagination(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	rows := sqlmock.NewRows(requestColumns()).
		AddRow("req-5", "CLAIMANT", "Extension Request", "summary", time.Now(),
			"Final Hearing", "PENDING", "", nil, nil, "clm-1", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 2 OFFSET 4")).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.RequestFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryRecordDecisionGuardsPending(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	decisionDate := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.RecordDecision(context.Background(), DecisionParams{
		ID:           "req-1",
		Status:       models.RequestStatusApproved,
		Reason:       "Good cause shown",
		DecisionDate: decisionDate,
		DecidedBy:    "arb-1",
	})
	require.NoError(t, err)

	// Second decision hits zero rows: the PENDING guard failed.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.RecordDecision(context.Background(), DecisionParams{
		ID:           "req-1",
		Status:       models.RequestStatusRejected,
		Reason:       "Second thoughts",
		DecisionDate: decisionDate,
		DecidedBy:    "arb-1",
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryReportsQueryLatency(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	samples := make(map[string]int)
	repo.SetQueryObserver(func(operation string, elapsed time.Duration) {
		require.GreaterOrEqual(t, elapsed, time.Duration(0))
		samples[operation]++
	})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, party, doc_type, summary")).
		WillReturnRows(sqlmock.NewRows(requestColumns()))
	_, err := repo.List(context.Background(), models.RequestFilter{})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RecordDecision(context.Background(), DecisionParams{
		ID:           "req-1",
		Status:       models.RequestStatusApproved,
		Reason:       "Good cause shown",
		DecisionDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		DecidedBy:    "arb-1",
	}))

	require.Equal(t, 1, samples["requests.list"])
	require.Equal(t, 1, samples["requests.decide"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositorySetAttachment(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET attachment")).
		WithArgs("req-1", "req-1/letter.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetAttachment(context.Background(), "req-1", "req-1/letter.pdf"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET attachment")).
		WithArgs("missing", "x.pdf").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.SetAttachment(context.Background(), "missing", "x.pdf"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
