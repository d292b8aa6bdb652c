package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arbos-dev/arbos-api/internal/models"
)

// RequestRepository persists procedural request workflow data.
type RequestRepository struct {
	db      *sqlx.DB
	observe QueryObserver
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// SetQueryObserver registers a latency callback for executed statements.
func (r *RequestRepository) SetQueryObserver(obs QueryObserver) {
	r.observe = obs
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO requests
	(id, party, doc_type, summary, proposed_date, target_event, status, decision_reason, decision_date, decided_by, created_by, created_at, attachment)
	VALUES (:id, :party, :doc_type, :summary, :proposed_date, :target_event, :status, :decision_reason, :decision_date, :decided_by, :created_by, :created_at, :attachment)`
	defer observeQuery(r.observe, "requests.create", time.Now())
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	const query = `SELECT id, party, doc_type, summary, proposed_date, target_event, status,
       decision_reason, decision_date, decided_by, created_by, created_at, attachment
	FROM requests WHERE id = $1`
	defer observeQuery(r.observe, "requests.get", time.Now())
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter in insertion order. A zero limit
// returns every matching row; the pending inbox depends on that.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT id, party, doc_type, summary, proposed_date, target_event, status,
       decision_reason, decision_date, decided_by, created_by, created_at, attachment FROM requests`)

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.Party != "" {
		args = append(args, filter.Party)
		conditions = append(conditions, fmt.Sprintf("party = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at ASC")

	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			builder.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	defer observeQuery(r.observe, "requests.list", time.Now())
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// DecisionParams groups the columns written by a decision.
type DecisionParams struct {
	ID           string
	Status       models.RequestStatus
	Reason       string
	DecisionDate time.Time
	DecidedBy    string
}

// RecordDecision persists the decision with a compare-and-set on PENDING
// status. A zero row count means the request was already decided (or never
// existed) and surfaces as sql.ErrNoRows.
func (r *RequestRepository) RecordDecision(ctx context.Context, params DecisionParams) error {
	query := fmt.Sprintf(`UPDATE requests
	SET status = :status, decision_reason = :reason, decision_date = :decision_date, decided_by = :decided_by
	WHERE id = :id AND status = '%s'`, models.RequestStatusPending)
	defer observeQuery(r.observe, "requests.decide", time.Now())
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            params.ID,
		"status":        params.Status,
		"reason":        params.Reason,
		"decision_date": params.DecisionDate,
		"decided_by":    params.DecidedBy,
	})
	if err != nil {
		return fmt.Errorf("record request decision: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check decision rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetAttachment links an uploaded formal letter to a request.
func (r *RequestRepository) SetAttachment(ctx context.Context, id, path string) error {
	const query = `UPDATE requests SET attachment = $2 WHERE id = $1`
	defer observeQuery(r.observe, "requests.set_attachment", time.Now())
	result, err := r.db.ExecContext(ctx, query, id, path)
	if err != nil {
		return fmt.Errorf("set request attachment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check attachment rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
