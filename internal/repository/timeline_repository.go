package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arbos-dev/arbos-api/internal/models"
)

// TimelineRepository persists the procedural timeline.
type TimelineRepository struct {
	db      *sqlx.DB
	observe QueryObserver
}

// NewTimelineRepository constructs the repository.
func NewTimelineRepository(db *sqlx.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// SetQueryObserver registers a latency callback for executed statements.
func (r *TimelineRepository) SetQueryObserver(obs QueryObserver) {
	r.observe = obs
}

// List returns the full timeline ordered by scheduled date.
func (r *TimelineRepository) List(ctx context.Context) ([]models.TimelineEvent, error) {
	const query = `SELECT id, event, date, owner, status, created_at, updated_at
	FROM timeline_events ORDER BY date ASC, event ASC`
	defer observeQuery(r.observe, "timeline.list", time.Now())
	var events []models.TimelineEvent
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	return events, nil
}

// GetByEvent fetches a timeline event by its exact name.
func (r *TimelineRepository) GetByEvent(ctx context.Context, event string) (*models.TimelineEvent, error) {
	const query = `SELECT id, event, date, owner, status, created_at, updated_at
	FROM timeline_events WHERE event = $1 LIMIT 1`
	defer observeQuery(r.observe, "timeline.get", time.Now())
	var found models.TimelineEvent
	if err := r.db.GetContext(ctx, &found, query, event); err != nil {
		return nil, err
	}
	return &found, nil
}

// Reschedule moves the named event to a new date and marks it RESCHEDULED.
// Returns sql.ErrNoRows when no event carries that name.
func (r *TimelineRepository) Reschedule(ctx context.Context, event string, newDate time.Time) error {
	const query = `UPDATE timeline_events SET date = $2, status = $3, updated_at = $4 WHERE event = $1`
	defer observeQuery(r.observe, "timeline.reschedule", time.Now())
	result, err := r.db.ExecContext(ctx, query, event, newDate, models.EventStatusRescheduled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reschedule timeline event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reschedule rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceAll swaps the whole timeline for the provided rows in one
// transaction. This is the full-snapshot write used by seed imports.
func (r *TimelineRepository) ReplaceAll(ctx context.Context, events []models.TimelineEvent) error {
	defer observeQuery(r.observe, "timeline.replace_all", time.Now())
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin timeline replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM timeline_events`); err != nil {
		return fmt.Errorf("clear timeline: %w", err)
	}

	const insert = `INSERT INTO timeline_events (id, event, date, owner, status, created_at, updated_at)
	VALUES (:id, :event, :date, :owner, :status, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		if events[i].Status == "" {
			events[i].Status = models.EventStatusScheduled
		}
		if events[i].CreatedAt.IsZero() {
			events[i].CreatedAt = now
		}
		events[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, insert, events[i]); err != nil {
			return fmt.Errorf("insert timeline event %q: %w", events[i].Event, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit timeline replace: %w", err)
	}
	return nil
}
