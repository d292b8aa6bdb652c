package models

import "time"

// DateLayout is the calendar date format used across the procedural timeline.
const DateLayout = "2006-01-02"

// EventOwner enumerates the party responsible for a procedural event.
type EventOwner string

const (
	OwnerTribunal   EventOwner = "TRIBUNAL"
	OwnerClaimant   EventOwner = "CLAIMANT"
	OwnerRespondent EventOwner = "RESPONDENT"
	OwnerAll        EventOwner = "ALL"
)

// EventStatus captures scheduling states for timeline events.
type EventStatus string

const (
	EventStatusScheduled   EventStatus = "SCHEDULED"
	EventStatusRescheduled EventStatus = "RESCHEDULED"
)

// TimelineEvent is one scheduled procedural deadline. The event name is the
// natural key; lookups and reschedules match it exactly.
type TimelineEvent struct {
	ID        string      `db:"id" json:"id"`
	Event     string      `db:"event" json:"event"`
	Date      time.Time   `db:"date" json:"date"`
	Owner     EventOwner  `db:"owner" json:"owner"`
	Status    EventStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// GanttSpan is a derived chart segment for the timeline view. Spans are given
// a fixed visual width of three days.
type GanttSpan struct {
	Event  string     `json:"event"`
	Start  string     `json:"start"`
	Finish string     `json:"finish"`
	Owner  EventOwner `json:"owner"`
	Color  string     `json:"color"`
}

// ValidOwner reports whether the owner value is one of the known parties.
func ValidOwner(o EventOwner) bool {
	switch o {
	case OwnerTribunal, OwnerClaimant, OwnerRespondent, OwnerAll:
		return true
	}
	return false
}
