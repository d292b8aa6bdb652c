package models

import "time"

// RequestStatus captures workflow states for procedural requests.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// RequestOutcome is the decision recorded by the arbitrator.
type RequestOutcome = RequestStatus

// Request is one party-filed procedural application against a timeline event.
// It is created PENDING and transitions exactly once to APPROVED or REJECTED;
// the decision fields are written together with the transition.
type Request struct {
	ID             string        `db:"id" json:"id"`
	Party          UserRole      `db:"party" json:"party"`
	DocType        string        `db:"doc_type" json:"doc_type"`
	Summary        string        `db:"summary" json:"summary"`
	ProposedDate   time.Time     `db:"proposed_date" json:"proposed_date"`
	TargetEvent    string        `db:"target_event" json:"target_event"`
	Status         RequestStatus `db:"status" json:"status"`
	DecisionReason string        `db:"decision_reason" json:"decision_reason,omitempty"`
	DecisionDate   *time.Time    `db:"decision_date" json:"decision_date,omitempty"`
	DecidedBy      *string       `db:"decided_by" json:"decided_by,omitempty"`
	CreatedBy      string        `db:"created_by" json:"created_by"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	Attachment     *string       `db:"attachment" json:"attachment,omitempty"`
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	Status    []RequestStatus
	CreatedBy string
	Party     UserRole
	Limit     int
	Offset    int
}

// DelayImpact estimates the financial effect of moving an event.
// Burn rate covers arbitrator fees, counsel fees for both sides and admin costs.
type DelayImpact struct {
	DaysDelayed      int   `json:"days_delayed"`
	EstimatedCostUSD int64 `json:"estimated_cost_usd"`
}
