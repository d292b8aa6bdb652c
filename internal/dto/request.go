package dto

import "github.com/arbos-dev/arbos-api/internal/models"

// CreateRequestRequest payload for filing a procedural request. Dates use the
// YYYY-MM-DD calendar format.
type CreateRequestRequest struct {
	DocType      string `json:"doc_type"`
	Summary      string `json:"summary"`
	ProposedDate string `json:"proposed_date"`
	TargetEvent  string `json:"target_event"`
}

// DecideRequestRequest captures the arbitrator decision.
type DecideRequestRequest struct {
	Outcome models.RequestStatus `json:"outcome"`
	Reason  string               `json:"reason"`
}

// RequestQuery mirrors supported listing filters. Zero Limit means no
// pagination.
type RequestQuery struct {
	Status []models.RequestStatus
	Limit  int
	Offset int
}

// PendingRequestView decorates a pending request with delay impact analysis
// for the tribunal inbox.
type PendingRequestView struct {
	Request models.Request     `json:"request"`
	Impact  models.DelayImpact `json:"impact"`
}
