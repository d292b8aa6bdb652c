package dto

// TimelineEventRow is one row of a whole-document timeline import.
type TimelineEventRow struct {
	Event string `json:"event"`
	Date  string `json:"date"`
	Owner string `json:"owner"`
}

// ImportTimelineRequest replaces the full timeline with the given rows.
type ImportTimelineRequest struct {
	Events []TimelineEventRow `json:"events"`
}
