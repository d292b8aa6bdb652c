package dto

// ExtractOrderRequest carries the preliminary meeting report text to mine for
// PO1 fields. Text extraction from the uploaded PDF happens client-side.
type ExtractOrderRequest struct {
	ReportText string `json:"report_text"`
}

// RenderOrderRequest holds reviewed PO1 fields ready for document generation.
type RenderOrderRequest struct {
	CaseReference      string `json:"case_reference"`
	MeetingDate        string `json:"meeting_date"`
	ClaimantRep1       string `json:"claimant_rep_1"`
	ClaimantRep2       string `json:"claimant_rep_2"`
	RespondentRep1     string `json:"respondent_rep_1"`
	RespondentRep2     string `json:"respondent_rep_2"`
	ClaimantContact    string `json:"claimant_contact"`
	RespondentContact  string `json:"respondent_contact"`
	ArbitratorContact  string `json:"arbitrator_contact"`
	TimetableClause    string `json:"timetable_clause"`
	ConfirmationPeriod string `json:"confirmation_period"`
	IncludeTimetable   bool   `json:"include_timetable"`
}
