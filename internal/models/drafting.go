package models

// OrderExtraction holds the PO1 fields pulled out of a preliminary meeting
// report. Field names mirror the order template keys.
type OrderExtraction struct {
	MeetingDate       string `json:"meeting_date"`
	ClaimantRep1      string `json:"claimant_rep_1"`
	ClaimantRep2      string `json:"claimant_rep_2"`
	RespondentRep1    string `json:"respondent_rep_1"`
	RespondentRep2    string `json:"respondent_rep_2"`
	ClaimantContact   string `json:"claimant_contact"`
	RespondentContact string `json:"respondent_contact"`
	ArbitratorContact string `json:"arbitrator_contact"`
}
