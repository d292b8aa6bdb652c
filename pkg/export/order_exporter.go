package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// OrderDocument carries the substitution values for Procedural Order No. 1.
type OrderDocument struct {
	CaseReference       string
	MeetingDate         string
	ClaimantRep1        string
	ClaimantRep2        string
	RespondentRep1      string
	RespondentRep2      string
	ClaimantContact     string
	RespondentContact   string
	ArbitratorContact   string
	TimetableClause     string
	ConfirmationPeriod  string
	TimetableRows       []map[string]string
	TimetableRowHeaders []string
}

// OrderExporter renders procedural orders into PDF bytes.
type OrderExporter struct{}

// NewOrderExporter constructs an order exporter.
func NewOrderExporter() *OrderExporter {
	return &OrderExporter{}
}

// Render produces the PO1 document. Representative fields must be present for
// both parties; remaining fields fall back to a dash placeholder.
func (e *OrderExporter) Render(doc OrderDocument) ([]byte, error) {
	if doc.ClaimantRep1 == "" || doc.RespondentRep1 == "" {
		return nil, fmt.Errorf("order requires lead representatives for both parties")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "PROCEDURAL ORDER NO. 1", "", 1, "C", false, 0, "")
	if doc.CaseReference != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, doc.CaseReference, "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	section := func(heading string, lines ...string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, heading, "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		for _, line := range lines {
			pdf.MultiCell(0, 6, orValue(line), "", "L", false)
		}
		pdf.Ln(3)
	}

	section("1. Preliminary Meeting",
		fmt.Sprintf("The preliminary meeting of the Tribunal and the Parties was held on %s.", orValue(doc.MeetingDate)))

	claimantReps := doc.ClaimantRep1
	if doc.ClaimantRep2 != "" {
		claimantReps += " and " + doc.ClaimantRep2
	}
	respondentReps := doc.RespondentRep1
	if doc.RespondentRep2 != "" {
		respondentReps += " and " + doc.RespondentRep2
	}
	section("2. Representation",
		"For the Claimant: "+claimantReps,
		"For the Respondent: "+respondentReps)

	section("3. Contact Details",
		"Claimant: "+doc.ClaimantContact,
		"Respondent: "+doc.RespondentContact,
		"Presiding Arbitrator: "+doc.ArbitratorContact)

	section("4. Procedural Timetable", doc.TimetableClause)

	if len(doc.TimetableRowHeaders) > 0 {
		pdf.SetFont("Arial", "B", 10)
		colWidth := 170.0 / float64(len(doc.TimetableRowHeaders))
		for _, header := range doc.TimetableRowHeaders {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, row := range doc.TimetableRows {
			for _, header := range doc.TimetableRowHeaders {
				pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(3)
	}

	confirmation := doc.ConfirmationPeriod
	if strings.TrimSpace(confirmation) == "" {
		confirmation = "14 days"
	}
	section("5. Confirmation",
		fmt.Sprintf("The Parties shall confirm the contents of this Order within %s of its issuance.", confirmation))

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render order pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func orValue(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
