package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	releve "garderie-cloud/internal/releve/domain"
)

// maskSIN hides all but the last three digits of a SIN for print output.
func maskSIN(sin string) string {
	digits := make([]rune, 0, len(sin))
	for _, r := range sin {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) != 9 {
		return "XXX XXX XXX"
	}
	return "XXX XXX " + string(digits[6:])
}

// BuildPaperSummaryPDF renders the print-ready RL-24 summary: identification,
// provider, totals, certification, and a masked slip listing.
func BuildPaperSummaryPDF(tx *releve.Transmission, slips []releve.Slip) ([]byte, error) {
	if tx == nil {
		return nil, releve.ErrNilTransmission
	}
	sum, err := releve.CalculateFromSlips(slips)
	if err != nil {
		return nil, err
	}
	avg := releve.CalculateAverages(sum)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("RL-24 Summary - Tax Year %d", tx.TaxYear))
	pdf.Ln(10)

	// Identification
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Identification")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Transmission: %s", tx.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sequence: %03d", tx.Sequence))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Preparer: %s", tx.PreparerID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", tx.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", tx.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	// Provider
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Provider")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tx.ProviderName)
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("NEQ: %s", tx.ProviderNEQ))
	pdf.Ln(5)
	pdf.Cell(0, 6, tx.ProviderAddress.Line1)
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("%s, %s  %s", tx.ProviderAddress.City, tx.ProviderAddress.Province, tx.ProviderAddress.PostalCode))
	pdf.Ln(8)

	// Totals
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Totals")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Slips: %d    Children: %d", sum.SlipCount, sum.ParticipantCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Box A (days of care): %d", sum.TotalDays))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Box B (amount paid): %.2f", sum.TotalPaid))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Box C (eligible): %.2f", sum.TotalEligible))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Box D (contribution): %.2f", sum.TotalContribution))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Box E (net eligible): %.2f", sum.TotalNet))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average days per slip: %.1f", avg.DaysPerSlip))
	pdf.Ln(8)

	// Certification
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Certification")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, "I certify that the information reported on this summary and the attached")
	pdf.Ln(5)
	pdf.Cell(0, 6, "slips is accurate and complete.")
	pdf.Ln(5)
	pdf.Cell(0, 6, "Signature: ______________________    Date: ____________")
	pdf.Ln(10)

	// Slip listing with masked identifiers
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(12, 6, "No", "1", 0, "C", false, 0, "")
	pdf.CellFormat(48, 6, "Recipient", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "SIN", "1", 0, "C", false, 0, "")
	pdf.CellFormat(48, 6, "Child", "1", 0, "C", false, 0, "")
	pdf.CellFormat(18, 6, "Days", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Net", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, s := range slips {
		pdf.CellFormat(12, 6, fmt.Sprintf("%d", s.SlipNumber), "1", 0, "C", false, 0, "")
		pdf.CellFormat(48, 6, s.RecipientName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(28, 6, maskSIN(s.RecipientSIN), "1", 0, "C", false, 0, "")
		pdf.CellFormat(48, 6, s.ChildName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(18, 6, fmt.Sprintf("%d", s.DaysOfCare), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", s.NetEligible), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAuditWorkbookXLSX renders the audit workbook: a summary sheet, the
// full slip listing, and a per-type breakdown.
func BuildAuditWorkbookXLSX(tx *releve.Transmission, slips []releve.Slip) ([]byte, error) {
	if tx == nil {
		return nil, releve.ErrNilTransmission
	}
	sum, err := releve.CalculateFromSlips(slips)
	if err != nil {
		return nil, err
	}
	breakdown, err := releve.BreakdownByType(slips)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	summarySheet := "summary"
	slipsSheet := "slips"
	typesSheet := "by_type"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(slipsSheet)
	f.NewSheet(typesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "RL-24 Transmission")
	_ = f.SetCellValue(summarySheet, "A3", "Transmission")
	_ = f.SetCellValue(summarySheet, "B3", tx.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Tax Year")
	_ = f.SetCellValue(summarySheet, "B4", tx.TaxYear)
	_ = f.SetCellValue(summarySheet, "A5", "Sequence")
	_ = f.SetCellValue(summarySheet, "B5", tx.Sequence)
	_ = f.SetCellValue(summarySheet, "A6", "Provider")
	_ = f.SetCellValue(summarySheet, "B6", tx.ProviderName)
	_ = f.SetCellValue(summarySheet, "A7", "NEQ")
	_ = f.SetCellValue(summarySheet, "B7", tx.ProviderNEQ)
	_ = f.SetCellValue(summarySheet, "A8", "Status")
	_ = f.SetCellValue(summarySheet, "B8", tx.Status)
	_ = f.SetCellValue(summarySheet, "A9", "Slips")
	_ = f.SetCellValue(summarySheet, "B9", sum.SlipCount)
	_ = f.SetCellValue(summarySheet, "A10", "Children")
	_ = f.SetCellValue(summarySheet, "B10", sum.ParticipantCount)
	_ = f.SetCellValue(summarySheet, "A11", "Total Days (A)")
	_ = f.SetCellValue(summarySheet, "B11", sum.TotalDays)
	_ = f.SetCellValue(summarySheet, "A12", "Total Paid (B)")
	_ = f.SetCellValue(summarySheet, "B12", sum.TotalPaid)
	_ = f.SetCellValue(summarySheet, "A13", "Total Eligible (C)")
	_ = f.SetCellValue(summarySheet, "B13", sum.TotalEligible)
	_ = f.SetCellValue(summarySheet, "A14", "Total Contribution (D)")
	_ = f.SetCellValue(summarySheet, "B14", sum.TotalContribution)
	_ = f.SetCellValue(summarySheet, "A15", "Total Net (E)")
	_ = f.SetCellValue(summarySheet, "B15", sum.TotalNet)

	headers := []string{"No", "Type", "Status", "Recipient", "SIN", "Child", "Service Start", "Service End", "Days", "Paid", "Eligible", "Contribution", "Net"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(slipsSheet, cell, h)
	}
	for i, s := range slips {
		row := i + 2
		values := []any{
			s.SlipNumber, s.TypeCode, s.Status, s.RecipientName, maskSIN(s.RecipientSIN), s.ChildName,
			s.ServiceStart.Format("2006-01-02"), s.ServiceEnd.Format("2006-01-02"),
			s.DaysOfCare, s.AmountPaid, s.Eligible, s.Contribution, s.NetEligible,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(slipsSheet, cell, v)
		}
	}

	_ = f.SetCellValue(typesSheet, "A1", "Partition")
	_ = f.SetCellValue(typesSheet, "B1", "Slips")
	_ = f.SetCellValue(typesSheet, "C1", "Days")
	_ = f.SetCellValue(typesSheet, "D1", "Paid")
	_ = f.SetCellValue(typesSheet, "E1", "Eligible")
	_ = f.SetCellValue(typesSheet, "F1", "Contribution")
	_ = f.SetCellValue(typesSheet, "G1", "Net")
	writeBreakdownRow := func(row int, label string, s releve.Summary) {
		_ = f.SetCellValue(typesSheet, fmt.Sprintf("A%d", row), label)
		_ = f.SetCellValue(typesSheet, fmt.Sprintf("B%d", row), s.SlipCount)
		_ = f.SetCellValue(typesSheet, fmt.Sprintf("C%d", row), s.TotalDays)
		_ = f.SetCellValue(typesSheet, fmt.Sprintf("D%d", row), s.TotalPaid)
		_ = f.SetCellValue(typesSheet, fmt.Sprintf("E%d", row), s.TotalEligible)
		_ = f.SetCellValue(typesSheet, fmt.Sprintf("F%d", row), s.TotalContribution)
		_ = f.SetCellValue(typesSheet, fmt.Sprintf("G%d", row), s.TotalNet)
	}
	writeBreakdownRow(2, "original", breakdown.Original)
	writeBreakdownRow(3, "amended", breakdown.Amended)
	writeBreakdownRow(4, "cancelled", breakdown.Cancelled)
	writeBreakdownRow(5, "combined", breakdown.Combined)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
