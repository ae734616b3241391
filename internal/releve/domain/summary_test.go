package releve

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func activeSlip(child string, days int, paid, eligible, contribution float64) Slip {
	s := Slip{
		ChildKey:     child,
		DaysOfCare:   days,
		AmountPaid:   paid,
		Eligible:     eligible,
		Contribution: contribution,
		TypeCode:     TypeCodeOriginal,
		Status:       SlipStatusDraft,
	}
	s.RecalculateNet()
	return s
}

func TestCalculateFromSlips(t *testing.T) {
	slips := []Slip{
		activeSlip("child-1", 200, 1500.50, 1400.25, 200.00),
		activeSlip("child-2", 180, 1200.00, 1100.00, 150.75),
		activeSlip("child-1", 20, 100.00, 90.00, 0), // same child, second slip
	}
	cancelled := activeSlip("child-3", 50, 500, 450, 0)
	cancelled.TypeCode = TypeCodeCancelled
	superseded := activeSlip("child-4", 60, 600, 550, 0)
	superseded.Status = SlipStatusAmended
	slips = append(slips, cancelled, superseded)

	sum, err := CalculateFromSlips(slips)
	if err != nil {
		t.Fatalf("CalculateFromSlips: %v", err)
	}
	if sum.SlipCount != 3 {
		t.Fatalf("slip count = %d, want 3", sum.SlipCount)
	}
	if sum.CancelledCount != 1 || sum.AmendedCount != 1 {
		t.Fatalf("cancelled/amended = %d/%d, want 1/1", sum.CancelledCount, sum.AmendedCount)
	}
	if sum.ParticipantCount != 2 {
		t.Fatalf("participant count = %d, want 2", sum.ParticipantCount)
	}
	if sum.TotalDays != 400 {
		t.Fatalf("total days = %d, want 400", sum.TotalDays)
	}
	if sum.TotalPaid != 2800.50 {
		t.Fatalf("total paid = %v, want 2800.50", sum.TotalPaid)
	}
	if sum.TotalEligible != 2590.25 {
		t.Fatalf("total eligible = %v, want 2590.25", sum.TotalEligible)
	}
	if sum.TotalContribution != 350.75 {
		t.Fatalf("total contribution = %v, want 350.75", sum.TotalContribution)
	}
	if sum.TotalNet != 2239.50 {
		t.Fatalf("total net = %v, want 2239.50", sum.TotalNet)
	}
	if len(sum.Discrepancies) != 0 {
		t.Fatalf("unexpected discrepancies: %v", sum.Discrepancies)
	}
}

func TestCalculateFromSlipsIdempotent(t *testing.T) {
	slips := []Slip{
		activeSlip("c1", 33, 0.1, 0.1, 0.03),
		activeSlip("c2", 44, 0.2, 0.2, 0.07),
		activeSlip("c3", 55, 0.3, 0.3, 0.11),
	}
	first, err := CalculateFromSlips(slips)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := CalculateFromSlips(slips)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if first.TotalPaid != second.TotalPaid ||
		first.TotalEligible != second.TotalEligible ||
		first.TotalContribution != second.TotalContribution ||
		first.TotalNet != second.TotalNet {
		t.Fatalf("recomputation drifted: %+v vs %+v", first, second)
	}
}

func TestCalculateFromSlipsNetCrossCheck(t *testing.T) {
	bad := activeSlip("c1", 10, 100, 100, 20)
	bad.NetEligible = 999 // corrupt the derived box
	sum, err := CalculateFromSlips([]Slip{bad})
	if err != nil {
		t.Fatalf("CalculateFromSlips: %v", err)
	}
	if len(sum.Discrepancies) != 1 {
		t.Fatalf("expected one discrepancy, got %v", sum.Discrepancies)
	}
}

func TestCalculateFromSlipsNilInput(t *testing.T) {
	if _, err := CalculateFromSlips(nil); err != ErrNilSlips {
		t.Fatalf("expected ErrNilSlips, got %v", err)
	}
}

func TestCalculateServiceDays(t *testing.T) {
	cases := []struct {
		name       string
		start, end time.Time
		want       int
		wantErr    bool
	}{
		{"same day", date(2024, time.March, 5), date(2024, time.March, 5), 1, false},
		{"leap february", date(2024, time.February, 1), date(2024, time.February, 29), 29, false},
		{"non-leap february", date(2025, time.February, 1), date(2025, time.February, 28), 28, false},
		{"leap full year", date(2024, time.January, 1), date(2024, time.December, 31), 366, false},
		{"regular full year", date(2025, time.January, 1), date(2025, time.December, 31), 365, false},
		{"inverted", date(2024, time.June, 2), date(2024, time.June, 1), 0, true},
		{"zero start", time.Time{}, date(2024, time.June, 1), 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CalculateServiceDays(tc.start, tc.end)
			if tc.wantErr != (err != nil) {
				t.Fatalf("error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("days = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculatePreview(t *testing.T) {
	records := []EligibilityRecord{
		{ID: "e1", TaxYear: 2025, ApprovalStatus: ApprovalApproved, ChildKey: "c1",
			ServiceStart: date(2025, time.January, 1), ServiceEnd: date(2025, time.June, 30)},
		{ID: "e2", TaxYear: 2025, ApprovalStatus: "pending", ChildKey: "c2",
			ServiceStart: date(2025, time.January, 1), ServiceEnd: date(2025, time.June, 30)},
		{ID: "e3", TaxYear: 2024, ApprovalStatus: ApprovalApproved, ChildKey: "c3",
			ServiceStart: date(2024, time.January, 1), ServiceEnd: date(2024, time.June, 30)},
	}
	sum, err := CalculatePreview(records, 2025)
	if err != nil {
		t.Fatalf("CalculatePreview: %v", err)
	}
	if !sum.IsPreview {
		t.Fatal("expected preview flag")
	}
	if sum.SlipCount != 1 || sum.ParticipantCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", sum.SlipCount, sum.ParticipantCount)
	}
	if sum.TotalDays != 181 {
		t.Fatalf("total days = %d, want 181", sum.TotalDays)
	}
	if sum.TotalPaid != 0 || sum.TotalEligible != 0 {
		t.Fatal("preview must carry zero monetary totals")
	}
	if len(sum.Notes) == 0 {
		t.Fatal("preview must carry an explanatory note")
	}
}

func TestCalculateAveragesZeroGuard(t *testing.T) {
	avg := CalculateAverages(Summary{})
	if avg != (Averages{}) {
		t.Fatalf("expected all zeros, got %+v", avg)
	}
}

func TestCalculateAverages(t *testing.T) {
	sum := Summary{SlipCount: 4, TotalDays: 100, TotalPaid: 1000, TotalEligible: 800, TotalContribution: 200}
	avg := CalculateAverages(sum)
	if avg.DaysPerSlip != 25 || avg.PaidPerSlip != 250 || avg.EligiblePerSlip != 200 || avg.ContributionPerSlip != 50 {
		t.Fatalf("unexpected averages: %+v", avg)
	}
}

func TestBreakdownByType(t *testing.T) {
	original := activeSlip("c1", 10, 100, 90, 10)
	amended := activeSlip("c2", 20, 200, 180, 20)
	amended.TypeCode = TypeCodeAmended
	cancelled := activeSlip("c3", 30, 300, 270, 30)
	cancelled.TypeCode = TypeCodeCancelled

	bd, err := BreakdownByType([]Slip{original, amended, cancelled})
	if err != nil {
		t.Fatalf("BreakdownByType: %v", err)
	}
	if bd.Original.SlipCount != 1 || bd.Original.TotalPaid != 100 {
		t.Fatalf("original partition wrong: %+v", bd.Original)
	}
	if bd.Amended.SlipCount != 1 || bd.Amended.TotalPaid != 200 {
		t.Fatalf("amended partition wrong: %+v", bd.Amended)
	}
	// The cancelled partition aggregates no money at all.
	if bd.Cancelled.SlipCount != 0 || bd.Cancelled.CancelledCount != 1 || bd.Cancelled.TotalPaid != 0 {
		t.Fatalf("cancelled partition wrong: %+v", bd.Cancelled)
	}
	if bd.Combined.SlipCount != 2 || bd.Combined.CancelledCount != 1 {
		t.Fatalf("combined partition wrong: %+v", bd.Combined)
	}
}

func TestReconcileAgainstStored(t *testing.T) {
	slips := []Slip{
		activeSlip("c1", 100, 1000, 900, 100),
		activeSlip("c2", 50, 500, 450, 50),
	}
	stored, err := CalculateFromSlips(slips)
	if err != nil {
		t.Fatalf("CalculateFromSlips: %v", err)
	}

	ok, diffs, err := ReconcileAgainstStored(&stored, slips)
	if err != nil || !ok || len(diffs) != 0 {
		t.Fatalf("clean reconcile failed: ok=%v diffs=%v err=%v", ok, diffs, err)
	}

	// A half-cent drift stays within tolerance.
	drifted := stored
	drifted.TotalPaid += 0.005
	ok, diffs, err = ReconcileAgainstStored(&drifted, slips)
	if err != nil || !ok {
		t.Fatalf("within-tolerance reconcile failed: diffs=%v err=%v", diffs, err)
	}

	// Count diffs are exact, money diffs beyond tolerance reported.
	broken := stored
	broken.SlipCount = 5
	broken.TotalNet += 3
	ok, diffs, err = ReconcileAgainstStored(&broken, slips)
	if err != nil {
		t.Fatalf("ReconcileAgainstStored: %v", err)
	}
	if ok || len(diffs) != 2 {
		t.Fatalf("expected 2 discrepancies, got ok=%v diffs=%v", ok, diffs)
	}

	if _, _, err := ReconcileAgainstStored(nil, slips); err != ErrNilSummary {
		t.Fatalf("expected ErrNilSummary, got %v", err)
	}
}

func TestRecalculateNetClampsToZero(t *testing.T) {
	s := Slip{Eligible: 100, Contribution: 250}
	s.RecalculateNet()
	if s.NetEligible != 0 {
		t.Fatalf("net = %v, want 0", s.NetEligible)
	}
}
