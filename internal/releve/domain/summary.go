package releve

import (
	"fmt"
	"math"
	"time"
)

// moneyEpsilon is the tolerance used when cross-checking derived monetary
// fields and when reconciling against stored totals.
const moneyEpsilon = 0.01

// Summary holds transmission-level totals computed from slips, or
// preview-level totals computed from eligibility records before any slip
// exists.
type Summary struct {
	SlipCount        int
	AmendedCount     int
	CancelledCount   int
	ParticipantCount int

	TotalDays         int
	TotalPaid         float64
	TotalEligible     float64
	TotalContribution float64
	TotalNet          float64

	IsPreview     bool
	Notes         []string
	Discrepancies []string
}

// Averages carries per-slip means over the active slip population.
type Averages struct {
	DaysPerSlip         float64
	PaidPerSlip         float64
	EligiblePerSlip     float64
	ContributionPerSlip float64
}

// TypeBreakdown re-aggregates the slip population per type code.
type TypeBreakdown struct {
	Original  Summary
	Amended   Summary
	Cancelled Summary
	Combined  Summary
}

// CalculateFromSlips aggregates slips into transmission totals in a single
// pass. Cancelled-type slips and superseded slips are counted but excluded
// from monetary totals; only the superseding slip carries money. Rounding is
// applied once after summation so recomputation on unchanged input is
// idempotent.
func CalculateFromSlips(slips []Slip) (Summary, error) {
	if slips == nil {
		return Summary{}, ErrNilSlips
	}

	var sum Summary
	children := make(map[string]struct{})
	for _, s := range slips {
		if s.TypeCode == TypeCodeCancelled {
			sum.CancelledCount++
			continue
		}
		if s.Status == SlipStatusAmended || s.Status == SlipStatusCancelled {
			sum.AmendedCount++
			continue
		}
		sum.SlipCount++
		sum.TotalDays += s.DaysOfCare
		sum.TotalPaid += s.AmountPaid
		sum.TotalEligible += s.Eligible
		sum.TotalContribution += s.Contribution
		sum.TotalNet += s.NetEligible
		if s.ChildKey != "" {
			children[s.ChildKey] = struct{}{}
		}
	}
	sum.ParticipantCount = len(children)
	sum.TotalPaid = roundMoney(sum.TotalPaid)
	sum.TotalEligible = roundMoney(sum.TotalEligible)
	sum.TotalContribution = roundMoney(sum.TotalContribution)
	sum.TotalNet = roundMoney(sum.TotalNet)

	expectedNet := sum.TotalEligible - sum.TotalContribution
	if expectedNet < 0 {
		expectedNet = 0
	}
	expectedNet = roundMoney(expectedNet)
	if math.Abs(sum.TotalNet-expectedNet) > moneyEpsilon {
		sum.Discrepancies = append(sum.Discrepancies, fmt.Sprintf(
			"net total %.2f does not match eligible minus contribution %.2f", sum.TotalNet, expectedNet))
	}
	return sum, nil
}

// EligibilityRecord is the approved precursor to a slip; see the eligibility
// data source contract. Read-only input to this engine.
type EligibilityRecord struct {
	ID             string
	TaxYear        int
	ParentName     string
	ParentSIN      string
	ParentAddress  Address
	ChildName      string
	ChildBirthDate time.Time
	ChildKey       string
	ServiceStart   time.Time
	ServiceEnd     time.Time
	ApprovalStatus string
}

// ApprovalApproved is the only approval status eligible for slip generation.
const ApprovalApproved = "approved"

// CalculatePreview computes the summary shape from eligibility records before
// any slip exists. Monetary boxes are necessarily zero: billing data only
// attaches at slip generation time.
func CalculatePreview(records []EligibilityRecord, taxYear int) (Summary, error) {
	if records == nil {
		return Summary{}, ErrNilSlips
	}

	sum := Summary{IsPreview: true}
	children := make(map[string]struct{})
	for _, rec := range records {
		if rec.TaxYear != taxYear || rec.ApprovalStatus != ApprovalApproved {
			continue
		}
		days, err := CalculateServiceDays(rec.ServiceStart, rec.ServiceEnd)
		if err != nil {
			sum.Notes = append(sum.Notes, fmt.Sprintf("record %s: %v", rec.ID, err))
			continue
		}
		sum.SlipCount++
		sum.TotalDays += days
		if rec.ChildKey != "" {
			children[rec.ChildKey] = struct{}{}
		}
	}
	sum.ParticipantCount = len(children)
	sum.Notes = append(sum.Notes, "preview: monetary boxes are zero until slips are generated")
	return sum, nil
}

// CalculateServiceDays returns the inclusive calendar day count between start
// and end. Leap years fall out of time.Time arithmetic. An inverted or zero
// date yields 0 with a descriptive error rather than a panic.
func CalculateServiceDays(start, end time.Time) (int, error) {
	if start.IsZero() || end.IsZero() {
		return 0, fmt.Errorf("releve: service period has unset date (start=%v end=%v)", start, end)
	}
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if endDay.Before(startDay) {
		return 0, fmt.Errorf("releve: service period ends %s before it starts %s",
			endDay.Format("2006-01-02"), startDay.Format("2006-01-02"))
	}
	return int(endDay.Sub(startDay).Hours()/24) + 1, nil
}

// CalculateAverages returns per-slip means. A zero slip count returns all
// zeros instead of dividing by zero.
func CalculateAverages(sum Summary) Averages {
	if sum.SlipCount == 0 {
		return Averages{}
	}
	n := float64(sum.SlipCount)
	return Averages{
		DaysPerSlip:         float64(sum.TotalDays) / n,
		PaidPerSlip:         roundMoney(sum.TotalPaid / n),
		EligiblePerSlip:     roundMoney(sum.TotalEligible / n),
		ContributionPerSlip: roundMoney(sum.TotalContribution / n),
	}
}

// BreakdownByType re-runs the aggregation once per type-code partition plus
// once combined, for audit and print purposes.
func BreakdownByType(slips []Slip) (TypeBreakdown, error) {
	if slips == nil {
		return TypeBreakdown{}, ErrNilSlips
	}
	partition := func(code string) []Slip {
		out := make([]Slip, 0, len(slips))
		for _, s := range slips {
			if s.TypeCode == code {
				out = append(out, s)
			}
		}
		return out
	}
	var bd TypeBreakdown
	var err error
	if bd.Original, err = CalculateFromSlips(partition(TypeCodeOriginal)); err != nil {
		return TypeBreakdown{}, err
	}
	if bd.Amended, err = CalculateFromSlips(partition(TypeCodeAmended)); err != nil {
		return TypeBreakdown{}, err
	}
	if bd.Cancelled, err = CalculateFromSlips(partition(TypeCodeCancelled)); err != nil {
		return TypeBreakdown{}, err
	}
	if bd.Combined, err = CalculateFromSlips(slips); err != nil {
		return TypeBreakdown{}, err
	}
	return bd, nil
}

// ReconcileAgainstStored recomputes totals from slips and diffs every field
// against a previously persisted summary. Money fields tolerate ±0.01;
// counts must match exactly. The full discrepancy list is returned so the
// caller decides materiality.
func ReconcileAgainstStored(stored *Summary, slips []Slip) (bool, []string, error) {
	if stored == nil {
		return false, nil, ErrNilSummary
	}
	fresh, err := CalculateFromSlips(slips)
	if err != nil {
		return false, nil, err
	}

	var diffs []string
	checkCount := func(field string, stored, fresh int) {
		if stored != fresh {
			diffs = append(diffs, fmt.Sprintf("%s: stored %d, recomputed %d", field, stored, fresh))
		}
	}
	checkMoney := func(field string, stored, fresh float64) {
		if math.Abs(stored-fresh) > moneyEpsilon {
			diffs = append(diffs, fmt.Sprintf("%s: stored %.2f, recomputed %.2f", field, stored, fresh))
		}
	}
	checkCount("slip count", stored.SlipCount, fresh.SlipCount)
	checkCount("amended count", stored.AmendedCount, fresh.AmendedCount)
	checkCount("cancelled count", stored.CancelledCount, fresh.CancelledCount)
	checkCount("participant count", stored.ParticipantCount, fresh.ParticipantCount)
	checkCount("total days", stored.TotalDays, fresh.TotalDays)
	checkMoney("total paid", stored.TotalPaid, fresh.TotalPaid)
	checkMoney("total eligible", stored.TotalEligible, fresh.TotalEligible)
	checkMoney("total contribution", stored.TotalContribution, fresh.TotalContribution)
	checkMoney("total net", stored.TotalNet, fresh.TotalNet)

	return len(diffs) == 0, diffs, nil
}
