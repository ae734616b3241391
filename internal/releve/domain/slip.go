package releve

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Slip is one RL-24 document for one child for one tax year. It is owned by
// its transmission; the slip number is 1-based and unique within it.
type Slip struct {
	ID             string
	TransmissionID string
	SlipNumber     int
	TaxYear        int

	// Recipient (the paying parent).
	RecipientName    string
	RecipientSIN     string
	RecipientAddress Address

	// Child covered by the slip.
	ChildName      string
	ChildBirthDate time.Time
	ChildKey       string

	ServiceStart time.Time
	ServiceEnd   time.Time

	// Boxes A-E. Box E is derived from C and D.
	DaysOfCare   int
	AmountPaid   float64
	Eligible     float64
	Contribution float64
	NetEligible  float64

	TypeCode string
	Status   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address is a mailing address as it appears on the slip and paper summary.
type Address struct {
	Line1      string
	City       string
	Province   string
	PostalCode string
}

// BuildSlipID derives a stable identity from the natural key, so a rerun of
// the same batch resolves to the same slip rather than a new row.
func BuildSlipID(transmissionID string, childKey string, taxYear int) string {
	base := transmissionID + "|" + childKey + "|" + strconv.Itoa(taxYear)
	hash := sha256.Sum256([]byte(base))
	return "slip-" + hex.EncodeToString(hash[:8])
}

// RecalculateNet recomputes box E from boxes C and D. Negative results clamp
// to zero; the government contribution can exceed the eligible amount when a
// retroactive subsidy lands after the fact.
func (s *Slip) RecalculateNet() {
	net := s.Eligible - s.Contribution
	if net < 0 {
		net = 0
	}
	s.NetEligible = roundMoney(net)
}

// Active reports whether the slip counts toward transmission totals: not
// cancelled by type code and not superseded by a later correction.
func (s *Slip) Active() bool {
	if s.TypeCode == TypeCodeCancelled {
		return false
	}
	return s.Status != SlipStatusAmended && s.Status != SlipStatusCancelled
}

// MarkIncluded transitions a draft slip into its finalized state.
func (s *Slip) MarkIncluded(now time.Time) {
	if s.Status == SlipStatusDraft {
		s.Status = SlipStatusIncluded
		s.UpdatedAt = now
	}
}

// roundMoney rounds to the fixed monetary precision. Applied once, after
// summation, so repeated recomputation is idempotent.
func roundMoney(v float64) float64 {
	const shift = 100 // 10^MoneyPrecision
	if v >= 0 {
		return float64(int64(v*shift+0.5)) / shift
	}
	return float64(int64(v*shift-0.5)) / shift
}
