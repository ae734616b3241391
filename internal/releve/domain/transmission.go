package releve

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Transmission is one submission batch for one (school year, tax year,
// preparer) triple. It owns its slips and carries the aggregate totals
// reported on the RL-24 summary.
type Transmission struct {
	ID           string
	SchoolYearID string
	TaxYear      int
	Sequence     int

	// Provider snapshot captured at creation time; later configuration
	// edits must not rewrite history.
	ProviderName    string
	ProviderNEQ     string
	ProviderAddress Address
	PreparerID      string

	SlipCount         int
	ParticipantCount  int
	TotalDays         int
	TotalPaid         float64
	TotalEligible     float64
	TotalContribution float64
	TotalNet          float64

	FilePath         string
	ValidationPassed bool
	ValidationErrors []string

	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BuildTransmissionID derives a stable identity from the natural key.
func BuildTransmissionID(schoolYearID string, taxYear, sequence int) string {
	base := schoolYearID + "|" + strconv.Itoa(taxYear) + "|" + strconv.Itoa(sequence)
	hash := sha256.Sum256([]byte(base))
	return "tx-" + hex.EncodeToString(hash[:8])
}

// ApplySummary copies computed totals onto the transmission.
func (t *Transmission) ApplySummary(sum Summary) {
	t.SlipCount = sum.SlipCount
	t.ParticipantCount = sum.ParticipantCount
	t.TotalDays = sum.TotalDays
	t.TotalPaid = sum.TotalPaid
	t.TotalEligible = sum.TotalEligible
	t.TotalContribution = sum.TotalContribution
	t.TotalNet = sum.TotalNet
}

// Immutable reports whether the transmission is past the point of
// regeneration.
func (t *Transmission) Immutable() bool {
	return t.Status == TransmissionStatusSubmitted || t.Status == TransmissionStatusAccepted
}

// CanCancel reports whether the transmission may still be destroyed: only a
// draft shell that produced no slips qualifies.
func (t *Transmission) CanCancel() bool {
	return t.Status == TransmissionStatusDraft && t.SlipCount == 0
}
