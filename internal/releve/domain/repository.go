package releve

import "context"

// TransmissionRepository persists transmissions and their slips.
type TransmissionRepository interface {
	Create(ctx context.Context, tx *Transmission) error
	GetByID(ctx context.Context, id string) (*Transmission, error)
	UpdateTotals(ctx context.Context, tx *Transmission) error
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateFileOutcome(ctx context.Context, id, filePath string, validationPassed bool, validationErrors []string) error
	// CancelEmpty removes a draft shell that produced no slips; slips cascade.
	CancelEmpty(ctx context.Context, id string) error

	CreateSlip(ctx context.Context, slip *Slip) error
	ListSlips(ctx context.Context, transmissionID string) ([]Slip, error)
	// FindActiveSlip returns the active slip for a child and tax year across
	// all transmissions, or nil when none exists.
	FindActiveSlip(ctx context.Context, childKey string, taxYear int) (*Slip, error)
	MarkSlipsIncluded(ctx context.Context, transmissionID string) error
	CountSlipsForYear(ctx context.Context, taxYear int) (int, error)
}

// EligibilityRepository reads approved eligibility records.
type EligibilityRepository interface {
	ListByStatusAndYear(ctx context.Context, status string, taxYear int) ([]EligibilityRecord, error)
	CountByStatus(ctx context.Context, taxYear int) (map[string]int, error)
}

// SequenceRepository reserves transmission sequence numbers. Reserve must
// fail with ErrSequenceTaken when the (taxYear, preparerID, sequence) triple
// is already held, so allocation races surface as detectable collisions.
type SequenceRepository interface {
	HighWaterMark(ctx context.Context, taxYear int, preparerID string) (int, error)
	Reserve(ctx context.Context, taxYear int, preparerID string, sequence int) error
}
