// Package memory holds in-memory repository mirrors used by unit tests and
// by dry-run tooling that must not touch postgres.
package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	releve "garderie-cloud/internal/releve/domain"
)

// TransmissionRepository is an in-memory mirror of the postgres repository.
type TransmissionRepository struct {
	mu            sync.RWMutex
	transmissions map[string]*releve.Transmission
	slips         map[string]*releve.Slip
}

// NewTransmissionRepository constructs a repository.
func NewTransmissionRepository() *TransmissionRepository {
	return &TransmissionRepository{
		transmissions: make(map[string]*releve.Transmission),
		slips:         make(map[string]*releve.Slip),
	}
}

// Create stores a transmission shell.
func (r *TransmissionRepository) Create(_ context.Context, tx *releve.Transmission) error {
	if tx == nil {
		return releve.ErrNilTransmission
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *tx
	r.transmissions[tx.ID] = &clone
	return nil
}

// GetByID fetches a transmission.
func (r *TransmissionRepository) GetByID(_ context.Context, id string) (*releve.Transmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.transmissions[id]
	if !ok {
		return nil, releve.ErrTransmissionNotFound
	}
	clone := *tx
	return &clone, nil
}

// UpdateTotals overwrites stored totals.
func (r *TransmissionRepository) UpdateTotals(_ context.Context, tx *releve.Transmission) error {
	if tx == nil {
		return releve.ErrNilTransmission
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.transmissions[tx.ID]
	if !ok {
		return releve.ErrTransmissionNotFound
	}
	stored.SlipCount = tx.SlipCount
	stored.ParticipantCount = tx.ParticipantCount
	stored.TotalDays = tx.TotalDays
	stored.TotalPaid = tx.TotalPaid
	stored.TotalEligible = tx.TotalEligible
	stored.TotalContribution = tx.TotalContribution
	stored.TotalNet = tx.TotalNet
	return nil
}

// UpdateStatus transitions the lifecycle state.
func (r *TransmissionRepository) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.transmissions[id]
	if !ok {
		return releve.ErrTransmissionNotFound
	}
	stored.Status = status
	return nil
}

// UpdateFileOutcome records the artifact path and validation verdict.
func (r *TransmissionRepository) UpdateFileOutcome(_ context.Context, id, filePath string, validationPassed bool, validationErrors []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.transmissions[id]
	if !ok {
		return releve.ErrTransmissionNotFound
	}
	stored.FilePath = filePath
	stored.ValidationPassed = validationPassed
	stored.ValidationErrors = append([]string(nil), validationErrors...)
	return nil
}

// CancelEmpty deletes a draft shell with no slips.
func (r *TransmissionRepository) CancelEmpty(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.transmissions[id]
	if !ok {
		return nil
	}
	if stored.Status != releve.TransmissionStatusDraft {
		return nil
	}
	for _, s := range r.slips {
		if s.TransmissionID == id {
			return nil
		}
	}
	delete(r.transmissions, id)
	return nil
}

// CreateSlip stores one slip.
func (r *TransmissionRepository) CreateSlip(_ context.Context, slip *releve.Slip) error {
	if slip == nil {
		return errors.New("memory repo: nil slip")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *slip
	r.slips[slip.ID] = &clone
	return nil
}

// ListSlips returns slips ordered by slip number.
func (r *TransmissionRepository) ListSlips(_ context.Context, transmissionID string) ([]releve.Slip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []releve.Slip
	for _, s := range r.slips {
		if s.TransmissionID == transmissionID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SlipNumber < result[j].SlipNumber })
	return result, nil
}

// FindActiveSlip returns the active slip for a child and tax year, or nil.
func (r *TransmissionRepository) FindActiveSlip(_ context.Context, childKey string, taxYear int) (*releve.Slip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.slips {
		if s.ChildKey == childKey && s.TaxYear == taxYear && s.Active() {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

// MarkSlipsIncluded flips draft slips of a transmission to included.
func (r *TransmissionRepository) MarkSlipsIncluded(_ context.Context, transmissionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slips {
		if s.TransmissionID == transmissionID && s.Status == releve.SlipStatusDraft {
			s.Status = releve.SlipStatusIncluded
		}
	}
	return nil
}

// CountSlipsForYear counts active slips for a tax year.
func (r *TransmissionRepository) CountSlipsForYear(_ context.Context, taxYear int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, s := range r.slips {
		if s.TaxYear == taxYear && s.Active() {
			count++
		}
	}
	return count, nil
}

// EligibilityRepository is an in-memory eligibility source seeded by tests.
type EligibilityRepository struct {
	mu      sync.RWMutex
	records []releve.EligibilityRecord
}

// NewEligibilityRepository constructs a repository.
func NewEligibilityRepository(records ...releve.EligibilityRecord) *EligibilityRepository {
	return &EligibilityRepository{records: records}
}

// Add appends records.
func (r *EligibilityRepository) Add(records ...releve.EligibilityRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
}

// ListByStatusAndYear returns matching records in insertion order.
func (r *EligibilityRepository) ListByStatusAndYear(_ context.Context, status string, taxYear int) ([]releve.EligibilityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []releve.EligibilityRecord
	for _, rec := range r.records {
		if rec.ApprovalStatus == status && rec.TaxYear == taxYear {
			result = append(result, rec)
		}
	}
	return result, nil
}

// CountByStatus tallies records per approval status.
func (r *EligibilityRepository) CountByStatus(_ context.Context, taxYear int) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, rec := range r.records {
		if rec.TaxYear == taxYear {
			counts[rec.ApprovalStatus]++
		}
	}
	return counts, nil
}

// SequenceRepository is an in-memory reservation table.
type SequenceRepository struct {
	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewSequenceRepository constructs a repository.
func NewSequenceRepository() *SequenceRepository {
	return &SequenceRepository{reserved: make(map[string]struct{})}
}

func sequenceKey(taxYear int, preparerID string, sequence int) string {
	return strconv.Itoa(taxYear) + "|" + preparerID + "|" + strconv.Itoa(sequence)
}

// HighWaterMark returns the highest reserved sequence.
func (r *SequenceRepository) HighWaterMark(_ context.Context, taxYear int, preparerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for seq := 1; seq <= releve.MaxSequencePerYear; seq++ {
		if _, ok := r.reserved[sequenceKey(taxYear, preparerID, seq)]; ok && seq > max {
			max = seq
		}
	}
	return max, nil
}

// Reserve claims a sequence, failing on duplicates like the unique constraint.
func (r *SequenceRepository) Reserve(_ context.Context, taxYear int, preparerID string, sequence int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sequenceKey(taxYear, preparerID, sequence)
	if _, ok := r.reserved[key]; ok {
		return releve.ErrSequenceTaken
	}
	r.reserved[key] = struct{}{}
	return nil
}
