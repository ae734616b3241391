package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	releve "garderie-cloud/internal/releve/domain"
)

// TransmissionRepository persists transmissions and slips.
type TransmissionRepository struct {
	db *sql.DB
}

// NewTransmissionRepository constructs a repository.
func NewTransmissionRepository(db *sql.DB) *TransmissionRepository {
	return &TransmissionRepository{db: db}
}

// Create inserts a transmission shell.
func (r *TransmissionRepository) Create(ctx context.Context, tx *releve.Transmission) error {
	if r == nil || r.db == nil {
		return errors.New("transmission repo: nil db")
	}
	if tx == nil {
		return releve.ErrNilTransmission
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rl24_transmissions (
	id, school_year_id, tax_year, sequence, preparer_id,
	provider_name, provider_neq, provider_addr_line1, provider_addr_city,
	provider_addr_province, provider_addr_postal,
	slip_count, participant_count, total_days, total_paid, total_eligible,
	total_contribution, total_net, file_path, validation_passed,
	validation_errors, status, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
)`,
		tx.ID, tx.SchoolYearID, tx.TaxYear, tx.Sequence, tx.PreparerID,
		tx.ProviderName, tx.ProviderNEQ, tx.ProviderAddress.Line1, tx.ProviderAddress.City,
		tx.ProviderAddress.Province, tx.ProviderAddress.PostalCode,
		tx.SlipCount, tx.ParticipantCount, tx.TotalDays, tx.TotalPaid, tx.TotalEligible,
		tx.TotalContribution, tx.TotalNet, tx.FilePath, tx.ValidationPassed,
		strings.Join(tx.ValidationErrors, "\n"), tx.Status, tx.CreatedAt, tx.UpdatedAt,
	)
	return err
}

// GetByID fetches a transmission, or ErrTransmissionNotFound.
func (r *TransmissionRepository) GetByID(ctx context.Context, id string) (*releve.Transmission, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transmission repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, school_year_id, tax_year, sequence, preparer_id,
	provider_name, provider_neq, provider_addr_line1, provider_addr_city,
	provider_addr_province, provider_addr_postal,
	slip_count, participant_count, total_days, total_paid, total_eligible,
	total_contribution, total_net, file_path, validation_passed,
	validation_errors, status, created_at, updated_at
FROM rl24_transmissions
WHERE id = $1
LIMIT 1`, id)

	var tx releve.Transmission
	var validationErrors sql.NullString
	err := row.Scan(
		&tx.ID, &tx.SchoolYearID, &tx.TaxYear, &tx.Sequence, &tx.PreparerID,
		&tx.ProviderName, &tx.ProviderNEQ, &tx.ProviderAddress.Line1, &tx.ProviderAddress.City,
		&tx.ProviderAddress.Province, &tx.ProviderAddress.PostalCode,
		&tx.SlipCount, &tx.ParticipantCount, &tx.TotalDays, &tx.TotalPaid, &tx.TotalEligible,
		&tx.TotalContribution, &tx.TotalNet, &tx.FilePath, &tx.ValidationPassed,
		&validationErrors, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, releve.ErrTransmissionNotFound
		}
		return nil, err
	}
	if validationErrors.Valid && validationErrors.String != "" {
		tx.ValidationErrors = strings.Split(validationErrors.String, "\n")
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return &tx, nil
}

// UpdateTotals persists recomputed summary totals.
func (r *TransmissionRepository) UpdateTotals(ctx context.Context, tx *releve.Transmission) error {
	if r == nil || r.db == nil {
		return errors.New("transmission repo: nil db")
	}
	if tx == nil {
		return releve.ErrNilTransmission
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE rl24_transmissions
SET slip_count = $1, participant_count = $2, total_days = $3, total_paid = $4,
	total_eligible = $5, total_contribution = $6, total_net = $7, updated_at = NOW()
WHERE id = $8`,
		tx.SlipCount, tx.ParticipantCount, tx.TotalDays, tx.TotalPaid,
		tx.TotalEligible, tx.TotalContribution, tx.TotalNet, tx.ID)
	return err
}

// UpdateStatus transitions the transmission lifecycle state.
func (r *TransmissionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if r == nil || r.db == nil {
		return errors.New("transmission repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE rl24_transmissions
SET status = $1, updated_at = NOW()
WHERE id = $2`, status, id)
	return err
}

// UpdateFileOutcome records the serialized artifact path and its validation
// verdict.
func (r *TransmissionRepository) UpdateFileOutcome(ctx context.Context, id, filePath string, validationPassed bool, validationErrors []string) error {
	if r == nil || r.db == nil {
		return errors.New("transmission repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE rl24_transmissions
SET file_path = $1, validation_passed = $2, validation_errors = $3, updated_at = NOW()
WHERE id = $4`, filePath, validationPassed, strings.Join(validationErrors, "\n"), id)
	return err
}

// CancelEmpty deletes a draft shell with no slips. The slips table cascades,
// so a shell that unexpectedly grew slips is left alone.
func (r *TransmissionRepository) CancelEmpty(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("transmission repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM rl24_transmissions
WHERE id = $1 AND status = $2
	AND NOT EXISTS (SELECT 1 FROM rl24_slips WHERE transmission_id = $1)`,
		id, releve.TransmissionStatusDraft)
	return err
}

// CreateSlip inserts one slip.
func (r *TransmissionRepository) CreateSlip(ctx context.Context, slip *releve.Slip) error {
	if r == nil || r.db == nil {
		return errors.New("transmission repo: nil db")
	}
	if slip == nil {
		return errors.New("transmission repo: nil slip")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rl24_slips (
	id, transmission_id, slip_number, tax_year,
	recipient_name, recipient_sin, recipient_addr_line1, recipient_addr_city,
	recipient_addr_province, recipient_addr_postal,
	child_name, child_birth_date, child_key, service_start, service_end,
	days_of_care, amount_paid, eligible, contribution, net_eligible,
	type_code, status, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
)`,
		slip.ID, slip.TransmissionID, slip.SlipNumber, slip.TaxYear,
		slip.RecipientName, slip.RecipientSIN, slip.RecipientAddress.Line1, slip.RecipientAddress.City,
		slip.RecipientAddress.Province, slip.RecipientAddress.PostalCode,
		slip.ChildName, slip.ChildBirthDate, slip.ChildKey, slip.ServiceStart, slip.ServiceEnd,
		slip.DaysOfCare, slip.AmountPaid, slip.Eligible, slip.Contribution, slip.NetEligible,
		slip.TypeCode, slip.Status, slip.CreatedAt, slip.UpdatedAt,
	)
	return err
}

// ListSlips returns a transmission's slips ordered by slip number.
func (r *TransmissionRepository) ListSlips(ctx context.Context, transmissionID string) ([]releve.Slip, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transmission repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, transmission_id, slip_number, tax_year,
	recipient_name, recipient_sin, recipient_addr_line1, recipient_addr_city,
	recipient_addr_province, recipient_addr_postal,
	child_name, child_birth_date, child_key, service_start, service_end,
	days_of_care, amount_paid, eligible, contribution, net_eligible,
	type_code, status, created_at, updated_at
FROM rl24_slips
WHERE transmission_id = $1
ORDER BY slip_number ASC`, transmissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []releve.Slip
	for rows.Next() {
		slip, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *slip)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FindActiveSlip returns the active slip for a child and tax year, or nil.
func (r *TransmissionRepository) FindActiveSlip(ctx context.Context, childKey string, taxYear int) (*releve.Slip, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transmission repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, transmission_id, slip_number, tax_year,
	recipient_name, recipient_sin, recipient_addr_line1, recipient_addr_city,
	recipient_addr_province, recipient_addr_postal,
	child_name, child_birth_date, child_key, service_start, service_end,
	days_of_care, amount_paid, eligible, contribution, net_eligible,
	type_code, status, created_at, updated_at
FROM rl24_slips
WHERE child_key = $1 AND tax_year = $2
	AND type_code <> $3 AND status NOT IN ($4, $5)
ORDER BY created_at DESC
LIMIT 1`, childKey, taxYear, releve.TypeCodeCancelled, releve.SlipStatusAmended, releve.SlipStatusCancelled)

	slip, err := scanSlip(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return slip, nil
}

// MarkSlipsIncluded flips every draft slip of a transmission to included.
func (r *TransmissionRepository) MarkSlipsIncluded(ctx context.Context, transmissionID string) error {
	if r == nil || r.db == nil {
		return errors.New("transmission repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE rl24_slips
SET status = $1, updated_at = NOW()
WHERE transmission_id = $2 AND status = $3`,
		releve.SlipStatusIncluded, transmissionID, releve.SlipStatusDraft)
	return err
}

// CountSlipsForYear counts active slips across all transmissions of a year.
func (r *TransmissionRepository) CountSlipsForYear(ctx context.Context, taxYear int) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("transmission repo: nil db")
	}
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM rl24_slips
WHERE tax_year = $1 AND type_code <> $2 AND status NOT IN ($3, $4)`,
		taxYear, releve.TypeCodeCancelled, releve.SlipStatusAmended, releve.SlipStatusCancelled).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlip(row rowScanner) (*releve.Slip, error) {
	var s releve.Slip
	err := row.Scan(
		&s.ID, &s.TransmissionID, &s.SlipNumber, &s.TaxYear,
		&s.RecipientName, &s.RecipientSIN, &s.RecipientAddress.Line1, &s.RecipientAddress.City,
		&s.RecipientAddress.Province, &s.RecipientAddress.PostalCode,
		&s.ChildName, &s.ChildBirthDate, &s.ChildKey, &s.ServiceStart, &s.ServiceEnd,
		&s.DaysOfCare, &s.AmountPaid, &s.Eligible, &s.Contribution, &s.NetEligible,
		&s.TypeCode, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.ChildBirthDate = s.ChildBirthDate.UTC()
	s.ServiceStart = s.ServiceStart.UTC()
	s.ServiceEnd = s.ServiceEnd.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
