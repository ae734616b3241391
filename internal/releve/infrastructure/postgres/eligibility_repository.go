package postgres

import (
	"context"
	"database/sql"
	"errors"

	releve "garderie-cloud/internal/releve/domain"
)

// EligibilityRepository reads approved eligibility records. Records are
// written by the approval workflow; this engine only reads them.
type EligibilityRepository struct {
	db *sql.DB
}

// NewEligibilityRepository constructs a repository.
func NewEligibilityRepository(db *sql.DB) *EligibilityRepository {
	return &EligibilityRepository{db: db}
}

// ListByStatusAndYear returns eligibility records in creation order.
func (r *EligibilityRepository) ListByStatusAndYear(ctx context.Context, status string, taxYear int) ([]releve.EligibilityRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("eligibility repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tax_year, parent_name, parent_sin,
	parent_addr_line1, parent_addr_city, parent_addr_province, parent_addr_postal,
	child_name, child_birth_date, child_key, service_start, service_end, approval_status
FROM rl24_eligibility_records
WHERE approval_status = $1 AND tax_year = $2
ORDER BY created_at ASC`, status, taxYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []releve.EligibilityRecord
	for rows.Next() {
		var rec releve.EligibilityRecord
		if err := rows.Scan(
			&rec.ID, &rec.TaxYear, &rec.ParentName, &rec.ParentSIN,
			&rec.ParentAddress.Line1, &rec.ParentAddress.City, &rec.ParentAddress.Province, &rec.ParentAddress.PostalCode,
			&rec.ChildName, &rec.ChildBirthDate, &rec.ChildKey, &rec.ServiceStart, &rec.ServiceEnd, &rec.ApprovalStatus,
		); err != nil {
			return nil, err
		}
		rec.ChildBirthDate = rec.ChildBirthDate.UTC()
		rec.ServiceStart = rec.ServiceStart.UTC()
		rec.ServiceEnd = rec.ServiceEnd.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByStatus tallies eligibility records per approval status for a year.
func (r *EligibilityRepository) CountByStatus(ctx context.Context, taxYear int) (map[string]int, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("eligibility repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT approval_status, COUNT(*)
FROM rl24_eligibility_records
WHERE tax_year = $1
GROUP BY approval_status`, taxYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
