package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	releve "garderie-cloud/internal/releve/domain"
)

// uniqueViolation is the SQLSTATE raised when an insert breaks a unique
// constraint.
const uniqueViolation = "23505"

// SequenceRepository reserves transmission sequence numbers. The table
// carries UNIQUE(tax_year, preparer_id, sequence), so a concurrent allocation
// for the same triple surfaces as a constraint violation instead of a silent
// overwrite.
type SequenceRepository struct {
	db *sql.DB
}

// NewSequenceRepository constructs a repository.
func NewSequenceRepository(db *sql.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// HighWaterMark returns the highest reserved sequence for a (tax year,
// preparer) pair, zero when nothing is reserved yet.
func (r *SequenceRepository) HighWaterMark(ctx context.Context, taxYear int, preparerID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("sequence repo: nil db")
	}
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
SELECT MAX(sequence)
FROM rl24_sequence_reservations
WHERE tax_year = $1 AND preparer_id = $2`, taxYear, preparerID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// Reserve claims a sequence number. A duplicate claim maps to
// releve.ErrSequenceTaken so the allocator can retry with the next number.
func (r *SequenceRepository) Reserve(ctx context.Context, taxYear int, preparerID string, sequence int) error {
	if r == nil || r.db == nil {
		return errors.New("sequence repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rl24_sequence_reservations (tax_year, preparer_id, sequence, reserved_at)
VALUES ($1, $2, $3, NOW())`, taxYear, preparerID, sequence)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return releve.ErrSequenceTaken
		}
		return err
	}
	return nil
}
