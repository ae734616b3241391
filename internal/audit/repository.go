package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"garderie-cloud/internal/releve/application"
)

// Recorder persists batch-run audit entries to postgres. It satisfies
// application.RunRecorder.
type Recorder struct {
	db *sql.DB
}

// NewRecorder constructs a run recorder.
func NewRecorder(db *sql.DB) *Recorder {
	if db == nil {
		return nil
	}
	return &Recorder{db: db}
}

// RecordRun writes one audit row per batch run.
func (r *Recorder) RecordRun(ctx context.Context, rec application.RunRecord) error {
	if r == nil || r.db == nil {
		return errors.New("audit recorder: nil db")
	}
	metadata := encodeStats(rec.Stats)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO rl24_run_log (
	id, initiator_id, school_year_id, tax_year, transmission_id,
	success, dry_run, metadata, payload_digest, duration_ms, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, NewRunID(), rec.InitiatorID, rec.SchoolYearID, rec.TaxYear, rec.TransmissionID,
		rec.Success, rec.DryRun, metadata, DigestJSON(metadata),
		rec.Duration.Milliseconds(), time.Now().UTC())
	return err
}
