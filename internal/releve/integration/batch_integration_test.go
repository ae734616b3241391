package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"garderie-cloud/internal/audit"
	"garderie-cloud/internal/releve/application"
	releve "garderie-cloud/internal/releve/domain"
	releverepo "garderie-cloud/internal/releve/infrastructure/postgres"
	"garderie-cloud/internal/releve/xmlgen"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestBatch_ProcessRegenerateAndSequence(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	taxYear := 2025

	_, _ = db.ExecContext(ctx, "DELETE FROM rl24_slips")
	_, _ = db.ExecContext(ctx, "DELETE FROM rl24_transmissions")
	_, _ = db.ExecContext(ctx, "DELETE FROM rl24_eligibility_records WHERE tax_year = $1", taxYear)
	_, _ = db.ExecContext(ctx, "DELETE FROM rl24_sequence_reservations WHERE tax_year = $1", taxYear)
	_, _ = db.ExecContext(ctx, "DELETE FROM rl24_run_log WHERE tax_year = $1", taxYear)

	if err := seedEligibility(ctx, db, taxYear); err != nil {
		t.Fatalf("seed eligibility: %v", err)
	}

	cfg := application.Config{
		ProviderName: "Garderie Les Petits Pas",
		ProviderNEQ:  "1234567890",
		ProviderAddress: application.AddressConfig{
			Line1:      "123 Rue Principale",
			City:       "Montreal",
			Province:   "QC",
			PostalCode: "H2X 1Y4",
		},
		PreparerID: "123456",
		OutputRoot: t.TempDir(),
	}

	transmissionRepo := releverepo.NewTransmissionRepository(db)
	sequenceRepo := releverepo.NewSequenceRepository(db)
	allocator, err := application.NewSequenceAllocator(sequenceRepo, cfg.OutputRoot)
	if err != nil {
		t.Fatalf("allocator: %v", err)
	}
	service, err := application.NewBatchService(
		cfg,
		transmissionRepo,
		releverepo.NewEligibilityRepository(db),
		allocator,
		xmlgen.NewGenerator(),
		xmlgen.NewValidator(),
		nil,
		audit.NewRecorder(db),
		log.New(io.Discard, "", 0),
	)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	result, err := service.ProcessBatch(ctx, "sy-2024-2025", taxYear, "integration-test", application.Options{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if result.Stats.Generated != 2 {
		t.Fatalf("expected 2 slips, got %d", result.Stats.Generated)
	}
	if result.Sequence != 1 {
		t.Fatalf("expected sequence 1, got %d", result.Sequence)
	}
	if _, err := os.Stat(result.FilePath); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}

	tx, err := transmissionRepo.GetByID(ctx, result.TransmissionID)
	if err != nil {
		t.Fatalf("get transmission: %v", err)
	}
	if tx.Status != releve.TransmissionStatusValidated {
		t.Fatalf("expected validated, got %s", tx.Status)
	}
	if tx.SlipCount != 2 {
		t.Fatalf("expected slip count 2, got %d", tx.SlipCount)
	}

	// The sequence triple is reserved; reclaiming it must collide.
	if err := sequenceRepo.Reserve(ctx, taxYear, cfg.PreparerID, 1); !errors.Is(err, releve.ErrSequenceTaken) {
		t.Fatalf("expected ErrSequenceTaken, got %v", err)
	}

	// Second run produces nothing new: both children already carry slips.
	second, err := service.ProcessBatch(ctx, "sy-2024-2025", taxYear, "integration-test", application.Options{})
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if second.Stats.Generated != 0 || second.Stats.Duplicates != 2 {
		t.Fatalf("expected idempotent run, got %+v", second.Stats)
	}

	regen, err := service.RegenerateXML(ctx, result.TransmissionID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if !regen.Success || regen.FilePath != result.FilePath {
		t.Fatalf("unexpected regen result: %+v", regen)
	}

	// Audit rows recorded for both real runs.
	var runs int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rl24_run_log WHERE tax_year = $1", taxYear).Scan(&runs); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 2 {
		t.Fatalf("expected 2 run log rows, got %d", runs)
	}
}

func applyMigrations(db *sql.DB) error {
	path := filepath.Join(projectRoot(), "migrations", "001_releve.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}

func seedEligibility(ctx context.Context, db *sql.DB, taxYear int) error {
	rows := []struct {
		id, parentName, parentSIN, childName, childKey string
	}{
		{"elig-it-1", "Marie Tremblay", "046454286", "Lea Tremblay", "child-it-1"},
		{"elig-it-2", "Jean Gagnon", "130692544", "Noah Gagnon", "child-it-2"},
	}
	start := time.Date(taxYear, 1, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(taxYear, 12, 19, 0, 0, 0, 0, time.UTC)
	birth := time.Date(taxYear-4, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, r := range rows {
		_, err := db.ExecContext(ctx, `
INSERT INTO rl24_eligibility_records (
	id, tax_year, parent_name, parent_sin,
	parent_addr_line1, parent_addr_city, parent_addr_province, parent_addr_postal,
	child_name, child_birth_date, child_key, service_start, service_end, approval_status
) VALUES ($1,$2,$3,$4,'123 Rue Principale','Montreal','QC','H2X 1Y4',$5,$6,$7,$8,$9,$10)`,
			r.id, taxYear, r.parentName, r.parentSIN,
			r.childName, birth, r.childKey, start, end, releve.ApprovalApproved)
		if err != nil {
			return err
		}
	}
	return nil
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}
