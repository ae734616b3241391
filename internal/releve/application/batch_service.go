package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"garderie-cloud/internal/identity"
	"garderie-cloud/internal/observability/metrics"
	releve "garderie-cloud/internal/releve/domain"
)

// Serializer writes a transmission to the external output format.
type Serializer interface {
	Generate(tx *releve.Transmission, slips []releve.Slip) ([]byte, error)
	WriteFile(path string, tx *releve.Transmission, slips []releve.Slip) error
}

// ArtifactValidator checks a serialized artifact against the external schema.
type ArtifactValidator interface {
	ValidateFile(path string) (bool, []string)
	Validate(data []byte) (bool, []string)
}

// AmountProvider supplies the monetary boxes for a slip. Billing integration
// is an explicit external dependency; until it lands, ZeroAmountProvider
// stands in and every monetary box is zero.
type AmountProvider interface {
	AmountsFor(ctx context.Context, rec releve.EligibilityRecord) (paid, eligible, contribution float64, err error)
}

// ZeroAmountProvider returns zero for every box.
type ZeroAmountProvider struct{}

// AmountsFor implements AmountProvider.
func (ZeroAmountProvider) AmountsFor(context.Context, releve.EligibilityRecord) (float64, float64, float64, error) {
	return 0, 0, 0, nil
}

// RunRecord is one audit entry per batch run.
type RunRecord struct {
	InitiatorID    string
	SchoolYearID   string
	TaxYear        int
	TransmissionID string
	Success        bool
	DryRun         bool
	Stats          Stats
	Duration       time.Duration
}

// RunRecorder persists batch-run audit entries.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// BatchService drives the annual RL-24 batch pipeline: provider validation,
// eligibility intake, slip generation, summary computation, serialization,
// and the transmission state machine.
type BatchService struct {
	cfg           Config
	transmissions releve.TransmissionRepository
	eligibility   releve.EligibilityRepository
	allocator     *SequenceAllocator
	serializer    Serializer
	validator     ArtifactValidator
	amounts       AmountProvider
	audit         RunRecorder
	logger        *log.Logger
	now           func() time.Time
}

// NewBatchService constructs the service. The audit recorder may be nil;
// everything else is required.
func NewBatchService(
	cfg Config,
	transmissions releve.TransmissionRepository,
	eligibility releve.EligibilityRepository,
	allocator *SequenceAllocator,
	serializer Serializer,
	validator ArtifactValidator,
	amounts AmountProvider,
	audit RunRecorder,
	logger *log.Logger,
) (*BatchService, error) {
	if transmissions == nil {
		return nil, errors.New("batch service: nil transmission repository")
	}
	if eligibility == nil {
		return nil, errors.New("batch service: nil eligibility repository")
	}
	if allocator == nil {
		return nil, errors.New("batch service: nil sequence allocator")
	}
	if serializer == nil {
		return nil, errors.New("batch service: nil serializer")
	}
	if validator == nil {
		return nil, errors.New("batch service: nil artifact validator")
	}
	if logger == nil {
		return nil, errors.New("batch service: nil logger")
	}
	if amounts == nil {
		amounts = ZeroAmountProvider{}
	}
	return &BatchService{
		cfg:           cfg,
		transmissions: transmissions,
		eligibility:   eligibility,
		allocator:     allocator,
		serializer:    serializer,
		validator:     validator,
		amounts:       amounts,
		audit:         audit,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Preview reports what a batch run would do without mutating anything.
func (s *BatchService) Preview(ctx context.Context, schoolYearID string, taxYear int) (Preview, error) {
	var pv Preview
	pv.ConfigErrors = s.cfg.Validate()

	counts, err := s.eligibility.CountByStatus(ctx, taxYear)
	if err != nil {
		return pv, fmt.Errorf("batch service: count eligibility: %w", err)
	}
	pv.ApprovedCount = counts[releve.ApprovalApproved]
	for status, n := range counts {
		if status != releve.ApprovalApproved {
			pv.PendingCount += n
		}
	}

	records, err := s.eligibility.ListByStatusAndYear(ctx, releve.ApprovalApproved, taxYear)
	if err != nil {
		return pv, fmt.Errorf("batch service: load eligibility: %w", err)
	}
	for _, rec := range records {
		existing, err := s.transmissions.FindActiveSlip(ctx, rec.ChildKey, taxYear)
		if err != nil {
			return pv, fmt.Errorf("batch service: duplicate lookup: %w", err)
		}
		if existing != nil {
			pv.ExistingSlipCount++
		} else {
			pv.NewSlipCount++
		}
	}

	sum, err := releve.CalculatePreview(records, taxYear)
	if err != nil {
		return pv, err
	}
	pv.TotalDays = sum.TotalDays
	pv.ParticipantCount = sum.ParticipantCount

	if pv.ApprovedCount > releve.MaxSlipsPerFile {
		pv.Warnings = append(pv.Warnings, fmt.Sprintf(
			"%d approved records exceed the %d-slip file maximum; multiple files will be required",
			pv.ApprovedCount, releve.MaxSlipsPerFile))
	}
	// Eligibility data is scoped by tax year alone; the school year only names
	// the transmission a run would create.
	seq, err := s.allocator.NextSequence(ctx, taxYear, s.cfg.PreparerID)
	if err != nil {
		pv.Warnings = append(pv.Warnings, fmt.Sprintf("sequence allocation would fail: %v", err))
	} else {
		pv.Sequence = seq
		pv.TransmissionID = releve.BuildTransmissionID(schoolYearID, taxYear, seq)
	}

	pv.CanProceed = len(pv.ConfigErrors) == 0 && pv.NewSlipCount > 0 && pv.Sequence > 0
	return pv, nil
}

// ProcessBatch runs the full pipeline for one (school year, tax year) pair.
// Infrastructure failures return a Go error; everything the batch can survive
// is folded into the Result.
func (s *BatchService) ProcessBatch(ctx context.Context, schoolYearID string, taxYear int, initiatorID string, opts Options) (Result, error) {
	start := s.now()
	outcome := metrics.ResultError
	defer func() {
		metrics.ObserveBatchProcess(outcome, time.Since(start))
	}()

	res := Result{DryRun: opts.DryRun}

	// 1. Provider configuration gates the whole batch; nothing is written
	// before it passes.
	if problems := s.cfg.Validate(); len(problems) > 0 {
		res.Message = "provider configuration is invalid"
		res.Errors = problems
		return res, nil
	}

	// 2. Eligibility intake.
	records, err := s.eligibility.ListByStatusAndYear(ctx, releve.ApprovalApproved, taxYear)
	if err != nil {
		return res, fmt.Errorf("batch service: load eligibility: %w", err)
	}
	res.Stats.Eligible = len(records)
	if len(records) == 0 {
		res.Message = fmt.Sprintf("no eligible children for tax year %d", taxYear)
		return res, nil
	}

	// 3. Size planning warning, never blocking.
	if len(records) > releve.MaxSlipsPerFile {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%d eligible records exceed the %d-slip file maximum; multiple files will be required",
			len(records), releve.MaxSlipsPerFile))
	}

	// 4. Sequence + shell transmission. Dry-run computes the candidate
	// sequence without reserving it.
	var filename string
	var sequence int
	if opts.DryRun {
		sequence, err = s.allocator.NextSequence(ctx, taxYear, s.cfg.PreparerID)
		if err == nil {
			filename, err = releve.GenerateFilename(taxYear, s.cfg.PreparerID, sequence)
		}
	} else {
		filename, sequence, err = s.allocator.AllocateUniqueFilename(ctx, taxYear, s.cfg.PreparerID)
	}
	if err != nil {
		res.Message = "sequence allocation failed"
		res.Errors = append(res.Errors, err.Error())
		return res, nil
	}

	now := s.now()
	tx := &releve.Transmission{
		ID:              releve.BuildTransmissionID(schoolYearID, taxYear, sequence),
		SchoolYearID:    schoolYearID,
		TaxYear:         taxYear,
		Sequence:        sequence,
		PreparerID:      s.cfg.PreparerID,
		ProviderName:    s.cfg.ProviderName,
		ProviderNEQ:     s.cfg.ProviderNEQ,
		ProviderAddress: s.cfg.Address(),
		Status:          releve.TransmissionStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	res.TransmissionID = tx.ID
	res.Sequence = sequence
	if opts.DryRun {
		s.logf(opts, "dry-run: would create transmission %s (sequence %03d)", tx.ID, sequence)
	} else {
		if err := s.transmissions.Create(ctx, tx); err != nil {
			return res, fmt.Errorf("batch service: create transmission: %w", err)
		}
	}

	// 5. One slip per eligible record, in input order. A bad record never
	// aborts the batch.
	slips, genErrs, genWarns, stats, err := s.generateSlips(ctx, tx, records, opts)
	if err != nil {
		return res, err
	}
	res.Errors = append(res.Errors, genErrs...)
	res.Warnings = append(res.Warnings, genWarns...)
	res.Stats.Generated = stats.Generated
	res.Stats.Skipped = stats.Skipped
	res.Stats.Duplicates = stats.Duplicates
	if !opts.DryRun {
		metrics.AddSlipsGenerated(stats.Generated)
	}

	// 6. Nothing produced: cancel the shell and report.
	if len(slips) == 0 {
		if opts.DryRun {
			s.logf(opts, "dry-run: would cancel empty transmission %s", tx.ID)
		} else {
			if err := s.transmissions.CancelEmpty(ctx, tx.ID); err != nil {
				return res, fmt.Errorf("batch service: cancel empty transmission: %w", err)
			}
		}
		res.Message = "no slips generated; transmission cancelled"
		s.recordRun(ctx, schoolYearID, taxYear, initiatorID, tx.ID, res, opts, start)
		return res, nil
	}

	// 7. Summary totals against the finalized slip set.
	sum, err := releve.CalculateFromSlips(slips)
	if err != nil {
		return res, err
	}
	res.Warnings = append(res.Warnings, sum.Discrepancies...)
	tx.ApplySummary(sum)
	if !opts.DryRun {
		if err := s.transmissions.UpdateTotals(ctx, tx); err != nil {
			return res, fmt.Errorf("batch service: update totals: %w", err)
		}
	}

	// 8-9. Serialize, validate, transition.
	if err := s.finalize(ctx, tx, slips, filename, opts, &res); err != nil {
		return res, err
	}

	if res.Success {
		outcome = metrics.ResultSuccess
	}
	s.recordRun(ctx, schoolYearID, taxYear, initiatorID, tx.ID, res, opts, start)
	return res, nil
}

// generateSlips walks eligibility records in input order and creates one slip
// per record that survives duplicate detection and per-record validation.
func (s *BatchService) generateSlips(ctx context.Context, tx *releve.Transmission, records []releve.EligibilityRecord, opts Options) ([]releve.Slip, []string, []string, Stats, error) {
	var slips []releve.Slip
	var errs, warns []string
	var stats Stats
	seen := make(map[string]struct{}, len(records))
	now := s.now()

	for _, rec := range records {
		// Duplicate safety: at most one active slip per (child, tax year),
		// across prior transmissions and within this run.
		if _, dup := seen[rec.ChildKey]; dup {
			stats.Duplicates++
			metrics.IncSlipSkipped("duplicate")
			warns = append(warns, fmt.Sprintf("record %s: duplicate child %s within batch, skipped", rec.ID, rec.ChildKey))
			continue
		}
		existing, err := s.transmissions.FindActiveSlip(ctx, rec.ChildKey, tx.TaxYear)
		if err != nil {
			return nil, nil, nil, stats, fmt.Errorf("batch service: duplicate lookup: %w", err)
		}
		if existing != nil {
			stats.Duplicates++
			metrics.IncSlipSkipped("duplicate")
			warns = append(warns, fmt.Sprintf("record %s: active slip already exists for child %s, skipped", rec.ID, rec.ChildKey))
			continue
		}

		if problem := validateRecord(rec, tx.TaxYear); problem != "" {
			stats.Skipped++
			metrics.IncSlipSkipped("validation")
			errs = append(errs, fmt.Sprintf("record %s: %s, skipped", rec.ID, problem))
			continue
		}

		days, err := releve.CalculateServiceDays(rec.ServiceStart, rec.ServiceEnd)
		if err != nil {
			stats.Skipped++
			metrics.IncSlipSkipped("service_period")
			errs = append(errs, fmt.Sprintf("record %s: %v, skipped", rec.ID, err))
			continue
		}

		paid, eligible, contribution, err := s.amounts.AmountsFor(ctx, rec)
		if err != nil {
			stats.Skipped++
			errs = append(errs, fmt.Sprintf("record %s: amount lookup failed: %v, skipped", rec.ID, err))
			continue
		}

		slip := releve.Slip{
			ID:               releve.BuildSlipID(tx.ID, rec.ChildKey, tx.TaxYear),
			TransmissionID:   tx.ID,
			SlipNumber:       len(slips) + 1,
			TaxYear:          tx.TaxYear,
			RecipientName:    rec.ParentName,
			RecipientSIN:     rec.ParentSIN,
			RecipientAddress: rec.ParentAddress,
			ChildName:        rec.ChildName,
			ChildBirthDate:   rec.ChildBirthDate,
			ChildKey:         rec.ChildKey,
			ServiceStart:     rec.ServiceStart,
			ServiceEnd:       rec.ServiceEnd,
			DaysOfCare:       days,
			AmountPaid:       paid,
			Eligible:         eligible,
			Contribution:     contribution,
			TypeCode:         releve.TypeCodeOriginal,
			Status:           releve.SlipStatusDraft,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		slip.RecalculateNet()

		if opts.DryRun {
			s.logf(opts, "dry-run: would create slip %d for child %s", slip.SlipNumber, rec.ChildKey)
		} else {
			if err := s.transmissions.CreateSlip(ctx, &slip); err != nil {
				return nil, nil, nil, stats, fmt.Errorf("batch service: create slip: %w", err)
			}
		}
		seen[rec.ChildKey] = struct{}{}
		slips = append(slips, slip)
		stats.Generated++
	}
	return slips, errs, warns, stats, nil
}

// validateRecord applies per-record validation. The returned string is empty
// when the record is acceptable.
func validateRecord(rec releve.EligibilityRecord, taxYear int) string {
	if rec.ParentName == "" {
		return "parent name missing"
	}
	if rec.ChildName == "" {
		return "child name missing"
	}
	if !identity.ValidateSIN(rec.ParentSIN) {
		return fmt.Sprintf("parent SIN %q fails checksum", rec.ParentSIN)
	}
	if rec.ServiceStart.Year() != taxYear || rec.ServiceEnd.Year() != taxYear {
		return fmt.Sprintf("service period %s to %s outside tax year %d",
			rec.ServiceStart.Format("2006-01-02"), rec.ServiceEnd.Format("2006-01-02"), taxYear)
	}
	return ""
}

// finalize serializes the artifact, validates it, and transitions the
// transmission and its slips.
func (s *BatchService) finalize(ctx context.Context, tx *releve.Transmission, slips []releve.Slip, filename string, opts Options, res *Result) error {
	path := s.allocator.ArtifactPath(tx.TaxYear, filename)

	if opts.DryRun {
		data, err := s.serializer.Generate(tx, slips)
		if err != nil {
			res.Message = "serialization failed"
			res.Errors = append(res.Errors, err.Error())
			return nil
		}
		ok, problems := s.validator.Validate(data)
		res.FilePath = path
		res.Validated = ok
		res.Errors = append(res.Errors, problems...)
		res.Success = true
		res.Message = fmt.Sprintf("dry-run: %d slips would be written to %s", len(slips), path)
		return nil
	}

	if err := s.serializer.WriteFile(path, tx, slips); err != nil {
		res.Message = "serialization failed"
		res.Errors = append(res.Errors, err.Error())
		// Only a first serialization marks the transmission failed. One that
		// already produced an artifact keeps its status, and the prior file
		// stays inspectable.
		if tx.Status == releve.TransmissionStatusDraft {
			if stErr := s.transmissions.UpdateStatus(ctx, tx.ID, releve.TransmissionStatusFailed); stErr != nil {
				return fmt.Errorf("batch service: mark failed: %w", stErr)
			}
		}
		return nil
	}

	ok, problems := s.validator.ValidateFile(path)
	if err := s.transmissions.UpdateFileOutcome(ctx, tx.ID, path, ok, problems); err != nil {
		return fmt.Errorf("batch service: record file outcome: %w", err)
	}

	// Schema rejection keeps the artifact around for inspection: the
	// transmission lands in generated, not failed.
	status := releve.TransmissionStatusValidated
	if !ok {
		status = releve.TransmissionStatusGenerated
		res.Errors = append(res.Errors, problems...)
	}
	if err := s.transmissions.UpdateStatus(ctx, tx.ID, status); err != nil {
		return fmt.Errorf("batch service: update status: %w", err)
	}
	if err := s.transmissions.MarkSlipsIncluded(ctx, tx.ID); err != nil {
		return fmt.Errorf("batch service: mark slips included: %w", err)
	}

	tx.Status = status
	res.FilePath = path
	res.Validated = ok
	res.Success = true
	res.Message = fmt.Sprintf("%d slips written to %s", len(slips), path)
	s.logf(opts, "transmission %s finalized as %s (%d slips)", tx.ID, status, len(slips))
	return nil
}

// RegenerateXML re-serializes an existing transmission's slips. Submitted and
// accepted transmissions are immutable.
func (s *BatchService) RegenerateXML(ctx context.Context, transmissionID string) (Result, error) {
	start := s.now()
	outcome := metrics.ResultError
	defer func() {
		metrics.ObserveXMLRegenerate(outcome, time.Since(start))
	}()

	var res Result
	tx, err := s.transmissions.GetByID(ctx, transmissionID)
	if err != nil {
		if errors.Is(err, releve.ErrTransmissionNotFound) {
			res.Message = fmt.Sprintf("transmission %s not found", transmissionID)
			return res, nil
		}
		return res, fmt.Errorf("batch service: load transmission: %w", err)
	}
	res.TransmissionID = tx.ID
	res.Sequence = tx.Sequence

	if tx.Immutable() {
		res.Message = fmt.Sprintf("transmission %s is %s and cannot be regenerated", tx.ID, tx.Status)
		res.Errors = append(res.Errors, releve.ErrTransmissionImmutable.Error())
		return res, nil
	}

	slips, err := s.transmissions.ListSlips(ctx, tx.ID)
	if err != nil {
		return res, fmt.Errorf("batch service: list slips: %w", err)
	}
	res.Stats.Generated = len(slips)

	filename, err := releve.GenerateFilename(tx.TaxYear, tx.PreparerID, tx.Sequence)
	if err != nil {
		res.Message = "filename derivation failed"
		res.Errors = append(res.Errors, err.Error())
		return res, nil
	}

	if err := s.finalize(ctx, tx, slips, filename, Options{}, &res); err != nil {
		return res, err
	}
	if res.Success {
		outcome = metrics.ResultSuccess
	}
	return res, nil
}

func (s *BatchService) recordRun(ctx context.Context, schoolYearID string, taxYear int, initiatorID, transmissionID string, res Result, opts Options, start time.Time) {
	if s.audit == nil || opts.DryRun {
		return
	}
	rec := RunRecord{
		InitiatorID:    initiatorID,
		SchoolYearID:   schoolYearID,
		TaxYear:        taxYear,
		TransmissionID: transmissionID,
		Success:        res.Success,
		DryRun:         opts.DryRun,
		Stats:          res.Stats,
		Duration:       time.Since(start),
	}
	if err := s.audit.RecordRun(ctx, rec); err != nil {
		s.logger.Printf("batch service: audit record failed: %v", err)
	}
}

func (s *BatchService) logf(opts Options, format string, args ...any) {
	if opts.Verbose {
		s.logger.Printf(format, args...)
	}
}
