package application

// Stats counts what a batch run saw and did. Reported on every result, even
// successful ones, so partial skips are never silent.
type Stats struct {
	Eligible   int `json:"eligible"`
	Generated  int `json:"generated"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// Result is the outcome of a batch operation. Per-record validation problems
// land in Errors/Warnings rather than aborting the run; callers are expected
// to inspect both, not just the flag.
type Result struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	TransmissionID string   `json:"transmission_id,omitempty"`
	Sequence       int      `json:"sequence,omitempty"`
	FilePath       string   `json:"file_path,omitempty"`
	Validated      bool     `json:"validated"`
	DryRun         bool     `json:"dry_run,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Stats          Stats    `json:"stats"`
}

// Preview is the read-only answer to "what would a batch run do".
type Preview struct {
	CanProceed        bool     `json:"can_proceed"`
	ConfigErrors      []string `json:"config_errors,omitempty"`
	ApprovedCount     int      `json:"approved_count"`
	PendingCount      int      `json:"pending_count"`
	ExistingSlipCount int      `json:"existing_slip_count"`
	NewSlipCount      int      `json:"new_slip_count"`
	Warnings          []string `json:"warnings,omitempty"`

	// Identity a real run would claim next. Nothing is reserved.
	TransmissionID string `json:"transmission_id,omitempty"`
	Sequence       int    `json:"sequence,omitempty"`

	// Summary is computed from eligibility records; monetary boxes are zero
	// until slips exist.
	TotalDays        int `json:"total_days"`
	ParticipantCount int `json:"participant_count"`
}

// Options tune a batch run. DryRun replaces every write with a logged no-op
// while still running full validation; Verbose only affects logging
// granularity, never correctness.
type Options struct {
	DryRun  bool
	Verbose bool
}
