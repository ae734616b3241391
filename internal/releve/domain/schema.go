package releve

// Fixed format rules of the RL-24 transmission file. Values come from the
// external filing specification and never change within a tax year.
const (
	// MaxSlipsPerFile is the hard cap on slips in one transmission file.
	MaxSlipsPerFile = 1000

	// MaxSequencePerYear bounds the 3-digit sequence field (001-999).
	MaxSequencePerYear = 999

	// MinTaxYear is the earliest tax year the format supports.
	MinTaxYear = 1990

	// MoneyPrecision is the number of decimal places for every monetary box.
	MoneyPrecision = 2

	// FileExtension of the transmission artifact.
	FileExtension = "xml"
)

// Filename segment widths: <2-digit year><6-digit preparer><3-digit sequence>.
const (
	FilenameYearWidth     = 2
	FilenamePreparerWidth = 6
	FilenameSequenceWidth = 3
)

// Slip type codes as they appear in the output file.
const (
	TypeCodeOriginal  = "R"
	TypeCodeAmended   = "A"
	TypeCodeCancelled = "D"
)

// Slip lifecycle statuses.
const (
	SlipStatusDraft     = "draft"
	SlipStatusIncluded  = "included"
	SlipStatusAmended   = "amended"
	SlipStatusCancelled = "cancelled"
)

// Transmission lifecycle statuses.
const (
	TransmissionStatusDraft     = "draft"
	TransmissionStatusGenerated = "generated"
	TransmissionStatusValidated = "validated"
	TransmissionStatusSubmitted = "submitted"
	TransmissionStatusAccepted  = "accepted"
	TransmissionStatusFailed    = "failed"
	TransmissionStatusCancelled = "cancelled"
)

// Box identifiers on the slip. Box E is derived: max(0, C - D).
const (
	BoxDaysOfCare   = "A"
	BoxAmountPaid   = "B"
	BoxEligible     = "C"
	BoxContribution = "D"
	BoxNetEligible  = "E"
)

// Field length caps enforced by the XML serializer.
const (
	XMLMaxNameLength       = 60
	XMLMaxAddressLineWidth = 40
)
