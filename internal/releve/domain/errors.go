package releve

import "errors"

var (
	// ErrNilSlips indicates a nil slip collection was passed where a
	// (possibly empty) slice is required.
	ErrNilSlips = errors.New("releve: nil slip collection")

	// ErrNilTransmission indicates a nil transmission aggregate.
	ErrNilTransmission = errors.New("releve: nil transmission")

	// ErrNilSummary indicates a nil stored summary passed to reconciliation.
	ErrNilSummary = errors.New("releve: nil summary")

	// ErrSequenceExhausted is returned when all 999 sequence numbers for a
	// (tax year, preparer) pair are used.
	ErrSequenceExhausted = errors.New("releve: sequence numbers exhausted for tax year and preparer")

	// ErrSequenceTaken is returned by Reserve when the sequence number is
	// already held for the (tax year, preparer) pair.
	ErrSequenceTaken = errors.New("releve: sequence number already reserved")

	// ErrTransmissionImmutable is returned when regeneration is attempted on
	// a submitted or accepted transmission.
	ErrTransmissionImmutable = errors.New("releve: transmission is submitted or accepted and cannot be regenerated")

	// ErrTransmissionNotFound is returned by repositories on unknown ids.
	ErrTransmissionNotFound = errors.New("releve: transmission not found")
)
