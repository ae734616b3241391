package releve

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilenameParts is the decomposition of a transmission filename:
// <2-digit year><6-digit preparer><3-digit sequence>.xml.
type FilenameParts struct {
	TaxYear    int
	PreparerID string
	Sequence   int
}

// GenerateFilename builds the canonical transmission filename. Every
// component is range-checked before formatting; the first failing constraint
// is reported.
func GenerateFilename(taxYear int, preparerID string, sequence int) (string, error) {
	maxYear := time.Now().Year() + 1
	if taxYear < MinTaxYear || taxYear > maxYear {
		return "", fmt.Errorf("releve: tax year %d outside [%d, %d]", taxYear, MinTaxYear, maxYear)
	}
	preparer := strings.TrimSpace(preparerID)
	if preparer == "" {
		return "", fmt.Errorf("releve: preparer id is empty")
	}
	if len(preparer) > FilenamePreparerWidth {
		return "", fmt.Errorf("releve: preparer id %q longer than %d characters", preparer, FilenamePreparerWidth)
	}
	if sequence < 1 || sequence > MaxSequencePerYear {
		return "", fmt.Errorf("releve: sequence %d outside [1, %d]", sequence, MaxSequencePerYear)
	}
	return fmt.Sprintf("%02d%0*s%0*d.%s",
		taxYear%100,
		FilenamePreparerWidth, preparer,
		FilenameSequenceWidth, sequence,
		FileExtension), nil
}

// ParseFilename validates and decomposes a transmission filename. The name
// must be exactly 11 digits plus extension, with every segment at its fixed
// width.
func ParseFilename(name string) (FilenameParts, error) {
	suffix := "." + FileExtension
	if !strings.HasSuffix(name, suffix) {
		return FilenameParts{}, fmt.Errorf("releve: filename %q missing .%s extension", name, FileExtension)
	}
	stem := strings.TrimSuffix(name, suffix)
	wantLen := FilenameYearWidth + FilenamePreparerWidth + FilenameSequenceWidth
	if len(stem) != wantLen {
		return FilenameParts{}, fmt.Errorf("releve: filename stem %q must be %d digits", stem, wantLen)
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return FilenameParts{}, fmt.Errorf("releve: filename stem %q contains non-digit", stem)
		}
	}

	yy, _ := strconv.Atoi(stem[:FilenameYearWidth])
	preparer := stem[FilenameYearWidth : FilenameYearWidth+FilenamePreparerWidth]
	seq, _ := strconv.Atoi(stem[FilenameYearWidth+FilenamePreparerWidth:])
	if seq < 1 {
		return FilenameParts{}, fmt.Errorf("releve: sequence segment %03d outside [1, %d]", seq, MaxSequencePerYear)
	}

	return FilenameParts{
		TaxYear:    expandTwoDigitYear(yy, time.Now().Year()),
		PreparerID: preparer,
		Sequence:   seq,
	}, nil
}

// expandTwoDigitYear infers a 4-digit year from the filename's 2-digit field.
// A value more than 5 years ahead of the current year is assumed to belong to
// the previous century. The pivot width is provisional pending confirmation
// against the filing specification; keep the rule isolated here.
func expandTwoDigitYear(yy, currentYear int) int {
	century := currentYear - currentYear%100
	year := century + yy
	if year > currentYear+5 {
		year -= 100
	}
	return year
}
