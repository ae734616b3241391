package xmlgen

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"unicode/utf8"

	"garderie-cloud/internal/identity"
	releve "garderie-cloud/internal/releve/domain"
)

// Validator checks a generated artifact against the format's structural
// rules: well-formedness, required elements, identifier formats, field
// widths, slip cap, and the summary totals echoing the slip contents.
type Validator struct{}

// NewValidator constructs a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateFile parses and validates an artifact on disk. The boolean verdict
// comes with every problem found, not just the first.
func (v *Validator) ValidateFile(path string) (bool, []string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, []string{fmt.Sprintf("read %s: %v", path, err)}
	}
	return v.Validate(data)
}

// Validate checks serialized bytes.
func (v *Validator) Validate(data []byte) (bool, []string) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return false, []string{fmt.Sprintf("not well-formed: %v", err)}
	}

	var problems []string
	if doc.Header.TaxYear < releve.MinTaxYear {
		problems = append(problems, fmt.Sprintf("header: tax year %d below minimum %d", doc.Header.TaxYear, releve.MinTaxYear))
	}
	if doc.Header.PreparerID == "" {
		problems = append(problems, "header: preparer id missing")
	}
	if doc.Header.ProviderName == "" {
		problems = append(problems, "header: provider name missing")
	}
	if n := utf8.RuneCountInString(doc.Header.ProviderName); n > releve.XMLMaxNameLength {
		problems = append(problems, fmt.Sprintf("header: provider name is %d characters, maximum %d", n, releve.XMLMaxNameLength))
	}
	if n := utf8.RuneCountInString(doc.Header.AddressLine1); n > releve.XMLMaxAddressLineWidth {
		problems = append(problems, fmt.Sprintf("header: address line is %d characters, maximum %d", n, releve.XMLMaxAddressLineWidth))
	}
	if n := utf8.RuneCountInString(doc.Header.City); n > releve.XMLMaxAddressLineWidth {
		problems = append(problems, fmt.Sprintf("header: city is %d characters, maximum %d", n, releve.XMLMaxAddressLineWidth))
	}
	if !identity.ValidateNEQ(doc.Header.ProviderNEQ) {
		problems = append(problems, fmt.Sprintf("header: NEQ %q is not 10 digits", doc.Header.ProviderNEQ))
	}
	if len(doc.Slips) > releve.MaxSlipsPerFile {
		problems = append(problems, fmt.Sprintf("%d slips exceed the per-file maximum of %d", len(doc.Slips), releve.MaxSlipsPerFile))
	}

	var days int
	var paid, eligible, contribution, net float64
	seen := make(map[int]struct{}, len(doc.Slips))
	for _, s := range doc.Slips {
		if _, dup := seen[s.Number]; dup {
			problems = append(problems, fmt.Sprintf("slip %d: duplicate slip number", s.Number))
		}
		seen[s.Number] = struct{}{}
		if s.RecipientName == "" {
			problems = append(problems, fmt.Sprintf("slip %d: recipient name missing", s.Number))
		}
		if s.ChildName == "" {
			problems = append(problems, fmt.Sprintf("slip %d: child name missing", s.Number))
		}
		if n := utf8.RuneCountInString(s.RecipientName); n > releve.XMLMaxNameLength {
			problems = append(problems, fmt.Sprintf("slip %d: recipient name is %d characters, maximum %d", s.Number, n, releve.XMLMaxNameLength))
		}
		if n := utf8.RuneCountInString(s.ChildName); n > releve.XMLMaxNameLength {
			problems = append(problems, fmt.Sprintf("slip %d: child name is %d characters, maximum %d", s.Number, n, releve.XMLMaxNameLength))
		}
		if !identity.ValidateSIN(s.RecipientSIN) {
			problems = append(problems, fmt.Sprintf("slip %d: SIN fails checksum", s.Number))
		}
		switch s.TypeCode {
		case releve.TypeCodeOriginal, releve.TypeCodeAmended:
			days += s.BoxA
			paid += s.BoxB
			eligible += s.BoxC
			contribution += s.BoxD
			net += s.BoxE
		case releve.TypeCodeCancelled:
			// excluded from totals
		default:
			problems = append(problems, fmt.Sprintf("slip %d: unknown type code %q", s.Number, s.TypeCode))
		}
	}

	if doc.Summary.TotalDays != days {
		problems = append(problems, fmt.Sprintf("summary: total days %d, slips sum to %d", doc.Summary.TotalDays, days))
	}
	checkTotal := func(name string, declared, computed float64) {
		if math.Abs(declared-computed) > 0.01 {
			problems = append(problems, fmt.Sprintf("summary: %s %.2f, slips sum to %.2f", name, declared, computed))
		}
	}
	checkTotal("total paid", doc.Summary.TotalPaid, paid)
	checkTotal("total eligible", doc.Summary.TotalEligible, eligible)
	checkTotal("total contribution", doc.Summary.TotalContribution, contribution)
	checkTotal("total net", doc.Summary.TotalNet, net)

	return len(problems) == 0, problems
}
