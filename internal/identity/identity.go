// Package identity validates the government identifiers carried on RL-24
// documents: the recipient's social insurance number and the provider's
// Québec enterprise number.
package identity

// ValidateSIN reports whether s is a valid 9-digit social insurance number.
// Formatting characters (spaces, dashes) are ignored. The check doubles every
// second digit from the left, folds double-digit products by subtracting 9,
// and requires the total to be divisible by 10. The all-zero number passes
// that arithmetic but is not issuable, so it is rejected explicitly.
// Malformed input returns false, never an error.
func ValidateSIN(s string) bool {
	digits := stripNonDigits(s)
	if len(digits) != 9 {
		return false
	}

	sum := 0
	allZero := true
	for i, r := range digits {
		d := int(r - '0')
		if d != 0 {
			allZero = false
		}
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	if allZero {
		return false
	}
	return sum%10 == 0
}

// ValidateNEQ reports whether s is a valid Québec enterprise number:
// exactly 10 digits once formatting characters are removed. The NEQ carries
// no check digit.
func ValidateNEQ(s string) bool {
	return len(stripNonDigits(s)) == 10
}

func stripNonDigits(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}
