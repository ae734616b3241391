package releve

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateFilename(t *testing.T) {
	name, err := GenerateFilename(2025, "123456", 7)
	if err != nil {
		t.Fatalf("GenerateFilename: %v", err)
	}
	if name != "25123456007.xml" {
		t.Fatalf("name = %q, want 25123456007.xml", name)
	}
}

func TestGenerateFilenamePadsShortPreparer(t *testing.T) {
	name, err := GenerateFilename(2025, "42", 1)
	if err != nil {
		t.Fatalf("GenerateFilename: %v", err)
	}
	if name != "25000042001.xml" {
		t.Fatalf("name = %q, want 25000042001.xml", name)
	}
}

func TestGenerateFilenameConstraints(t *testing.T) {
	cases := []struct {
		name     string
		taxYear  int
		preparer string
		sequence int
		wantErr  string
	}{
		{"year too old", 1989, "123456", 1, "tax year"},
		{"year too far ahead", time.Now().Year() + 2, "123456", 1, "tax year"},
		{"empty preparer", 2025, "  ", 1, "preparer"},
		{"long preparer", 2025, "1234567", 1, "preparer"},
		{"sequence zero", 2025, "123456", 0, "sequence"},
		{"sequence too large", 2025, "123456", 1000, "sequence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GenerateFilename(tc.taxYear, tc.preparer, tc.sequence)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseFilenameRoundTrip(t *testing.T) {
	year := time.Now().Year()
	name, err := GenerateFilename(year, "654321", 123)
	if err != nil {
		t.Fatalf("GenerateFilename: %v", err)
	}
	parts, err := ParseFilename(name)
	if err != nil {
		t.Fatalf("ParseFilename: %v", err)
	}
	if parts.TaxYear != year || parts.PreparerID != "654321" || parts.Sequence != 123 {
		t.Fatalf("round trip lost data: %+v", parts)
	}
}

func TestParseFilenameRejectsMalformed(t *testing.T) {
	cases := []string{
		"25123456007.txt", // wrong extension
		"2512345607.xml",  // stem too short
		"251234560071.xml",
		"25a23456007.xml", // non-digit
		"25123456000.xml", // sequence zero
		"",
	}
	for _, name := range cases {
		if _, err := ParseFilename(name); err == nil {
			t.Fatalf("ParseFilename(%q) unexpectedly succeeded", name)
		}
	}
}

func TestExpandTwoDigitYearPivot(t *testing.T) {
	cases := []struct {
		yy, current, want int
	}{
		{25, 2026, 2025},
		{31, 2026, 2031}, // within five years ahead
		{32, 2026, 1932}, // more than five years ahead flips century
		{99, 2026, 1999},
		{0, 2026, 2000},
	}
	for _, tc := range cases {
		if got := expandTwoDigitYear(tc.yy, tc.current); got != tc.want {
			t.Fatalf("expandTwoDigitYear(%d, %d) = %d, want %d", tc.yy, tc.current, got, tc.want)
		}
	}
}
