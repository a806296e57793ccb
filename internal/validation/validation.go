// Package validation holds the format checks that gate data entry: the
// national ID checksum, phone number shapes and email addresses. All
// functions are pure.
package validation

import (
	"regexp"
	"strings"

	"github.com/asaskevich/govalidator"
)

const nationalIDLength = 11

var (
	nonDigit = regexp.MustCompile(`\D`)

	// (XX) XXXX-XXXX
	landlinePattern = regexp.MustCompile(`^(\d{2})(\d{4})(\d{4})$`)
	// (XX) XXXXX-XXXX
	mobilePattern = regexp.MustCompile(`^(\d{2})(\d{5})(\d{4})$`)
)

// Digits strips every non-digit character.
func Digits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// NormalizeNationalID returns the digits-only canonical form used for storage
// and uniqueness checks.
func NormalizeNationalID(s string) string {
	return Digits(s)
}

// FormatNationalID renders a canonical 11-digit ID as XXX.XXX.XXX-XX. Other
// inputs are returned unchanged.
func FormatNationalID(s string) string {
	d := Digits(s)
	if len(d) != nationalIDLength {
		return s
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// ValidateNationalID reports whether s, once stripped of non-digits, is an
// 11-digit ID whose last two digits match the weighted checksum of the
// preceding ones. IDs made of one repeated digit are rejected even though
// their checksum holds.
func ValidateNationalID(s string) bool {
	d := Digits(s)
	if len(d) != nationalIDLength || strings.Count(d, d[:1]) == nationalIDLength {
		return false
	}
	var digits [nationalIDLength]int
	for i := range d {
		digits[i] = int(d[i] - '0')
	}
	// first check digit: digits[0..8] weighted 10 down to 2
	// second check digit: digits[0..9] weighted 11 down to 2
	return checkDigit(digits, 9) == digits[9] && checkDigit(digits, 10) == digits[10]
}

// checkDigit computes the check digit at position n from digits[0..n-1],
// weighting digits[i] by n+1-i so the last weight is always 2.
func checkDigit(digits [nationalIDLength]int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		return 0
	}
	return r
}

// ValidatePhone reports whether s, once stripped of non-digits, is a 10-digit
// landline or 11-digit mobile number with a 2-digit area code. The caller
// keeps storing the raw input.
func ValidatePhone(s string) bool {
	d := Digits(s)
	if len(d) != 10 && len(d) != 11 {
		return false
	}
	return landlinePattern.MatchString(d) || mobilePattern.MatchString(d)
}

// ValidateEmail reports whether s looks like a deliverable address.
func ValidateEmail(s string) bool {
	s = strings.TrimSpace(s)
	return govalidator.StringLength(s, "3", "255") && govalidator.IsEmail(s)
}
