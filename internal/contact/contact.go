// Package contact canonicalizes caller phone numbers and email addresses.
//
// Every component that forwards a phone number or email goes through Normalize
// so that the delivery service and the directory see the same formats.
package contact

import (
	"strings"

	"github.com/ashureev/voicecall/internal/domain"
)

// CountryCode is prepended to a 10-digit number to form the dialable form.
const CountryCode = "91"

const localDigits = 10

// NormalizePhone reduces raw to exactly 10 digits.
//
// Non-digits are stripped. A leading country code is dropped when the number
// is longer than 10 digits. Whatever remains then keeps its last 10 digits or
// is left-padded with zeros. The padding yields a well-formed
// but meaningless number for short input; callers downstream rely on it.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, CountryCode) && len(digits) > localDigits {
		digits = digits[len(CountryCode):]
	}
	// An 11-digit number loses its country code here and is padded below.
	switch {
	case len(digits) > localDigits:
		digits = digits[len(digits)-localDigits:]
	case len(digits) < localDigits:
		digits = strings.Repeat("0", localDigits-len(digits)) + digits
	}
	return digits
}

// ToDialable prefixes a 10-digit number with the country code.
func ToDialable(phone10 string) string {
	return CountryCode + phone10
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Normalize canonicalizes both contact methods. Blank input stays blank.
func Normalize(info domain.ContactInfo) domain.NormalizedContact {
	var out domain.NormalizedContact
	if strings.TrimSpace(info.RawPhone) != "" {
		out.Phone10 = NormalizePhone(info.RawPhone)
		out.Dialable = ToDialable(out.Phone10)
	}
	if email := NormalizeEmail(info.RawEmail); email != "" {
		out.Email = email
	}
	return out
}
