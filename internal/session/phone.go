package session

import (
	"regexp"
	"strings"
)

var codePattern = regexp.MustCompile(`^\d{5}$`)

// NormalizePhone canonicalizes a phone number to "+<digits>", inserting the
// +7 country code for 10 digit numbers and 11 digit numbers with a 7 or 8
// trunk prefix. Input without digits yields "+".
func NormalizePhone(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	switch {
	case len(digits) == 11 && (digits[0] == '7' || digits[0] == '8'):
		return "+7" + digits[1:]
	case len(digits) == 10:
		return "+7" + digits
	default:
		return "+" + digits
	}
}

// ValidCode reports whether code is exactly five ASCII digits.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}
