package service

import "strings"

// NormalizePhone rewrites Philippine phone numbers into the local 11-digit
// 09XXXXXXXXX form. Non-digits are stripped first; numbers carrying the 63
// country code lose it, anything longer than 11 digits keeps only its last 11,
// and 10-digit numbers gain a leading zero.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, ch := range raw {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(digits, "63") && len(digits) > 2 {
		digits = "0" + digits[2:]
	}
	if len(digits) > 11 {
		digits = digits[len(digits)-11:]
	}
	if len(digits) == 10 {
		digits = "0" + digits
	}
	return digits
}
