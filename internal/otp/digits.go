package otp

import (
	"regexp"
	"strings"
)

// Persian and Arabic-Indic digit glyphs mapped to ASCII. The UI accepts
// Persian keyboards, so every numeric input is normalized before validation.
var digitReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// mobilePattern matches a normalized Iranian mobile number.
var mobilePattern = regexp.MustCompile(`^09\d{9}$`)

// NormalizeDigits maps Persian/Arabic numeral glyphs to ASCII digits and trims spaces.
func NormalizeDigits(input string) string {
	return strings.TrimSpace(digitReplacer.Replace(input))
}

// ValidMobile reports whether input normalizes to a valid mobile number.
func ValidMobile(input string) (string, bool) {
	normalized := NormalizeDigits(input)
	return normalized, mobilePattern.MatchString(normalized)
}
