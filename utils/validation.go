// utils/validation.go
package utils

import (
	"regexp"
	"strings"
)

var internationalPhone = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidatePhone checks if a phone number is in a valid international format
func ValidatePhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	return internationalPhone.MatchString(cleaned)
}

// NormalizePhone keeps only the digits of a free-text phone number.
// The gateway expects "55DDDNUMBER" with no punctuation; an empty result means there is nothing to send to.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
