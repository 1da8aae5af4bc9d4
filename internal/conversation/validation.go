package conversation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrInvalidName is returned for empty or purely numeric names.
	ErrInvalidName = errors.New("conversation: invalid name")

	// ErrInvalidPhone is returned when a number is not a valid Indian mobile.
	ErrInvalidPhone = errors.New("conversation: invalid phone")
)

// IndianCountryCode is the prefix accepted (and stripped) on 12-digit input.
const IndianCountryCode = "91"

// NormalizePhone strips formatting and returns the 10-digit mobile number.
// Accepted shapes: 10 digits, or 12 digits starting with 91. The national
// number must start with 6, 7, 8 or 9.
func NormalizePhone(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
	case len(digits) == 12 && strings.HasPrefix(digits, IndianCountryCode):
		digits = digits[2:]
	default:
		return "", ErrInvalidPhone
	}

	switch digits[0] {
	case '6', '7', '8', '9':
		return digits, nil
	}
	return "", ErrInvalidPhone
}

// NormalizeName trims the input and rejects empty or purely numeric names.
func NormalizeName(input string) (string, error) {
	name := strings.Join(strings.Fields(input), " ")
	if name == "" {
		return "", ErrInvalidName
	}
	numeric := true
	for _, r := range name {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) && !unicode.IsPunct(r) {
			numeric = false
			break
		}
	}
	if numeric {
		return "", ErrInvalidName
	}
	return name, nil
}
