// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"errors"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "BR"

// ErrInvalidNumber is returned when a number has no usable digits after cleaning.
var ErrInvalidNumber = errors.New("phone number is not a valid digit sequence")

var digitSequence = regexp.MustCompile(`^[1-9]\d{1,14}$`)

// Digits strips every non-digit character (spaces, hyphens, the + sign) and
// validates the remainder as an international digit sequence: 2 to 15 digits,
// no leading zero. Returns ErrInvalidNumber when nothing usable remains.
func Digits(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if !digitSequence.MatchString(cleaned) {
		return "", ErrInvalidNumber
	}
	return cleaned, nil
}

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
