// Package identity normalizes and validates the phone-derived keys that
// address messaging sessions.
package identity

import (
	"errors"
	"strings"
)

const (
	minKeyDigits = 10
	maxKeyDigits = 15
)

// ErrInvalidIdentifier is returned when an identifier does not normalize to a
// plausible phone-number key.
var ErrInvalidIdentifier = errors.New("invalid identifier: expected 10-15 digits")

// Normalize strips every non-digit character from raw. The result is the
// canonical identity key; it is not validated here.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeAndValidate normalizes raw and checks the digit-count bounds.
func NormalizeAndValidate(raw string) (string, error) {
	key := Normalize(raw)
	if len(key) < minKeyDigits || len(key) > maxKeyDigits {
		return "", ErrInvalidIdentifier
	}
	return key, nil
}

// FormatPairingCode renders a transport pairing code as groups of four
// characters joined by a dash, e.g. "ABCD1234" -> "ABCD-1234".
func FormatPairingCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	var groups []string
	for len(code) > 4 {
		groups = append(groups, code[:4])
		code = code[4:]
	}
	groups = append(groups, code)
	return strings.Join(groups, "-")
}
