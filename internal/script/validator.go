// Package script gates submitted script text before any sandbox is built.
//
// The check here is a cheap syntactic scan, not a parser, and it is not a
// security control: it exists to reject obviously malformed submissions with
// an actionable message before the expensive sandbox setup. Isolation is
// enforced by the sandbox package regardless of what passes this gate.
package script

import (
	"errors"
	"regexp"
)

var (
	// ErrMalformed means the script has no async function declaration taking
	// the capability and target parameters.
	ErrMalformed = errors.New("malformed script: expected an async function taking (capability, target)")
	// ErrNameNotFound means a declaration was found but its name could not be
	// extracted.
	ErrNameNotFound = errors.New("function name not found")
)

var (
	// An async function with at least two parameters, named or not.
	shapeRe = regexp.MustCompile(`async\s+function\s*[A-Za-z_$]?[\w$]*\s*\(\s*[A-Za-z_$][\w$]*\s*,\s*[A-Za-z_$][\w$]*`)
	// The named form, capturing the declared name.
	nameRe = regexp.MustCompile(`async\s+function\s+([A-Za-z_$][\w$]*)\s*\(\s*[A-Za-z_$][\w$]*\s*,\s*[A-Za-z_$][\w$]*`)
)

// ExtractEntryPoint verifies the script declares an async entry point with a
// capability parameter and a target parameter, and returns the declared name.
func ExtractEntryPoint(text string) (string, error) {
	if !shapeRe.MatchString(text) {
		return "", ErrMalformed
	}
	m := nameRe.FindStringSubmatch(text)
	if m == nil {
		return "", ErrNameNotFound
	}
	return m[1], nil
}
