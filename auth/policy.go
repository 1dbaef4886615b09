package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_{|}~`"

// Policy lists the composition rules a password must meet.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy is the policy applied to passwords that protect stored keys.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      12,
		RequireUpper:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Check returns every rule pw violates, joined, or nil.
func (p Policy) Check(pw string) error {
	var errs []error
	if n := len([]rune(pw)); n < p.MinLength {
		errs = append(errs, fmt.Errorf("password must be at least %d characters long", p.MinLength))
	}
	if p.RequireUpper && !strings.ContainsFunc(pw, unicode.IsUpper) {
		errs = append(errs, errors.New("password must include an uppercase letter"))
	}
	if p.RequireLower && !strings.ContainsFunc(pw, unicode.IsLower) {
		errs = append(errs, errors.New("password must include a lowercase letter"))
	}
	if p.RequireDigit && !strings.ContainsFunc(pw, unicode.IsDigit) {
		errs = append(errs, errors.New("password must include a digit"))
	}
	if p.RequireSpecial && !strings.ContainsAny(pw, specialChars) {
		errs = append(errs, errors.New("password must include a special character"))
	}
	return errors.Join(errs...)
}

// ValidateMasterPassword applies DefaultPolicy.
func ValidateMasterPassword(pw string) error {
	return DefaultPolicy().Check(pw)
}
