package password

import (
	"errors"
	"strings"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	specialCharacters = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// ErrWeakPassword is matched by every *StrengthError.
var ErrWeakPassword = errors.New("password does not meet strength policy")

// StrengthError lists every policy rule a candidate password broke.
type StrengthError struct {
	Violations []string
}

func (e *StrengthError) Error() string {
	return strings.Join(e.Violations, ", ")
}

func (e *StrengthError) Unwrap() error {
	return ErrWeakPassword
}

// ValidateStrength checks password against the account policy: 8 to 128
// bytes with at least one ASCII lowercase letter, uppercase letter, digit
// and special character. It returns a *StrengthError naming all violations.
func ValidateStrength(password string) error {
	var violations []string

	if len(password) < minPasswordLength {
		violations = append(violations, "Password must be at least 8 characters long")
	}
	if len(password) > maxPasswordLength {
		violations = append(violations, "Password must be no more than 128 characters long")
	}

	var lower, upper, digit, special bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(specialCharacters, c):
			special = true
		}
	}

	if !lower {
		violations = append(violations, "Password must contain at least one lowercase letter")
	}
	if !upper {
		violations = append(violations, "Password must contain at least one uppercase letter")
	}
	if !digit {
		violations = append(violations, "Password must contain at least one digit")
	}
	if !special {
		violations = append(violations, "Password must contain at least one special character")
	}

	if len(violations) > 0 {
		return &StrengthError{Violations: violations}
	}
	return nil
}
