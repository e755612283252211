package credential

import (
	"unicode"

	"authcore/internal/autherr"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

// ValidatePassword enforces the password policy: 8 to 72 bytes with at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return autherr.New(autherr.WeakInput, "password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return autherr.New(autherr.WeakInput, "password must be at most 72 bytes")
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return autherr.New(autherr.WeakInput, "password must contain a letter and a digit")
	}
	return nil
}
