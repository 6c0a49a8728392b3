package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrValidation marks input rejected before any request is sent.
var ErrValidation = errors.New("invalid input")

const (
	MinPasswordLen = 6
	MaxPasswordLen = 128
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return fmt.Errorf("%w: enter a valid email address", ErrValidation)
	}
	return nil
}

func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLen)
	}
	if n > MaxPasswordLen {
		return fmt.Errorf("%w: password is too long (max %d characters)", ErrValidation, MaxPasswordLen)
	}
	return nil
}

// ValidateRegistration checks everything Register needs, including that the
// confirmation matches.
func ValidateRegistration(email, password, confirm string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	return nil
}
