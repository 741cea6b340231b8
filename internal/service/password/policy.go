package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMinLength = 8
	DefaultMaxLength = 64

	// Special characters accepted by CharClassPolicy
	SpecialChars = `!@#$%^&*(),.?":{}|<>`
)

// Password strength rule
type Policy interface {
	// Return nil if password satisfies policy, description of the violated rule otherwise
	Validate(password string) error
}

// Allow to use a function as Policy
type PolicyFunc func(password string) error

func (f PolicyFunc) Validate(password string) error {
	return f(password)
}

// Length in runes must be within [Min, Max]
type LengthPolicy struct {
	Min int
	Max int
}

func (p LengthPolicy) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < p.Min:
		return fmt.Errorf("password must be at least %d characters long", p.Min)
	case p.Max > 0 && n > p.Max:
		return fmt.Errorf("password must be at most %d characters long", p.Max)
	default:
		return nil
	}
}

// Require lower and upper case letters, digit and special character
type CharClassPolicy struct{}

func (CharClassPolicy) Validate(password string) error {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(SpecialChars, r):
			special = true
		}
	}

	switch {
	case !lower:
		return errors.New("password must contain a lowercase letter")
	case !upper:
		return errors.New("password must contain an uppercase letter")
	case !digit:
		return errors.New("password must contain a digit")
	case !special:
		return fmt.Errorf("password must contain one of %s", SpecialChars)
	default:
		return nil
	}
}

// Combine policies, the first violated one is reported
func All(policies ...Policy) Policy {
	return PolicyFunc(func(password string) error {
		for _, p := range policies {
			if err := p.Validate(password); err != nil {
				return err
			}
		}
		return nil
	})
}
