package security

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// DefaultPasswordMinLength is the minimum length when none is configured.
const DefaultPasswordMinLength = 8

// PasswordCheck is the result of ValidatePasswordComplexity. Errors lists every violated rule.
type PasswordCheck struct {
	Valid  bool
	Errors []string
}

// ValidatePasswordComplexity checks minimum length, at least one uppercase letter and at least one digit.
// All violated rules are returned, in that order.
func ValidatePasswordComplexity(plain string, minLength int) PasswordCheck {
	if minLength <= 0 {
		minLength = DefaultPasswordMinLength
	}
	var errs []string
	if utf8.RuneCountInString(plain) < minLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters", minLength))
	}
	var hasUpper, hasDigit bool
	for _, r := range plain {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	if !hasUpper {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !hasDigit {
		errs = append(errs, "Password must contain at least one number")
	}
	return PasswordCheck{Valid: len(errs) == 0, Errors: errs}
}

// Channel is the kind of contact an identifier names.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ClassifyContact returns ChannelEmail for email-shaped identifiers and ChannelPhone for anything else.
// Phone formats are not validated here.
func ClassifyContact(identifier string) Channel {
	if emailShape.MatchString(identifier) {
		return ChannelEmail
	}
	return ChannelPhone
}
