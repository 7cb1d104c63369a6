package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/multierr"
)

const (
	minPasswordLength = 8
	accountTokenBytes = 24
)

var commonPasswords = map[string]struct{}{
	"password":  {},
	"password1": {},
	"12345678":  {},
	"123456789": {},
	"qwerty123": {},
	"iloveyou":  {},
	"admin123":  {},
	"welcome1":  {},
	"11111111":  {},
	"abc12345":  {},
}

// CheckPasswordStrength returns every rule the password breaks, combined with multierr.
// The email local part is rejected as a password to keep it from matching the login.
func CheckPasswordStrength(password, email string) error {
	var errs error
	if utf8.RuneCountInString(password) < minPasswordLength {
		errs = multierr.Append(errs, fmt.Errorf("password must contain at least %d characters", minPasswordLength))
	}
	if password != "" && isNumeric(password) {
		errs = multierr.Append(errs, fmt.Errorf("password cannot be entirely numeric"))
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		errs = multierr.Append(errs, fmt.Errorf("password is too common"))
	}
	if local, _, ok := strings.Cut(strings.ToLower(email), "@"); ok && local != "" && strings.EqualFold(password, local) {
		errs = multierr.Append(errs, fmt.Errorf("password is too similar to the email"))
	}
	return errs
}

func isNumeric(value string) bool {
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// GenerateAccountToken returns a url-safe random token used for email confirmation and password reset.
func GenerateAccountToken() (string, error) {
	buf := make([]byte, accountTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating account token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
