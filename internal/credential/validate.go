package credential

import (
	"regexp"
	"strings"

	"github.com/pixles/authcore/internal/apierr"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const minPasswordLength = 8

// RegisterInput is the raw payload for Register (spec §6 POST /register).
type RegisterInput struct {
	Username string
	Name     string
	Email    string
	Password string
}

// validateRegistration checks the registration predicate named in spec
// §4.5: username charset/length, email shape, password strength. All
// violations are collected so the caller gets one BadRequest with every
// field error, the way a form would report them.
func validateRegistration(in RegisterInput) *apierr.Error {
	fields := map[string]string{}

	if !usernamePattern.MatchString(in.Username) {
		fields["username"] = "must be 3-32 characters of letters, digits, or underscore"
	}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "must not be empty"
	}
	if !emailPattern.MatchString(in.Email) {
		fields["email"] = "must be a valid email address"
	}
	if len(in.Password) < minPasswordLength {
		fields["password"] = "must be at least 8 characters"
	}

	if len(fields) > 0 {
		return apierr.BadRequest(fields)
	}
	return nil
}

// NormalizeEmail lowercases and trims, matching the case-insensitive
// uniqueness invariant in spec §3. Storage-side uniqueness is additionally
// enforced case-insensitively by the repository queries.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
