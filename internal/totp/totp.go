// Package totp implements C3: RFC 6238 TOTP with SHA-1, 6 digits, a
// 30-second period, and a ±1 step verification window.
//
// Grounded on original_source/pixles-api/auth/src/service/totp.rs's
// two-phase enroll/verify-enrollment flow and utils/totp.rs's generator
// shape. No pack Go repo carries a TOTP library, so pquerna/otp is adopted
// as the RFC 6238 implementation rather than hand-rolling HMAC-SHA1 dynamic
// truncation (see DESIGN.md).
package totp

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	digits = otp.DigitsSix
	period = 30
	skew   = 1 // ±1 step either side of the current one
)

// GenerateSecret produces a fresh base32 TOTP secret.
func GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "pixles",
		AccountName: "enrollment",
		Digits:      digits,
		Period:      period,
	})
	if err != nil {
		return "", fmt.Errorf("totp: generate secret: %w", err)
	}
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth:// URI clients scan to enroll.
func ProvisioningURI(secret, accountName, issuer string) string {
	return fmt.Sprintf(
		"otpauth://totp/%s:%s?secret=%s&issuer=%s&digits=%d&period=%d&algorithm=SHA1",
		issuer, accountName, secret, issuer, digits, period,
	)
}

// Verify checks code against secret, allowing ±1 step of clock skew.
func Verify(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
