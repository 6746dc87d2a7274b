// Package password implements C2: Argon2id hashing with timing discipline.
//
// Grounded on domain/auth/auth.go's HashPassword/CheckPassword (teacher,
// bcrypt), generalized to Argon2id per spec §4.2. golang.org/x/crypto is
// already a teacher dependency; only the subpackage changes.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Default Argon2id parameters. Self-described inside the PHC string so
// they can be upgraded later without invalidating existing hashes.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Hash returns a PHC-formatted Argon2id hash of password.
func Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}
	return hashWithSalt(password, salt), nil
}

func hashWithSalt(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

type phcParams struct {
	version           int
	memory, time, threads uint32
	salt, key         []byte
}

func parsePHC(phc string) (*phcParams, error) {
	parts := strings.Split(phc, "$")
	// ["", "argon2id", "v=19", "m=...,t=...,p=...", "<salt>", "<key>"]
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("password: malformed PHC string")
	}
	var p phcParams
	if _, err := fmt.Sscanf(parts[2], "v=%d", &p.version); err != nil {
		return nil, fmt.Errorf("password: malformed version segment: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, fmt.Errorf("password: malformed params segment: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("password: malformed salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("password: malformed key: %w", err)
	}
	p.salt, p.key = salt, key
	return &p, nil
}

// Verify reports whether password matches the PHC-formatted hash. It never
// returns an error: a malformed hash is treated as a non-match, since the
// caller (credential service) always wants a boolean to compare against a
// dummy verify for timing purposes.
func Verify(password, phc string) bool {
	p, err := parsePHC(phc)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, uint8(p.threads), uint32(len(p.key)))
	return subtle.ConstantTimeCompare(candidate, p.key) == 1
}

// dummyHash is a fixed, pre-computed PHC string with no corresponding real
// user. AuthenticatePassword (C5) always verifies against this when the
// looked-up user doesn't exist, so a login attempt against an unknown email
// costs exactly one Argon2id verification either way (spec §4.2).
var dummyHash = hashWithSalt("pixles-dummy-verify-password", []byte("0123456789abcdef"))

// VerifyDummy runs exactly one Argon2id verification against the fixed
// dummy hash, spending the same CPU time as a real Verify call without
// revealing whether any real hash was compared.
func VerifyDummy(password string) bool {
	return Verify(password, dummyHash)
}
