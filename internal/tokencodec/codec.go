// Package tokencodec implements C1: signs and verifies the claims token
// described in spec §3-§4.1 using Ed25519/EdDSA, and stamps the standard
// access/refresh/MFA-ticket lifetimes.
//
// Grounded on services/gateway/services/auth/domain/auth/auth.go's
// GenerateAccessToken/ParseToken shape (teacher), switched from HS256 to
// EdDSA, and on pkg/gourdiantoken-master/gourdiantoken.go's key-parsing and
// claims-validation helpers for the asymmetric-signing plumbing.
package tokencodec

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pixles/authcore/internal/apierr"
)

// Codec is built once from static configuration and shared by reference
// (Design Note "Global mutable validation singleton") — never mutated
// after NewCodec returns.
type Codec struct {
	signingKey   ed25519.PrivateKey
	verifyingKey ed25519.PublicKey
	issuer       string
}

// NewCodec builds a Codec from an Ed25519 private key; the verifying key is
// derived from it (a Go ed25519.PrivateKey carries its public half).
func NewCodec(signingKey ed25519.PrivateKey, issuer string) *Codec {
	pub := signingKey.Public().(ed25519.PublicKey)
	return &Codec{signingKey: signingKey, verifyingKey: pub, issuer: issuer}
}

// ParseSigningKeyPKCS8 decodes ED25519_SIGNING_KEY (spec §6): a
// base64-encoded PKCS#8 DER blob, optionally PEM-wrapped.
func ParseSigningKeyPKCS8(base64DER string) (ed25519.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(base64DER)
	if err != nil {
		return nil, fmt.Errorf("tokencodec: decode base64 signing key: %w", err)
	}
	if block, _ := pem.Decode(der); block != nil {
		der = block.Bytes
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("tokencodec: parse PKCS8 signing key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("tokencodec: signing key is not Ed25519")
	}
	return priv, nil
}

// FreshJTI produces a collision-resistant unique identifier per call.
func FreshJTI() string {
	return uuid.NewString()
}

func (c *Codec) encode(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("tokencodec: sign: %w", err)
	}
	return signed, nil
}

func (c *Codec) baseClaims(sub string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now().UTC()
	return jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    c.issuer,
		ID:        FreshJTI(),
	}
}

// EncodeAccessToken stamps an access token: no sid, scopes
// {read:user, write:user}.
func (c *Codec) EncodeAccessToken(userID string, role Role, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		RegisteredClaims: c.baseClaims(userID, ttl),
		Role:             role,
		Scopes:           ScopeSet{ScopeReadUser, ScopeWriteUser},
	}
	token, err := c.encode(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// EncodeRefreshToken stamps a refresh token: sid set, scopes {token:refresh}.
func (c *Codec) EncodeRefreshToken(userID, sid string, role Role, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		RegisteredClaims: c.baseClaims(userID, ttl),
		SID:              &sid,
		Role:             role,
		Scopes:           ScopeSet{ScopeTokenRefresh},
	}
	token, err := c.encode(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// EncodeMFATicket stamps a short-lived, scope-less, sid-less ticket (spec
// §4.1); ttl must be <= MFA_TICKET_TTL, enforced by the caller's config.
func (c *Codec) EncodeMFATicket(userID string, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		RegisteredClaims: c.baseClaims(userID, ttl),
		Scopes:           ScopeSet{},
	}
	token, err := c.encode(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Decode verifies signature (EdDSA only), issuer, and expiry, and parses
// the closed scope schema. Unknown scopes in the token reject as
// TokenInvalid, matching the "unknown strings reject" invariant in spec §3.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.verifyingKey, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())

	if err != nil {
		switch {
		case isExpiredErr(err):
			return nil, apierr.New(apierr.KindTokenExpired, "token expired")
		case isIssuerErr(err):
			return nil, apierr.New(apierr.KindTokenInvalid, "issuer mismatch")
		default:
			return nil, apierr.Wrap(apierr.KindTokenInvalid, err)
		}
	}
	if !token.Valid {
		return nil, apierr.New(apierr.KindTokenInvalid, "token not valid")
	}
	if claims.IssuedAt != nil && claims.ExpiresAt != nil && claims.IssuedAt.After(claims.ExpiresAt.Time) {
		return nil, apierr.New(apierr.KindTokenInvalid, "iat after exp")
	}
	return &claims, nil
}

func isExpiredErr(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func isIssuerErr(err error) bool {
	return errors.Is(err, jwt.ErrTokenInvalidIssuer)
}
