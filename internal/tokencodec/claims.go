package tokencodec

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload from spec §3. It embeds jwt.RegisteredClaims
// the same way the teacher's domain/auth/model.go TokenClaims does, but
// swaps the free-form fields for the closed Role/ScopeSet enums and adds
// the refresh-token-only SID.
type Claims struct {
	jwt.RegisteredClaims

	// SID is present iff this is a refresh token (spec §3 invariant).
	SID *string `json:"sid,omitempty"`

	Role   Role     `json:"role"`
	Scopes ScopeSet `json:"scopes"`
}

// IsRefreshToken reports whether this token carries the refresh shape:
// sid set and scopes exactly {token:refresh}.
func (c *Claims) IsRefreshToken() bool {
	return c.SID != nil && len(c.Scopes) == 1 && c.Scopes[0] == ScopeTokenRefresh
}

// IsAccessToken reports the access-token invariant: no sid, no refresh
// scope, and at least one scope (a scope-less token is an MFA ticket).
func (c *Claims) IsAccessToken() bool {
	return c.SID == nil && len(c.Scopes) > 0 && !c.Scopes.Has(ScopeTokenRefresh)
}

// IsMFATicket reports the MFA-ticket invariant: no sid, no scopes at all.
func (c *Claims) IsMFATicket() bool {
	return c.SID == nil && len(c.Scopes) == 0
}

func (c *Claims) UserID() string {
	return c.Subject
}

func (c *Claims) SessionID() string {
	if c.SID == nil {
		return ""
	}
	return *c.SID
}
