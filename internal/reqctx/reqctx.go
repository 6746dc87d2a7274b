// Package reqctx implements C11: bearer extraction, principal resolution,
// and scope requirement checks (spec §4.11), grounded on
// shared/middleware/auth.go's ExtractTokenFromHeader/SetUserContext/
// GetUserIDFromContext shape, generalized from bare string context keys
// to a private typed key (the same information, carried the safer way)
// and from the teacher's HS256 JWTMiddleware to this module's EdDSA
// tokencodec.Codec.
package reqctx

import (
	"context"
	"strings"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/tokencodec"
)

type ctxKey int

const principalCtxKey ctxKey = iota

// Principal is the authenticated-caller identity attached to a request
// context once a bearer access token has been resolved.
type Principal struct {
	UserID string
	Role   tokencodec.Role
	Scopes tokencodec.ScopeSet
}

// ExtractBearer mirrors shared/middleware/auth.go's ExtractTokenFromHeader.
func ExtractBearer(authHeader string) (string, error) {
	if authHeader == "" {
		return "", apierr.New(apierr.KindTokenMissing, "authorization header is required")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", apierr.New(apierr.KindUnexpectedHeaderFormat, "authorization header format must be Bearer {token}")
	}
	return parts[1], nil
}

// Resolver decodes a bearer token into a Principal, rejecting anything
// that isn't an access token (spec §4.1 invariant: refresh tokens and MFA
// tickets are never valid bearer credentials).
type Resolver struct {
	codec *tokencodec.Codec
}

func NewResolver(codec *tokencodec.Codec) *Resolver {
	return &Resolver{codec: codec}
}

func (r *Resolver) Resolve(authHeader string) (Principal, error) {
	token, err := ExtractBearer(authHeader)
	if err != nil {
		return Principal{}, err
	}
	claims, err := r.codec.Decode(token)
	if err != nil {
		return Principal{}, err
	}
	if !claims.IsAccessToken() {
		return Principal{}, apierr.New(apierr.KindTokenInvalid, "not an access token")
	}
	return Principal{UserID: claims.UserID(), Role: claims.Role, Scopes: claims.Scopes}, nil
}

// WithPrincipal attaches the resolved principal to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// FromContext retrieves the principal set by WithPrincipal.
func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok {
		return Principal{}, apierr.New(apierr.KindTokenMissing, "no authenticated principal in context")
	}
	return p, nil
}

// RequireScopes implements the scope-gate check spec §4.11 describes for
// endpoints that narrow access beyond plain authentication.
func RequireScopes(p Principal, required ...tokencodec.Scope) error {
	if !p.Scopes.HasAll(required...) {
		return apierr.New(apierr.KindInvalidScopes, "missing required scope")
	}
	return nil
}
