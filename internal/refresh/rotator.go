// Package refresh implements C6: refresh-token validation, rotation with
// reuse detection, and revocation (spec §4.6), grounded on the teacher's
// RefreshToken RPC handler shape in
// services/microservices/auth/rpc/internal/logic, switched to the
// sid-based session-store model this spec requires instead of a bare
// refresh-token blacklist.
package refresh

import (
	"context"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/credential"
	"github.com/pixles/authcore/internal/sessionstore"
	"github.com/pixles/authcore/internal/tokencodec"
)

// TokenIssuer is the subset of *credential.Service this package depends on.
// credential.Service.IssueTokenPair satisfies this directly; credential
// itself never imports refresh (its Revoker/Mailer interfaces use only
// built-in argument types), so this import does not create a cycle.
type TokenIssuer interface {
	IssueTokenPair(ctx context.Context, userID string, meta credential.RequestMeta) (*credential.TokenPair, error)
}

type Rotator struct {
	codec  *tokencodec.Codec
	store  sessionstore.Store
	issuer TokenIssuer
}

func NewRotator(codec *tokencodec.Codec, store sessionstore.Store, issuer TokenIssuer) *Rotator {
	return &Rotator{codec: codec, store: store, issuer: issuer}
}

// Refresh implements spec §4.6: decode, look up the session, detect reuse
// via a missing session, delete-then-reissue (linearized rotation).
func (r *Rotator) Refresh(ctx context.Context, refreshToken string, meta credential.RequestMeta) (*credential.TokenPair, error) {
	claims, err := r.codec.Decode(refreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.Scopes.Has(tokencodec.ScopeTokenRefresh) || claims.SID == nil {
		return nil, apierr.New(apierr.KindTokenInvalid, "not a refresh token")
	}
	sid := claims.SessionID()

	sess, err := r.store.GetSession(ctx, sid)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if sess == nil {
		// Either a genuinely expired session or a rotated predecessor:
		// this is the reuse-detection signal (spec §4.6).
		return nil, apierr.New(apierr.KindTokenInvalid, "Session not found")
	}
	if sess.UserID != claims.UserID() {
		return nil, apierr.New(apierr.KindTokenInvalid, "Session user mismatch")
	}

	if err := r.store.DeleteSession(ctx, sid); err != nil {
		return nil, apierr.Internal(err)
	}

	return r.issuer.IssueTokenPair(ctx, claims.UserID(), meta)
}

// RevokeSession deletes the single session identified by sid. Idempotent
// per spec §8. (POST /logout uses RevokeAllForUser, since access tokens
// carry no sid.)
func (r *Rotator) RevokeSession(ctx context.Context, sid string) error {
	if err := r.store.DeleteSession(ctx, sid); err != nil {
		return apierr.Internal(err)
	}
	return nil
}

// RevokeAllForUser implements spec §4.6: read the per-user index, delete
// every session key, then delete the index key. Used by password reset and
// admin logout-everywhere.
func (r *Rotator) RevokeAllForUser(ctx context.Context, userID string) error {
	sids, err := r.store.GetUserSessions(ctx, userID)
	if err != nil {
		return apierr.Internal(err)
	}
	for _, sid := range sids {
		if err := r.store.DeleteSession(ctx, sid); err != nil {
			return apierr.Internal(err)
		}
	}
	if err := r.store.DeleteUserSessionsKey(ctx, userID); err != nil {
		return apierr.Internal(err)
	}
	return nil
}

