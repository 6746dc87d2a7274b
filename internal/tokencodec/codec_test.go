package tokencodec

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pixles/authcore/internal/apierr"
)

func newTestCodec(t *testing.T, issuer string) *Codec {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return NewCodec(priv, issuer)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	c := newTestCodec(t, "pixles-core")
	tok, claims, err := c.EncodeAccessToken("user-1", RoleUser, time.Minute)
	require.NoError(t, err)

	decoded, err := c.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, decoded.Subject)
	require.True(t, decoded.IsAccessToken())
	require.False(t, decoded.IsRefreshToken())
	require.True(t, decoded.Scopes.HasAll(ScopeReadUser, ScopeWriteUser))
	require.False(t, decoded.Scopes.Has(ScopeTokenRefresh))
	require.Nil(t, decoded.SID)
}

func TestRefreshTokenInvariants(t *testing.T) {
	c := newTestCodec(t, "pixles-core")
	tok, _, err := c.EncodeRefreshToken("user-1", "sid-1", RoleUser, time.Hour)
	require.NoError(t, err)

	decoded, err := c.Decode(tok)
	require.NoError(t, err)
	require.True(t, decoded.IsRefreshToken())
	require.NotNil(t, decoded.SID)
	require.Equal(t, "sid-1", *decoded.SID)
	require.Equal(t, ScopeSet{ScopeTokenRefresh}, decoded.Scopes)
}

func TestMFATicketInvariants(t *testing.T) {
	c := newTestCodec(t, "pixles-core")
	tok, _, err := c.EncodeMFATicket("user-1", time.Minute)
	require.NoError(t, err)

	decoded, err := c.Decode(tok)
	require.NoError(t, err)
	require.True(t, decoded.IsMFATicket())
	require.Nil(t, decoded.SID)
	require.Empty(t, decoded.Scopes)
}

func TestDecodeRejectsMismatchedIssuer(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	issuing := NewCodec(priv, "issuer-a")
	verifying := NewCodec(priv, "issuer-b")

	tok, _, err := issuing.EncodeAccessToken("user-1", RoleUser, time.Minute)
	require.NoError(t, err)

	_, err = verifying.Decode(tok)
	require.Error(t, err)
	require.Equal(t, apierr.KindTokenInvalid, apierr.KindOf(err))
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	c := newTestCodec(t, "pixles-core")
	tok, _, err := c.EncodeAccessToken("user-1", RoleUser, -time.Minute)
	require.NoError(t, err)

	_, err = c.Decode(tok)
	require.Error(t, err)
	require.Equal(t, apierr.KindTokenExpired, apierr.KindOf(err))
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	issuerCodec := newTestCodec(t, "pixles-core")
	otherCodec := newTestCodec(t, "pixles-core")

	tok, _, err := issuerCodec.EncodeAccessToken("user-1", RoleUser, time.Minute)
	require.NoError(t, err)

	_, err = otherCodec.Decode(tok)
	require.Error(t, err)
}

func TestScopeRoundTripsForEveryValue(t *testing.T) {
	for _, sc := range []Scope{ScopeTokenRefresh, ScopeReadUser, ScopeWriteUser} {
		set := ScopeSet{sc}
		raw, err := set.MarshalJSON()
		require.NoError(t, err)
		var decoded ScopeSet
		require.NoError(t, decoded.UnmarshalJSON(raw))
		require.Equal(t, set, decoded)
	}
}

func TestScopeUnmarshalRejectsUnknown(t *testing.T) {
	var set ScopeSet
	err := set.UnmarshalJSON([]byte(`["not:a:real:scope"]`))
	require.Error(t, err)
}
