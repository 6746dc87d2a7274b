package credential

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/pquerna/otp"
	gotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/sessionstore"
	"github.com/pixles/authcore/internal/tokencodec"
	"github.com/pixles/authcore/internal/totp"
)

func currentTOTPCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := gotp.GenerateCodeCustom(secret, time.Now().UTC(), gotp.ValidateOpts{
		Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

type fakeRevoker struct {
	revokedUserID string
	calls         int
}

func (f *fakeRevoker) RevokeAllForUser(_ context.Context, userID string) error {
	f.revokedUserID = userID
	f.calls++
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeUserRepo, sessionstore.Store) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	codec := tokencodec.NewCodec(priv, "pixles-test")
	store := sessionstore.NewMemory()
	users := newFakeUserRepo()
	svc := NewService(codec, store, users, nil, "pixles-test",
		10*time.Minute, 30*24*time.Hour, 5*time.Minute, time.Millisecond, 3)
	return svc, users, store
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Register(context.Background(), RegisterInput{Username: "a", Name: "A", Email: "bad", Password: "short"})
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierr.KindBadRequest, apiErr.Kind)
	require.Contains(t, apiErr.FieldErrors, "username")
	require.Contains(t, apiErr.FieldErrors, "email")
	require.Contains(t, apiErr.FieldErrors, "password")
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	svc, _, store := newTestService(t)
	pair, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Name: "Alice", Email: "Alice@X.test", Password: "password123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)

	// The caller-visible session index is populated.
	claims, err := tokenClaimsUnsafe(svc, pair.RefreshToken)
	require.NoError(t, err)
	sids, err := store.GetUserSessions(context.Background(), claims.UserID())
	require.NoError(t, err)
	require.Contains(t, sids, claims.SessionID())
}

func TestRegisterRejectsDuplicateEmailCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	in := RegisterInput{Username: "bob", Name: "Bob", Email: "bob@x.test", Password: "password123"}
	_, err := svc.Register(ctx, in)
	require.NoError(t, err)

	in2 := RegisterInput{Username: "bob2", Name: "Bob2", Email: "BOB@X.TEST", Password: "password123"}
	_, err = svc.Register(ctx, in2)
	require.Error(t, err)
	require.Equal(t, apierr.KindUserAlreadyExists, apierr.KindOf(err))
}

func TestAuthenticatePasswordUnknownEmailIsInvalidCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.AuthenticatePassword(context.Background(), "nobody@x.test", "whatever123", RequestMeta{})
	require.Error(t, err)
	require.Equal(t, apierr.KindInvalidCredentials, apierr.KindOf(err))
}

func TestAuthenticatePasswordWrongPasswordIncrementsCounter(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Username: "carol", Name: "Carol", Email: "carol@x.test", Password: "password123"})
	require.NoError(t, err)

	_, _, err = svc.AuthenticatePassword(ctx, "carol@x.test", "wrongpassword", RequestMeta{})
	require.Error(t, err)
	require.Equal(t, apierr.KindInvalidCredentials, apierr.KindOf(err))

	u, err := users.GetUserByEmail(ctx, "carol@x.test")
	require.NoError(t, err)
	require.EqualValues(t, 1, u.FailedLoginAttempts)
}

func TestAuthenticatePasswordSuccessIssuesPair(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Username: "dave", Name: "Dave", Email: "dave@x.test", Password: "password123"})
	require.NoError(t, err)

	pair, mfa, err := svc.AuthenticatePassword(ctx, "dave@x.test", "password123", RequestMeta{})
	require.NoError(t, err)
	require.Nil(t, mfa)
	require.NotEmpty(t, pair.AccessToken)
}

func TestAuthenticatePasswordWithTOTPReturnsMFATicket(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()
	pair, err := svc.Register(ctx, RegisterInput{Username: "erin", Name: "Erin", Email: "erin@x.test", Password: "password123"})
	require.NoError(t, err)
	claims, err := tokenClaimsUnsafe(svc, pair.RefreshToken)
	require.NoError(t, err)
	userID := claims.UserID()

	secret, err := totp.GenerateSecret()
	require.NoError(t, err)
	require.NoError(t, users.SetTOTPSecret(ctx, userID, secret))
	require.NoError(t, users.SetTOTPVerified(ctx, userID, true))

	tokenPair, mfa, err := svc.AuthenticatePassword(ctx, "erin@x.test", "password123", RequestMeta{})
	require.NoError(t, err)
	require.Nil(t, tokenPair)
	require.NotNil(t, mfa)
	require.NotEmpty(t, mfa.MFAToken)
}

func TestVerifyMfaAndIssueFlow(t *testing.T) {
	svc, users, store := newTestService(t)
	ctx := context.Background()
	pair, err := svc.Register(ctx, RegisterInput{Username: "frank", Name: "Frank", Email: "frank@x.test", Password: "password123"})
	require.NoError(t, err)
	claims, err := tokenClaimsUnsafe(svc, pair.RefreshToken)
	require.NoError(t, err)
	userID := claims.UserID()

	secret, err := totp.GenerateSecret()
	require.NoError(t, err)
	require.NoError(t, users.SetTOTPSecret(ctx, userID, secret))
	require.NoError(t, users.SetTOTPVerified(ctx, userID, true))

	_, mfa, err := svc.AuthenticatePassword(ctx, "frank@x.test", "password123", RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, mfa)

	// Three wrong codes hit the limit on the fourth attempt.
	for i := 0; i < 3; i++ {
		_, err := svc.VerifyMfaAndIssue(ctx, mfa.MFAToken, "000000", RequestMeta{})
		require.Error(t, err)
		require.Equal(t, apierr.KindInvalidCode, apierr.KindOf(err))
	}
	_, err = svc.VerifyMfaAndIssue(ctx, mfa.MFAToken, "000000", RequestMeta{})
	require.Equal(t, apierr.KindMaxAttemptsExceeded, apierr.KindOf(err))

	// A fresh ticket with the correct code succeeds and clears attempts.
	_, mfa2, err := svc.AuthenticatePassword(ctx, "frank@x.test", "password123", RequestMeta{})
	require.NoError(t, err)
	mfaClaims, err := tokenClaimsUnsafe(svc, mfa2.MFAToken)
	require.NoError(t, err)
	code := currentTOTPCode(t, secret)
	pair2, err := svc.VerifyMfaAndIssue(ctx, mfa2.MFAToken, code, RequestMeta{})
	require.NoError(t, err)
	require.NotEmpty(t, pair2.AccessToken)

	used, err := store.IsTicketUsed(ctx, mfaClaims.ID)
	require.NoError(t, err)
	require.True(t, used)

	// Replaying the same consumed ticket fails even with a fresh code.
	code2 := currentTOTPCode(t, secret)
	_, err = svc.VerifyMfaAndIssue(ctx, mfa2.MFAToken, code2, RequestMeta{})
	require.Error(t, err)
	require.Equal(t, apierr.KindTokenInvalid, apierr.KindOf(err))
}

func TestPasswordResetRequestAlwaysSucceedsAndPads(t *testing.T) {
	svc, _, _ := newTestService(t)
	start := time.Now()
	err := svc.PasswordResetRequest(context.Background(), "nobody@x.test")
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), time.Millisecond)
}

func TestPasswordResetInvalidatesSessions(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Username: "gina", Name: "Gina", Email: "gina@x.test", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.PasswordResetRequest(ctx, "gina@x.test"))
	u, err := users.GetUserByEmail(ctx, "gina@x.test")
	require.NoError(t, err)
	require.NotNil(t, u.PasswordResetToken)

	revoker := &fakeRevoker{}
	require.NoError(t, svc.PasswordReset(ctx, *u.PasswordResetToken, "newpassword123", revoker))
	require.Equal(t, 1, revoker.calls)
	require.Equal(t, u.ID, revoker.revokedUserID)

	_, _, err = svc.AuthenticatePassword(ctx, "gina@x.test", "newpassword123", RequestMeta{})
	require.NoError(t, err)
}

func TestPasswordResetRejectsUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.PasswordReset(context.Background(), "does-not-exist", "newpassword123", nil)
	require.Error(t, err)
	require.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))
}

// tokenClaimsUnsafe decodes a token issued by svc purely for test assertions.
func tokenClaimsUnsafe(svc *Service, token string) (*tokencodec.Claims, error) {
	return svc.codec.Decode(token)
}
