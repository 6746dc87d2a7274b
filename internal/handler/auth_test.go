package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixles/authcore/internal/password"
	"github.com/pixles/authcore/internal/reqctx"
	"github.com/pixles/authcore/internal/tokencodec"
	"github.com/pixles/authcore/internal/totp"
	"github.com/pixles/authcore/internal/types"
)

func TestRegisterHandlerCreatesUserAndReturnsTokenPair(t *testing.T) {
	h := newTestHarness(t)
	body := types.RegisterRequest{Username: "alice", Name: "Alice", Email: "alice@example.com", Password: "hunter2222"}
	r := jsonRequest("POST", "/register", body)
	rr := httptest.NewRecorder()

	RegisterHandler(h.svcCtx)(rr, r)

	require.Equal(t, 201, rr.Code)
	var resp types.TokenPairResponse
	decodeBody(t, rr, &resp)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "Bearer", resp.TokenType)
}

func TestRegisterHandlerRejectsInvalidField(t *testing.T) {
	h := newTestHarness(t)
	body := types.RegisterRequest{Username: "a", Name: "Alice", Email: "not-an-email", Password: "short"}
	r := jsonRequest("POST", "/register", body)
	rr := httptest.NewRecorder()

	RegisterHandler(h.svcCtx)(rr, r)

	require.Equal(t, 400, rr.Code)
}

func TestLoginHandlerReturnsTokenPairForValidCredentials(t *testing.T) {
	h := newTestHarness(t)
	hash, err := password.Hash("correct-horse-battery")
	require.NoError(t, err)
	h.seedUser(t, "bob", "bob@example.com", "Bob", hash)

	r := jsonRequest("POST", "/login", types.LoginRequest{Email: "bob@example.com", Password: "correct-horse-battery"})
	rr := httptest.NewRecorder()

	LoginHandler(h.svcCtx)(rr, r)

	require.Equal(t, 200, rr.Code)
	var resp types.TokenPairResponse
	decodeBody(t, rr, &resp)
	require.NotEmpty(t, resp.AccessToken)
}

func TestLoginHandlerRejectsWrongPassword(t *testing.T) {
	h := newTestHarness(t)
	hash, err := password.Hash("correct-horse-battery")
	require.NoError(t, err)
	h.seedUser(t, "bob", "bob@example.com", "Bob", hash)

	r := jsonRequest("POST", "/login", types.LoginRequest{Email: "bob@example.com", Password: "wrong"})
	rr := httptest.NewRecorder()

	LoginHandler(h.svcCtx)(rr, r)

	require.Equal(t, 401, rr.Code)
}

func TestLoginHandlerReturnsMFATokenWhenTOTPEnabled(t *testing.T) {
	h := newTestHarness(t)
	hash, err := password.Hash("correct-horse-battery")
	require.NoError(t, err)
	u := h.seedUser(t, "carol", "carol@example.com", "Carol", hash)

	secret, err := totp.GenerateSecret()
	require.NoError(t, err)
	require.NoError(t, h.users.SetTOTPSecret(testCtx(), u.ID, secret))
	require.NoError(t, h.users.SetTOTPVerified(testCtx(), u.ID, true))

	r := jsonRequest("POST", "/login", types.LoginRequest{Email: "carol@example.com", Password: "correct-horse-battery"})
	rr := httptest.NewRecorder()

	LoginHandler(h.svcCtx)(rr, r)

	require.Equal(t, 200, rr.Code)
	var resp types.MFATokenResponse
	decodeBody(t, rr, &resp)
	require.NotEmpty(t, resp.MFAToken)
}

func TestRefreshHandlerRotatesToken(t *testing.T) {
	h := newTestHarness(t)
	hash, err := password.Hash("correct-horse-battery")
	require.NoError(t, err)
	u := h.seedUser(t, "dave", "dave@example.com", "Dave", hash)

	pair, _, err := h.svcCtx.Credential.AuthenticatePassword(testCtx(), "dave@example.com", "correct-horse-battery", credentialMeta())
	require.NoError(t, err)
	_ = u

	r := jsonRequest("POST", "/refresh", types.RefreshRequest{RefreshToken: pair.RefreshToken})
	rr := httptest.NewRecorder()

	RefreshHandler(h.svcCtx)(rr, r)

	require.Equal(t, 200, rr.Code)
	var resp types.TokenPairResponse
	decodeBody(t, rr, &resp)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEqual(t, pair.RefreshToken, resp.RefreshToken)
}

func TestRefreshHandlerRejectsReusedToken(t *testing.T) {
	h := newTestHarness(t)
	hash, err := password.Hash("correct-horse-battery")
	require.NoError(t, err)
	h.seedUser(t, "erin", "erin@example.com", "Erin", hash)

	pair, _, err := h.svcCtx.Credential.AuthenticatePassword(testCtx(), "erin@example.com", "correct-horse-battery", credentialMeta())
	require.NoError(t, err)

	r1 := jsonRequest("POST", "/refresh", types.RefreshRequest{RefreshToken: pair.RefreshToken})
	RefreshHandler(h.svcCtx)(httptest.NewRecorder(), r1)

	r2 := jsonRequest("POST", "/refresh", types.RefreshRequest{RefreshToken: pair.RefreshToken})
	rr2 := httptest.NewRecorder()
	RefreshHandler(h.svcCtx)(rr2, r2)

	require.Equal(t, 401, rr2.Code)
}

func TestValidateHandlerReturnsPrincipalUserID(t *testing.T) {
	h := newTestHarness(t)
	r := withPrincipal(jsonRequest("POST", "/validate", nil), reqctx.Principal{UserID: "user-123", Role: tokencodec.RoleUser})
	rr := httptest.NewRecorder()

	ValidateHandler(h.svcCtx)(rr, r)

	require.Equal(t, 200, rr.Code)
	var resp types.ValidateResponse
	decodeBody(t, rr, &resp)
	require.Equal(t, "user-123", resp.UserID)
}

func TestValidateHandlerRejectsMissingPrincipal(t *testing.T) {
	h := newTestHarness(t)
	r := jsonRequest("POST", "/validate", nil)
	rr := httptest.NewRecorder()

	ValidateHandler(h.svcCtx)(rr, r)

	require.Equal(t, 401, rr.Code)
}

func TestLogoutHandlerRevokesAllSessions(t *testing.T) {
	h := newTestHarness(t)
	hash, err := password.Hash("correct-horse-battery")
	require.NoError(t, err)
	u := h.seedUser(t, "frank", "frank@example.com", "Frank", hash)

	pair, _, err := h.svcCtx.Credential.AuthenticatePassword(testCtx(), "frank@example.com", "correct-horse-battery", credentialMeta())
	require.NoError(t, err)

	r := withPrincipal(jsonRequest("POST", "/logout", nil), reqctx.Principal{UserID: u.ID})
	rr := httptest.NewRecorder()
	LogoutHandler(h.svcCtx)(rr, r)
	require.Equal(t, 200, rr.Code)

	rr2 := httptest.NewRecorder()
	r2 := jsonRequest("POST", "/refresh", types.RefreshRequest{RefreshToken: pair.RefreshToken})
	RefreshHandler(h.svcCtx)(rr2, r2)
	require.Equal(t, 401, rr2.Code)
}

func TestPasswordResetRequestHandlerAlwaysReturns200(t *testing.T) {
	h := newTestHarness(t)
	r := jsonRequest("POST", "/password-reset-request", types.PasswordResetRequestRequest{Email: "nobody@example.com"})
	rr := httptest.NewRecorder()

	PasswordResetRequestHandler(h.svcCtx)(rr, r)

	require.Equal(t, 200, rr.Code)
}

func TestPasswordResetHandlerRejectsInvalidToken(t *testing.T) {
	h := newTestHarness(t)
	r := jsonRequest("POST", "/password-reset", types.PasswordResetRequest{Token: "bogus", NewPassword: "newlongpassword"})
	rr := httptest.NewRecorder()

	PasswordResetHandler(h.svcCtx)(rr, r)

	require.Equal(t, 400, rr.Code)
}
