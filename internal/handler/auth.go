package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/pixles/authcore/internal/credential"
	"github.com/pixles/authcore/internal/reqctx"
	"github.com/pixles/authcore/internal/svc"
	"github.com/pixles/authcore/internal/types"
)

func requestMeta(r *http.Request) credential.RequestMeta {
	return credential.RequestMeta{UserAgent: r.UserAgent(), IPAddress: r.RemoteAddr}
}

func tokenPairResponse(p *credential.TokenPair) types.TokenPairResponse {
	return types.TokenPairResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresBy:    p.ExpiresBy,
	}
}

// RegisterHandler implements POST /register (spec §6).
func RegisterHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RegisterRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		pair, err := svcCtx.Credential.Register(r.Context(), credential.RegisterInput{
			Username: req.Username, Name: req.Name, Email: req.Email, Password: req.Password,
		})
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tokenPairResponse(pair))
	}
}

// LoginHandler implements POST /login (spec §6): either a token pair or an
// MFA ticket, both as 200.
func LoginHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		pair, mfa, err := svcCtx.Credential.AuthenticatePassword(r.Context(), req.Email, req.Password, requestMeta(r))
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if mfa != nil {
			writeJSON(w, http.StatusOK, types.MFATokenResponse{MFAToken: mfa.MFAToken})
			return
		}
		writeJSON(w, http.StatusOK, tokenPairResponse(pair))
	}
}

// RefreshHandler implements POST /refresh (spec §4.6).
func RefreshHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RefreshRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		pair, err := svcCtx.Refresh.Refresh(r.Context(), req.RefreshToken, requestMeta(r))
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenPairResponse(pair))
	}
}

// ValidateHandler implements POST /validate: resolving the bearer token IS
// the whole operation, so it runs as the requireAuth wrapper's next() and
// only reports the user id of the principal requireAuth attached.
func ValidateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ValidateResponse{UserID: principal.UserID})
	}
}

// LogoutHandler implements POST /logout. Access tokens carry no sid (only
// refresh tokens do), so logout revokes every session belonging to the
// caller rather than one specific session.
func LogoutHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if err := svcCtx.Refresh.RevokeAllForUser(r.Context(), principal.UserID); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// PasswordResetRequestHandler implements POST /password-reset-request
// (spec §4.5, §7): always 200, latency-padded, regardless of outcome.
func PasswordResetRequestHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PasswordResetRequestRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		_ = svcCtx.Credential.PasswordResetRequest(r.Context(), req.Email)
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// PasswordResetHandler implements POST /password-reset (spec scenario 3):
// consumes the reset token and revokes every session for the user.
func PasswordResetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PasswordResetRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if err := svcCtx.Credential.PasswordReset(r.Context(), req.Token, req.NewPassword, svcCtx.Refresh); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}
