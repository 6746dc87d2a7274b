package handler

import (
	"net/http"
	"time"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/reqctx"
	"github.com/pixles/authcore/internal/svc"
	"github.com/pixles/authcore/internal/types"
	"github.com/zeromicro/go-zero/rest/httpx"
)

const (
	passkeyRegCookie  = "passkey_reg_id"
	passkeyAuthCookie = "passkey_auth_id"
	ceremonyCookieTTL = 5 * time.Minute
)

func setCeremonyCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ceremonyCookieTTL.Seconds()),
	})
}

// PasskeyRegisterStartHandler implements POST /passkey/register/start
// (spec §4.7, §6): Bearer-authenticated, sets the registration cookie.
func PasskeyRegisterStartHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		nonce, creation, err := svcCtx.Passkey.BeginRegistration(r.Context(), principal.UserID)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		setCeremonyCookie(w, passkeyRegCookie, nonce)
		writeJSON(w, http.StatusOK, types.PasskeyChallengeResponse{Challenge: creation})
	}
}

// PasskeyRegisterFinishHandler implements POST /passkey/register/finish.
// The passkey nickname rides an optional header rather than the JSON body,
// since the WebAuthn library owns the whole request body as the credential
// response.
func PasskeyRegisterFinishHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		cookie, err := r.Cookie(passkeyRegCookie)
		if err != nil || cookie.Value == "" {
			writeError(r.Context(), w, apierr.New(apierr.KindRegistrationFailed, "missing registration session"))
			return
		}
		name := r.Header.Get("X-Pixles-Passkey-Name")
		if name == "" {
			name = "passkey"
		}
		if _, err := svcCtx.Passkey.FinishRegistration(r.Context(), principal.UserID, cookie.Value, name, r); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		clearCeremonyCookie(w, passkeyRegCookie)
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// PasskeyAuthStartHandler implements POST /passkey/auth/start: an optional
// username selects targeted login, an absent one selects discoverable
// (resident-key) login.
func PasskeyAuthStartHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PasskeyAuthStartRequest
		_ = httpx.Parse(r, &req)
		nonce, assertion, err := svcCtx.Passkey.BeginAuthentication(r.Context(), req.Username)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		setCeremonyCookie(w, passkeyAuthCookie, nonce)
		writeJSON(w, http.StatusOK, types.PasskeyChallengeResponse{Challenge: assertion})
	}
}

// PasskeyAuthFinishHandler implements POST /passkey/auth/finish: completes
// the ceremony and mints a token pair the same way password login does.
func PasskeyAuthFinishHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(passkeyAuthCookie)
		if err != nil || cookie.Value == "" {
			writeError(r.Context(), w, apierr.New(apierr.KindInvalidCredential, "missing authentication session"))
			return
		}
		userID, err := svcCtx.Passkey.FinishAuthentication(r.Context(), cookie.Value, r)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		clearCeremonyCookie(w, passkeyAuthCookie)
		pair, err := svcCtx.Credential.IssueTokenPair(r.Context(), userID, requestMeta(r))
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenPairResponse(pair))
	}
}

func clearCeremonyCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}
