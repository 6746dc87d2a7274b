package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/pixles/authcore/internal/reqctx"
	"github.com/pixles/authcore/internal/svc"
	"github.com/pixles/authcore/internal/types"
)

// TOTPEnrollHandler implements POST /totp/enroll (spec §4.3 phase 1).
func TOTPEnrollHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		uri, err := svcCtx.Credential.EnrollTOTP(r.Context(), principal.UserID)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.TOTPEnrollResponse{ProvisioningURI: uri})
	}
}

// TOTPVerifyEnrollmentHandler implements POST /totp/verify-enrollment
// (spec §4.3 phase 2).
func TOTPVerifyEnrollmentHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		var req types.TOTPCodeRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if err := svcCtx.Credential.VerifyTOTPEnrollment(r.Context(), principal.UserID, req.Code); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// TOTPDisableHandler implements POST /totp/disable.
func TOTPDisableHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := reqctx.FromContext(r.Context())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		var req types.TOTPCodeRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if err := svcCtx.Credential.DisableTOTP(r.Context(), principal.UserID, req.Code); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// TOTPVerifyLoginHandler implements POST /totp/verify-login: the MFA
// step-up completion. Unauthenticated by design — the mfa_token carries
// its own (short-lived, scope-less) authority.
func TOTPVerifyLoginHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TOTPVerifyLoginRequest
		if err := httpx.Parse(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		pair, err := svcCtx.Credential.VerifyMfaAndIssue(r.Context(), req.MFAToken, req.Code, requestMeta(r))
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenPairResponse(pair))
	}
}
