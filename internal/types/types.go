// Package types holds the request/response DTOs for the HTTP surface
// described in spec §6, grounded on the shape of the teacher's goctl-scaffolded
// types.go files (one struct per request/response, json tags only — no
// validation tags, since validation lives in the domain packages).
package types

// RegisterRequest is POST /register's body.
type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is POST /login's body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPairResponse is the shared success shape for every token-minting
// endpoint (spec §6).
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresBy    int64  `json:"expires_by"`
}

// MFATokenResponse is returned by /login in place of a token pair when
// step-up is required.
type MFATokenResponse struct {
	MFAToken string `json:"mfa_token"`
}

// RefreshRequest is POST /refresh's body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ValidateResponse is POST /validate's success body.
type ValidateResponse struct {
	UserID string `json:"user_id"`
}

// PasswordResetRequestRequest is POST /password-reset-request's body.
type PasswordResetRequestRequest struct {
	Email string `json:"email"`
}

// PasswordResetRequest is POST /password-reset's body.
type PasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// TOTPEnrollResponse is POST /totp/enroll's success body.
type TOTPEnrollResponse struct {
	ProvisioningURI string `json:"provisioning_uri"`
}

// TOTPCodeRequest backs /totp/verify-enrollment and /totp/disable.
type TOTPCodeRequest struct {
	Code string `json:"code"`
}

// TOTPVerifyLoginRequest is POST /totp/verify-login's body.
type TOTPVerifyLoginRequest struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code"`
}

// PasskeyAuthStartRequest is POST /passkey/auth/start's optional body.
type PasskeyAuthStartRequest struct {
	Username string `json:"username,optional"`
}

// PasskeyChallengeResponse wraps the opaque creation/assertion options the
// WebAuthn library produces for both registration and authentication starts.
type PasskeyChallengeResponse struct {
	Challenge interface{} `json:"challenge"`
}

// UploadCreateResponse is POST /upload's 201 body.
type UploadCreateResponse struct {
	ID                 string `json:"id"`
	UploadURL          string `json:"upload_url"`
	SuggestedChunkSize int64  `json:"suggested_chunk_size"`
}
