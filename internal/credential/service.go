// Package credential implements C5: registration, password login, MFA
// step-up, and token-pair issuance (spec §4.5), grounded on
// services/gateway/services/auth/domain/auth's login/register handlers
// (teacher), generalized from the teacher's HS256/bcrypt pair to the
// EdDSA/Argon2id stack this spec calls for.
package credential

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/db"
	"github.com/pixles/authcore/internal/password"
	"github.com/pixles/authcore/internal/sessionstore"
	"github.com/pixles/authcore/internal/tokencodec"
	"github.com/pixles/authcore/internal/totp"
)

// Mailer is the email external collaborator (spec §6): out of scope for
// this core beyond the interface it consumes.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// UserRepository narrows *db.UsersRepo to what this service calls, so tests
// can swap in a process-memory fake instead of a real database.
type UserRepository interface {
	CreateUser(ctx context.Context, u db.User) error
	GetUserByID(ctx context.Context, id string) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByUsername(ctx context.Context, username string) (*db.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*db.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	RecordLoginSuccess(ctx context.Context, userID string) error
	IncrementFailedLogin(ctx context.Context, userID string) error
	SetTOTPSecret(ctx context.Context, userID, secret string) error
	SetTOTPVerified(ctx context.Context, userID string, verified bool) error
	ClearTOTP(ctx context.Context, userID string) error
	SetPasswordResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	ClearPasswordResetToken(ctx context.Context, userID string) error
}

// Revoker is the session-fan-out collaborator password reset needs;
// satisfied by *refresh.Rotator in production wiring. Declared here rather
// than imported to avoid a credential<->refresh import cycle, since both
// packages depend on each other's operations (IssueTokenPair / RevokeAllForUser).
type Revoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// TokenPair is the response shape for every operation that mints
// credentials (spec §6).
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresBy    int64 // unix seconds
}

// MFARequired is returned by AuthenticatePassword when TOTP step-up applies.
type MFARequired struct {
	MFAToken string
}

// RequestMeta carries optional request provenance for the session record.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

const passwordResetTokenTTL = time.Hour

type Service struct {
	codec  *tokencodec.Codec
	store  sessionstore.Store
	users  UserRepository
	mail   Mailer
	issuer string

	accessTTL      time.Duration
	refreshTTL     time.Duration
	mfaTicketTTL   time.Duration
	mfaMaxAttempts int64
	minResetOpMS   time.Duration
}

func NewService(codec *tokencodec.Codec, store sessionstore.Store, users UserRepository, mail Mailer, issuer string,
	accessTTL, refreshTTL, mfaTicketTTL, minResetOp time.Duration, mfaMaxAttempts int64) *Service {
	return &Service{
		codec: codec, store: store, users: users, mail: mail, issuer: issuer,
		accessTTL: accessTTL, refreshTTL: refreshTTL, mfaTicketTTL: mfaTicketTTL,
		mfaMaxAttempts: mfaMaxAttempts, minResetOpMS: minResetOp,
	}
}

// Register validates the predicate, rejects on an existing email/username
// (case-insensitive), hashes the password, inserts the user, and issues a
// token pair (spec §4.5).
func (s *Service) Register(ctx context.Context, in RegisterInput) (*TokenPair, error) {
	if verr := validateRegistration(in); verr != nil {
		return nil, verr
	}
	email := NormalizeEmail(in.Email)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apierr.New(apierr.KindUserAlreadyExists, "email already registered")
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, apierr.Internal(err)
	}
	if _, err := s.users.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, apierr.New(apierr.KindUserAlreadyExists, "username already taken")
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, apierr.Internal(err)
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	user := db.NewUser(in.Username, email, in.Name, hash)
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, apierr.Internal(err)
	}

	return s.IssueTokenPair(ctx, user.ID, RequestMeta{})
}

// AuthenticatePassword implements spec §4.5's login path, including the
// fixed-dummy-hash timing mitigation for unknown emails.
func (s *Service) AuthenticatePassword(ctx context.Context, email, plainPassword string, meta RequestMeta) (*TokenPair, *MFARequired, error) {
	email = NormalizeEmail(email)
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		password.VerifyDummy(plainPassword)
		return nil, nil, apierr.New(apierr.KindInvalidCredentials, "invalid credentials")
	}
	if err != nil {
		return nil, nil, apierr.Internal(err)
	}

	if !password.Verify(plainPassword, user.PasswordHash) {
		if ierr := s.users.IncrementFailedLogin(ctx, user.ID); ierr != nil {
			return nil, nil, apierr.Internal(ierr)
		}
		return nil, nil, apierr.New(apierr.KindInvalidCredentials, "invalid credentials")
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID); err != nil {
		return nil, nil, apierr.Internal(err)
	}

	if user.TOTPSecret != nil && user.TOTPVerified {
		token, _, err := s.codec.EncodeMFATicket(user.ID, s.mfaTicketTTL)
		if err != nil {
			return nil, nil, apierr.Internal(err)
		}
		return nil, &MFARequired{MFAToken: token}, nil
	}

	pair, err := s.IssueTokenPair(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}
	return pair, nil, nil
}

// IssueTokenPair implements spec §4.5b: creates a session, then encodes an
// access+refresh pair. If encoding fails after the session was created, the
// session is revoked before the error surfaces (atomicity clause).
func (s *Service) IssueTokenPair(ctx context.Context, userID string, meta RequestMeta) (*TokenPair, error) {
	sid := uuid.NewString()
	sess := sessionstore.Session{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}
	if err := s.store.SaveSession(ctx, sid, sess, s.refreshTTL); err != nil {
		return nil, apierr.Internal(err)
	}
	if err := s.store.AddUserSession(ctx, userID, sid, s.refreshTTL); err != nil {
		s.store.DeleteSession(ctx, sid)
		return nil, apierr.Internal(err)
	}

	access, accessClaims, err := s.codec.EncodeAccessToken(userID, tokencodec.RoleUser, s.accessTTL)
	if err != nil {
		s.store.DeleteSession(ctx, sid)
		return nil, apierr.Internal(err)
	}
	refresh, _, err := s.codec.EncodeRefreshToken(userID, sid, tokencodec.RoleUser, s.refreshTTL)
	if err != nil {
		s.store.DeleteSession(ctx, sid)
		return nil, apierr.Internal(err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresBy:    accessClaims.ExpiresAt.Unix(),
	}, nil
}

// VerifyMfaAndIssue implements spec §4.5's step-up completion.
func (s *Service) VerifyMfaAndIssue(ctx context.Context, mfaToken, code string, meta RequestMeta) (*TokenPair, error) {
	claims, err := s.codec.Decode(mfaToken)
	if err != nil {
		return nil, err
	}
	if !claims.IsMFATicket() {
		return nil, apierr.New(apierr.KindTokenInvalid, "not an mfa ticket")
	}
	jti := claims.ID

	used, err := s.store.IsTicketUsed(ctx, jti)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if used {
		return nil, apierr.New(apierr.KindTokenInvalid, "ticket already used")
	}

	attempts, err := s.store.GetMFAAttempts(ctx, jti)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if attempts >= s.mfaMaxAttempts {
		return nil, apierr.New(apierr.KindMaxAttemptsExceeded, "too many mfa attempts")
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID())
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierr.New(apierr.KindUserNotFound, "user not found")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if user.TOTPSecret == nil {
		return nil, apierr.New(apierr.KindNotEnabled, "totp not enabled")
	}

	if !totp.Verify(*user.TOTPSecret, code) {
		if _, ierr := s.store.IncrementMFAAttempt(ctx, jti, s.mfaTicketTTL); ierr != nil {
			return nil, apierr.Internal(ierr)
		}
		return nil, apierr.New(apierr.KindInvalidCode, "invalid totp code")
	}

	if err := s.store.ClearMFAAttempts(ctx, jti); err != nil {
		return nil, apierr.Internal(err)
	}
	if err := s.store.MarkTicketUsed(ctx, jti, s.mfaTicketTTL); err != nil {
		return nil, apierr.Internal(err)
	}

	return s.IssueTokenPair(ctx, user.ID, meta)
}

// EnrollTOTP implements the two-phase enrollment's first phase (spec §4.3).
func (s *Service) EnrollTOTP(ctx context.Context, userID string) (provisioningURI string, err error) {
	user, err := s.getUserOrNotFound(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.TOTPSecret != nil && user.TOTPVerified {
		return "", apierr.New(apierr.KindAlreadyEnabled, "totp already enabled")
	}
	secret, genErr := totp.GenerateSecret()
	if genErr != nil {
		return "", apierr.Internal(genErr)
	}
	if err := s.users.SetTOTPSecret(ctx, userID, secret); err != nil {
		return "", apierr.Internal(err)
	}
	return totp.ProvisioningURI(secret, user.Email, s.issuer), nil
}

// VerifyTOTPEnrollment implements the second enrollment phase.
func (s *Service) VerifyTOTPEnrollment(ctx context.Context, userID, code string) error {
	user, err := s.getUserOrNotFound(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil {
		return apierr.New(apierr.KindNotEnabled, "no pending totp enrollment")
	}
	if !totp.Verify(*user.TOTPSecret, code) {
		return apierr.New(apierr.KindInvalidCode, "invalid totp code")
	}
	if err := s.users.SetTOTPVerified(ctx, userID, true); err != nil {
		return apierr.Internal(err)
	}
	return nil
}

// DisableTOTP requires a valid code before clearing TOTP state.
func (s *Service) DisableTOTP(ctx context.Context, userID, code string) error {
	user, err := s.getUserOrNotFound(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil || !user.TOTPVerified {
		return apierr.New(apierr.KindNotEnabled, "totp not enabled")
	}
	if !totp.Verify(*user.TOTPSecret, code) {
		return apierr.New(apierr.KindInvalidCode, "invalid totp code")
	}
	if err := s.users.ClearTOTP(ctx, userID); err != nil {
		return apierr.Internal(err)
	}
	return nil
}

func (s *Service) getUserOrNotFound(ctx context.Context, userID string) (*db.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierr.New(apierr.KindUserNotFound, "user not found")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return user, nil
}

// PasswordResetRequest always reports success to the caller and pads its
// latency to MIN_RESET_OP_MS (spec §4.2, §7), regardless of whether the
// email is known.
func (s *Service) PasswordResetRequest(ctx context.Context, email string) error {
	start := time.Now()
	defer func() {
		if remaining := s.minResetOpMS - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}()

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return nil // infrastructure errors never leak from this endpoint
	}

	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(passwordResetTokenTTL)
	if err := s.users.SetPasswordResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return nil
	}
	if s.mail != nil {
		_ = s.mail.SendPasswordResetEmail(ctx, user.Email, token)
	}
	return nil
}

// PasswordReset consumes a reset token, sets a new password, and revokes
// every active session for the user (spec scenario 3).
func (s *Service) PasswordReset(ctx context.Context, token, newPassword string, revoker Revoker) error {
	if len(newPassword) < minPasswordLength {
		return apierr.BadRequest(map[string]string{"new_password": "must be at least 8 characters"})
	}

	user, err := s.users.GetUserByResetToken(ctx, token)
	if errors.Is(err, db.ErrNotFound) {
		return apierr.BadRequest(map[string]string{"token": "invalid or expired"})
	}
	if err != nil {
		return apierr.Internal(err)
	}
	if user.PasswordResetExpiresAt == nil || time.Now().UTC().After(*user.PasswordResetExpiresAt) {
		return apierr.BadRequest(map[string]string{"token": "invalid or expired"})
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return apierr.Internal(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apierr.Internal(err)
	}
	if err := s.users.ClearPasswordResetToken(ctx, user.ID); err != nil {
		return apierr.Internal(err)
	}
	if revoker != nil {
		if err := revoker.RevokeAllForUser(ctx, user.ID); err != nil {
			return apierr.Internal(err)
		}
	}
	return nil
}

