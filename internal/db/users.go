package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/trace"
)

// UsersRepo is the user-table collaborator described in spec §6 ("find user
// by email/username/id; insert user; update password hash; set/clear
// password reset token; set/clear TOTP secret; track login success/failure").
type UsersRepo struct {
	*BaseRepository
}

func NewUsersRepo(base *BaseRepository) *UsersRepo {
	return &UsersRepo{BaseRepository: base}
}

// NewUser builds a fresh User row ready for CreateUser.
func NewUser(username, email, name, passwordHash string) User {
	now := time.Now().UTC()
	return User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *UsersRepo) CreateUser(ctx context.Context, u User) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.CreateUser")
	defer span.End()
	return r.NamedExec(ctx, insertUserQuery, u)
}

func (r *UsersRepo) GetUserByID(ctx context.Context, id string) (*User, error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.GetUserByID")
	defer span.End()
	var u User
	if err := r.GetOne(ctx, &u, selectUserByIDQuery, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail looks up case-insensitively (spec §3 uniqueness invariant).
func (r *UsersRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.GetUserByEmail")
	defer span.End()
	var u User
	if err := r.GetOne(ctx, &u, selectUserByEmailQuery, email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.GetUserByUsername")
	defer span.End()
	var u User
	if err := r.GetOne(ctx, &u, selectUserByUsernameQuery, username); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepo) GetUserByResetToken(ctx context.Context, token string) (*User, error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.GetUserByResetToken")
	defer span.End()
	var u User
	if err := r.GetOne(ctx, &u, selectUserByResetTokenQuery, token); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.UpdatePassword")
	defer span.End()
	_, err := r.Exec(ctx, updatePasswordQuery, userID, passwordHash)
	return err
}

func (r *UsersRepo) RecordLoginSuccess(ctx context.Context, userID string) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.RecordLoginSuccess")
	defer span.End()
	_, err := r.Exec(ctx, updateLoginSuccessQuery, userID)
	return err
}

func (r *UsersRepo) IncrementFailedLogin(ctx context.Context, userID string) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.IncrementFailedLogin")
	defer span.End()
	_, err := r.Exec(ctx, incrementFailedLoginQuery, userID)
	return err
}

func (r *UsersRepo) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.SetTOTPSecret")
	defer span.End()
	_, err := r.Exec(ctx, setTOTPSecretQuery, userID, secret)
	return err
}

func (r *UsersRepo) SetTOTPVerified(ctx context.Context, userID string, verified bool) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.SetTOTPVerified")
	defer span.End()
	_, err := r.Exec(ctx, setTOTPVerifiedQuery, userID, verified)
	return err
}

func (r *UsersRepo) ClearTOTP(ctx context.Context, userID string) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.ClearTOTP")
	defer span.End()
	_, err := r.Exec(ctx, clearTOTPQuery, userID)
	return err
}

func (r *UsersRepo) SetPasswordResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.SetPasswordResetToken")
	defer span.End()
	_, err := r.Exec(ctx, setPasswordResetTokenQuery, userID, token, expiresAt)
	return err
}

func (r *UsersRepo) ClearPasswordResetToken(ctx context.Context, userID string) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "UsersRepo.ClearPasswordResetToken")
	defer span.End()
	_, err := r.Exec(ctx, clearPasswordResetTokenQuery, userID)
	return err
}
