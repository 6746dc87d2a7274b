package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"
)

// ErrNotFound is returned when a lookup query yields no rows.
var ErrNotFound = errors.New("db: record not found")

// BaseRepository centralizes the sqlx.DB handle and common query shapes,
// grounded on shared/repository/repository.go's BaseRepository.
type BaseRepository struct {
	DB *sqlx.DB
}

func NewBaseRepository(dbh *sqlx.DB) *BaseRepository {
	return &BaseRepository{DB: dbh}
}

// GetOne runs a query expecting exactly one row, translating sql.ErrNoRows
// into ErrNotFound so callers can branch with errors.Is.
func (r *BaseRepository) GetOne(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := r.DB.GetContext(ctx, dest, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		logx.WithContext(ctx).Errorf("db: query failed: %v", err)
		return fmt.Errorf("db: query: %w", err)
	}
	return nil
}

// Exec runs a statement with positional args and returns rows affected.
func (r *BaseRepository) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		logx.WithContext(ctx).Errorf("db: exec failed: %v", err)
		return 0, fmt.Errorf("db: exec: %w", err)
	}
	return res.RowsAffected()
}

// NamedExec runs a statement with named args (struct or map).
func (r *BaseRepository) NamedExec(ctx context.Context, query string, arg interface{}) error {
	_, err := r.DB.NamedExecContext(ctx, query, arg)
	if err != nil {
		logx.WithContext(ctx).Errorf("db: named exec failed: %v", err)
		return fmt.Errorf("db: named exec: %w", err)
	}
	return nil
}

// Transaction runs fn inside a sqlx transaction, rolling back on error or
// panic and committing otherwise.
func (r *BaseRepository) Transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	err = fn(tx)
	return err
}

// Named queries, kept as constants the way shared/repository/repository.go
// does, adapted from the photo-library profile/user shape to the identity
// and asset shape this spec needs.
const (
	insertUserQuery = `
		INSERT INTO users
			(id, username, email, name, password_hash, is_admin, created_at, updated_at)
		VALUES
			(:id, :username, :email, :name, :password_hash, :is_admin, :created_at, :updated_at)`

	selectUserByIDQuery = `
		SELECT id, username, email, name, password_hash, totp_secret, totp_verified,
			password_reset_token, password_reset_expires_at, failed_login_attempts,
			last_login_at, is_admin, created_at, updated_at, deleted_at
		FROM users WHERE id = $1 AND deleted_at IS NULL`

	selectUserByEmailQuery = `
		SELECT id, username, email, name, password_hash, totp_secret, totp_verified,
			password_reset_token, password_reset_expires_at, failed_login_attempts,
			last_login_at, is_admin, created_at, updated_at, deleted_at
		FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`

	selectUserByUsernameQuery = `
		SELECT id, username, email, name, password_hash, totp_secret, totp_verified,
			password_reset_token, password_reset_expires_at, failed_login_attempts,
			last_login_at, is_admin, created_at, updated_at, deleted_at
		FROM users WHERE lower(username) = lower($1) AND deleted_at IS NULL`

	selectUserByResetTokenQuery = `
		SELECT id, username, email, name, password_hash, totp_secret, totp_verified,
			password_reset_token, password_reset_expires_at, failed_login_attempts,
			last_login_at, is_admin, created_at, updated_at, deleted_at
		FROM users WHERE password_reset_token = $1 AND deleted_at IS NULL`

	updatePasswordQuery = `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`

	updateLoginSuccessQuery = `
		UPDATE users SET failed_login_attempts = 0, last_login_at = now(), updated_at = now() WHERE id = $1`

	incrementFailedLoginQuery = `
		UPDATE users SET failed_login_attempts = failed_login_attempts + 1, updated_at = now() WHERE id = $1`

	setTOTPSecretQuery = `
		UPDATE users SET totp_secret = $2, totp_verified = false, updated_at = now() WHERE id = $1`

	setTOTPVerifiedQuery = `
		UPDATE users SET totp_verified = $2, updated_at = now() WHERE id = $1`

	clearTOTPQuery = `
		UPDATE users SET totp_secret = NULL, totp_verified = false, updated_at = now() WHERE id = $1`

	setPasswordResetTokenQuery = `
		UPDATE users SET password_reset_token = $2, password_reset_expires_at = $3, updated_at = now() WHERE id = $1`

	clearPasswordResetTokenQuery = `
		UPDATE users SET password_reset_token = NULL, password_reset_expires_at = NULL, updated_at = now() WHERE id = $1`

	insertPasskeyQuery = `
		INSERT INTO passkeys
			(id, user_id, cred_id, public_key, counter, aaguid, name, backup_eligible, backup_state, created_at, updated_at)
		VALUES
			(:id, :user_id, :cred_id, :public_key, :counter, :aaguid, :name, :backup_eligible, :backup_state, :created_at, :updated_at)`

	selectPasskeysByUserQuery = `
		SELECT id, user_id, cred_id, public_key, counter, aaguid, name, backup_eligible, backup_state, created_at, updated_at
		FROM passkeys WHERE user_id = $1 ORDER BY created_at`

	selectPasskeyByCredIDQuery = `
		SELECT id, user_id, cred_id, public_key, counter, aaguid, name, backup_eligible, backup_state, created_at, updated_at
		FROM passkeys WHERE cred_id = $1`

	countPasskeysByUserQuery = `SELECT count(*) FROM passkeys WHERE user_id = $1`

	updatePasskeyCounterQuery = `
		UPDATE passkeys SET counter = $2, updated_at = now() WHERE id = $1`

	deletePasskeyQuery = `DELETE FROM passkeys WHERE id = $1 AND user_id = $2`

	insertOwnerGroupQuery = `INSERT INTO owner_groups (id, created_at) VALUES ($1, now())`

	insertOwnerGroupMemberQuery = `
		INSERT INTO owner_group_members (owner_group_id, user_id, created_at) VALUES ($1, $2, now())`

	insertAssetQuery = `
		INSERT INTO assets
			(id, owner_id, asset_type, original_filename, file_size, file_hash, content_type,
			 width, height, captured_at, uploaded_at, modified_at)
		VALUES
			(:id, :owner_id, :asset_type, :original_filename, :file_size, :file_hash, :content_type,
			 :width, :height, :captured_at, :uploaded_at, :modified_at)`

	selectAssetByIDQuery = `
		SELECT id, owner_id, asset_type, original_filename, file_size, file_hash, content_type,
			width, height, captured_at, uploaded_at, modified_at, deleted_at
		FROM assets WHERE id = $1 AND deleted_at IS NULL`
)
