// Package db implements the relational collaborator for users, passkeys,
// owner groups, and assets (spec §3, §6 "External collaborators"), grounded
// on shared/repository/repository.go's BaseRepository and the per-entity
// repository split in services/microservices/auth/rpc/internal/repository.
package db

import "time"

// User mirrors the user record described in spec §3.
type User struct {
	ID                     string     `db:"id"`
	Username               string     `db:"username"`
	Email                  string     `db:"email"`
	Name                   string     `db:"name"`
	PasswordHash           string     `db:"password_hash"`
	TOTPSecret             *string    `db:"totp_secret"`
	TOTPVerified           bool       `db:"totp_verified"`
	PasswordResetToken     *string    `db:"password_reset_token"`
	PasswordResetExpiresAt *time.Time `db:"password_reset_expires_at"`
	FailedLoginAttempts    int64      `db:"failed_login_attempts"`
	LastLoginAt            *time.Time `db:"last_login_at"`
	IsAdmin                bool       `db:"is_admin"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
	DeletedAt              *time.Time `db:"deleted_at"`
}

// Passkey mirrors the passkey credential record described in spec §3.
type Passkey struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	CredID         []byte    `db:"cred_id"`
	PublicKey      []byte    `db:"public_key"`
	Counter        uint32    `db:"counter"`
	AAGUID         *string   `db:"aaguid"`
	Name           string    `db:"name"`
	BackupEligible bool      `db:"backup_eligible"`
	BackupState    bool      `db:"backup_state"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// OwnerGroup is a co-ownership set created implicitly at finalize (spec §3).
type OwnerGroup struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

// OwnerGroupMember links a user into an owner group.
type OwnerGroupMember struct {
	OwnerGroupID string    `db:"owner_group_id"`
	UserID       string    `db:"user_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// AssetType enumerates the closed set of finalized-asset kinds (spec §3).
type AssetType string

const (
	AssetTypePhoto       AssetType = "photo"
	AssetTypeVideo       AssetType = "video"
	AssetTypeMotionPhoto AssetType = "motion_photo"
	AssetTypeSidecar     AssetType = "sidecar"
)

// Asset mirrors the asset row described in spec §3, written only inside the
// finalize transaction (§4.9).
type Asset struct {
	ID               string     `db:"id"`
	OwnerGroupID     string     `db:"owner_id"`
	AssetType        AssetType  `db:"asset_type"`
	OriginalFilename string     `db:"original_filename"`
	FileSize         int64      `db:"file_size"`
	FileHash         int64      `db:"file_hash"` // xxh3 64-bit, stored as signed to fit BIGINT
	ContentType      string     `db:"content_type"`
	Width            int32      `db:"width"`
	Height           int32      `db:"height"`
	CapturedAt       *time.Time `db:"captured_at"`
	UploadedAt       time.Time  `db:"uploaded_at"`
	ModifiedAt       time.Time  `db:"modified_at"`
	DeletedAt        *time.Time `db:"deleted_at"`
}
