package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/trace"
)

// PasskeysRepo is the passkey-credential collaborator (spec §4.7, §6).
type PasskeysRepo struct {
	*BaseRepository
}

func NewPasskeysRepo(base *BaseRepository) *PasskeysRepo {
	return &PasskeysRepo{BaseRepository: base}
}

func NewPasskey(userID string, credID, publicKey []byte, name string, backupEligible, backupState bool, aaguid *string) Passkey {
	now := time.Now().UTC()
	return Passkey{
		ID:             uuid.NewString(),
		UserID:         userID,
		CredID:         credID,
		PublicKey:      publicKey,
		Counter:        0,
		AAGUID:         aaguid,
		Name:           name,
		BackupEligible: backupEligible,
		BackupState:    backupState,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *PasskeysRepo) CreatePasskey(ctx context.Context, p Passkey) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "PasskeysRepo.CreatePasskey")
	defer span.End()
	return r.NamedExec(ctx, insertPasskeyQuery, p)
}

func (r *PasskeysRepo) ListByUser(ctx context.Context, userID string) ([]Passkey, error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "PasskeysRepo.ListByUser")
	defer span.End()
	var out []Passkey
	if err := r.DB.SelectContext(ctx, &out, selectPasskeysByUserQuery, userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PasskeysRepo) GetByCredID(ctx context.Context, credID []byte) (*Passkey, error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "PasskeysRepo.GetByCredID")
	defer span.End()
	var p Passkey
	if err := r.GetOne(ctx, &p, selectPasskeyByCredIDQuery, credID); err != nil {
		return nil, err
	}
	return &p, nil
}

// CountByUser backs the MAX_PASSKEYS_PER_USER invariant (spec §3).
func (r *PasskeysRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "PasskeysRepo.CountByUser")
	defer span.End()
	var n int
	if err := r.GetOne(ctx, &n, countPasskeysByUserQuery, userID); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PasskeysRepo) UpdateCounter(ctx context.Context, id string, counter uint32) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "PasskeysRepo.UpdateCounter")
	defer span.End()
	_, err := r.Exec(ctx, updatePasskeyCounterQuery, id, counter)
	return err
}

func (r *PasskeysRepo) Delete(ctx context.Context, id, userID string) error {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "PasskeysRepo.Delete")
	defer span.End()
	_, err := r.Exec(ctx, deletePasskeyQuery, id, userID)
	return err
}
