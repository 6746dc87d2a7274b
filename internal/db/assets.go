package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/trace"
)

// AssetsRepo is the asset/owner-group collaborator for the finalize
// transaction (spec §4.9, §6).
type AssetsRepo struct {
	*BaseRepository
}

func NewAssetsRepo(base *BaseRepository) *AssetsRepo {
	return &AssetsRepo{BaseRepository: base}
}

// NewAssetForSingleOwner builds a fresh Asset row for finalize, owner group
// id supplied by the caller once CreateOwnerGroupWithMember has run in the
// same transaction.
func NewAssetForSingleOwner(ownerGroupID string, assetType AssetType, originalFilename string, fileSize int64, fileHash int64, contentType string, width, height int32, capturedAt *time.Time) Asset {
	now := time.Now().UTC()
	return Asset{
		ID:               uuid.NewString(),
		OwnerGroupID:     ownerGroupID,
		AssetType:        assetType,
		OriginalFilename: originalFilename,
		FileSize:         fileSize,
		FileHash:         fileHash,
		ContentType:      contentType,
		Width:            width,
		Height:           height,
		CapturedAt:       capturedAt,
		UploadedAt:       now,
		ModifiedAt:       now,
	}
}

// CreateAssetWithOwnerGroup implements spec §4.9 step 4: inside a single
// transaction, create a fresh owner group of {userID}, then insert the
// asset row. Returns the inserted Asset, which carries both its ID and its
// OwnerGroupID.
func (r *AssetsRepo) CreateAssetWithOwnerGroup(ctx context.Context, userID string, build func(ownerGroupID string) Asset) (asset Asset, err error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "AssetsRepo.CreateAssetWithOwnerGroup")
	defer span.End()

	ownerGroupID := uuid.NewString()
	err = r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertOwnerGroupQuery, ownerGroupID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertOwnerGroupMemberQuery, ownerGroupID, userID); err != nil {
			return err
		}
		asset = build(ownerGroupID)
		if _, err := tx.NamedExecContext(ctx, insertAssetQuery, asset); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Asset{}, err
	}
	return asset, nil
}

func (r *AssetsRepo) GetByID(ctx context.Context, id string) (*Asset, error) {
	ctx, span := trace.TracerFromContext(ctx).Start(ctx, "AssetsRepo.GetByID")
	defer span.End()
	var a Asset
	if err := r.GetOne(ctx, &a, selectAssetByIDQuery, id); err != nil {
		return nil, err
	}
	return &a, nil
}
