package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/zeebo/xxh3"
	"golang.org/x/sys/unix"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/db"
	"github.com/pixles/authcore/internal/mediaprobe"
	"github.com/pixles/authcore/internal/sessionstore"
)

// AssetsRepository is the subset of *db.AssetsRepo the finalizer depends
// on, narrowed for test substitution.
type AssetsRepository interface {
	CreateAssetWithOwnerGroup(ctx context.Context, userID string, build func(ownerGroupID string) db.Asset) (db.Asset, error)
}

// reflinkFallbackTotal counts concatenation chunks that fell back to a
// streamed copy instead of a reflink (spec §9 Open Question decision 3).
var reflinkFallbackTotal atomic.Int64

// ReflinkFallbackTotal returns the process-lifetime fallback counter.
func ReflinkFallbackTotal() int64 { return reflinkFallbackTotal.Load() }

// Finalizer is C9: the post-upload pipeline described in spec §4.9.
type Finalizer struct {
	state  *StateManager
	store  sessionstore.Store
	assets AssetsRepository
	prober mediaprobe.Prober
}

func NewFinalizer(state *StateManager, store sessionstore.Store, assets AssetsRepository, prober mediaprobe.Prober) *Finalizer {
	return &Finalizer{state: state, store: store, assets: assets, prober: prober}
}

// Finalize implements spec §4.9: flip is_complete, concatenate, probe,
// hash, and persist the asset row inside a single DB transaction.
func (f *Finalizer) Finalize(ctx context.Context, id string) (*db.Asset, error) {
	sess, err := f.store.GetUploadSession(ctx, id)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if sess == nil {
		return nil, apierr.New(apierr.KindSessionNotFound, "upload session not found")
	}
	if sess.TotalSize == nil || sess.ReceivedBytes != *sess.TotalSize {
		return nil, apierr.New(apierr.KindInvalidUpload, "upload is not complete")
	}

	flipped, err := f.store.SetUploadComplete(ctx, id)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil, apierr.New(apierr.KindSessionNotFound, "upload session not found")
		}
		return nil, apierr.Internal(err)
	}
	if !flipped {
		return nil, apierr.New(apierr.KindUploadInstanceConflict, "another caller already finalized this upload")
	}

	asset, err := f.runPipeline(ctx, id, sess)
	if err != nil {
		// Steps 1-4 failed after this caller claimed the flip (spec §4.9:
		// "failure in step 4 aborts the transaction ... may restart
		// finalize by re-entering step 1"). Release the claim so a retry
		// is not permanently wedged behind UploadInstanceConflict.
		if clearErr := f.store.ClearUploadComplete(ctx, id); clearErr != nil {
			return nil, apierr.Internal(fmt.Errorf("finalize failed (%w) and could not release session for retry: %v", err, clearErr))
		}
		return nil, err
	}
	return asset, nil
}

// runPipeline implements spec §4.9 steps 1-4: concatenate, probe, hash, and
// insert the asset row. Split out of Finalize so every exit path here goes
// through the same un-flip-on-failure handling in the caller.
func (f *Finalizer) runPipeline(ctx context.Context, id string, sess *sessionstore.UploadSession) (*db.Asset, error) {
	filename := sess.Filename
	if filename == "" {
		filename = id + ".bin"
	}
	finalPath := f.state.FinalPath(id, filename)

	numChunks, err := f.state.countChunks(id)
	if err != nil {
		return nil, apierr.New(apierr.KindProcessingError, err.Error())
	}
	if err := f.concatenateChunks(id, finalPath, numChunks); err != nil {
		return nil, apierr.New(apierr.KindProcessingError, err.Error())
	}

	md, err := f.prober.Probe(finalPath)
	if err != nil {
		return nil, apierr.New(apierr.KindProcessingError, err.Error())
	}

	hash, err := hashFile(finalPath)
	if err != nil {
		return nil, apierr.New(apierr.KindProcessingError, err.Error())
	}

	contentType := sess.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	assetType := classifyAssetType(contentType)

	asset, err := f.assets.CreateAssetWithOwnerGroup(ctx, sess.UserID, func(ownerGroupID string) db.Asset {
		return db.NewAssetForSingleOwner(ownerGroupID, assetType, filename, sess.ReceivedBytes, int64(hash), contentType, md.Width, md.Height, md.CapturedAt)
	})
	if err != nil {
		return nil, apierr.New(apierr.KindProcessingError, err.Error())
	}

	if err := f.store.DeleteUploadSession(ctx, id); err != nil {
		return nil, apierr.Internal(err)
	}

	return &asset, nil
}

func classifyAssetType(contentType string) db.AssetType {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return db.AssetTypeVideo
	case strings.HasPrefix(contentType, "image/"):
		return db.AssetTypePhoto
	default:
		return db.AssetTypePhoto
	}
}

// hashFile computes the xxh3 64-bit content hash, stored signed to fit a
// BIGINT column (spec §3, §4.9 step 3).
func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// concatenateChunks implements spec §4.9 step 1: an exclusive create so two
// genuinely concurrent attempts for the same id cannot double-write. A
// leftover target from an earlier attempt that failed after step 1 is
// GC-safe by id (spec §4.9) and is removed first so a caller re-entering
// step 1 on retry is not wedged behind its own stale file. Each chunk is
// appended by reflinking its range onto the growing end of the target
// (FICLONERANGE) when the filesystem supports copy-on-write; any failure
// falls back to a streamed copy at the same offset and bumps
// reflinkFallbackTotal.
func (f *Finalizer) concatenateChunks(id, targetPath string, numChunks int) error {
	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	target, err := os.OpenFile(targetPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer target.Close()

	var offset int64
	for i := 0; i < numChunks; i++ {
		n, err := appendChunk(target, f.state.chunkPath(id, i), offset)
		if err != nil {
			return err
		}
		offset += n
	}
	return target.Sync()
}

// appendChunk reflinks chunkPath onto target at destOffset when possible,
// falling back to a streamed copy, and returns the chunk's length.
func appendChunk(target *os.File, chunkPath string, destOffset int64) (int64, error) {
	src, err := os.Open(chunkPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()

	err = unix.IoctlFileCloneRange(int(target.Fd()), &unix.FileCloneRange{
		Src_fd:      int64(src.Fd()),
		Src_offset:  0,
		Src_length:  uint64(size),
		Dest_offset: uint64(destOffset),
	})
	if err == nil {
		return size, nil
	}
	reflinkFallbackTotal.Add(1)

	if _, err := target.Seek(destOffset, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := io.Copy(target, src); err != nil {
		return 0, err
	}
	return size, nil
}
