// Package upload implements C8 (resumable upload state) and C9 (finalize
// pipeline), grounded on original_source/pixles-api/upload/src/session/mod.rs
// (the Redis-hash-per-session shape) and service/upload.rs (create/append/
// finalize/cancel control flow), re-expressed with this module's
// sessionstore.Store facade instead of raw Redis commands.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/sessionstore"
)

const sessionTTL = 24 * time.Hour

const (
	minChunkSize = 256 * 1024
	maxChunkSize = 16 * 1024 * 1024
	chunkAlign   = 4 * 1024
	// chunkFraction is the target number of chunks a declared upload is
	// banded into when a total size is known.
	chunkFraction = 100
)

// StateManager is C8: disk chunk layout plus the session-store-backed
// hash record described in spec §4.8.
type StateManager struct {
	store       sessionstore.Store
	baseDir     string
	maxFileSize int64
}

func NewStateManager(store sessionstore.Store, baseDir string, maxFileSize int64) *StateManager {
	return &StateManager{store: store, baseDir: baseDir, maxFileSize: maxFileSize}
}

func (m *StateManager) uploadDir(id string) string  { return filepath.Join(m.baseDir, id) }
func (m *StateManager) chunksDir(id string) string   { return filepath.Join(m.uploadDir(id), "chunks") }
func (m *StateManager) statePath(id string) string   { return filepath.Join(m.uploadDir(id), "state.json") }
func (m *StateManager) chunkPath(id string, idx int) string {
	return filepath.Join(m.chunksDir(id), fmt.Sprintf("%06d", idx))
}

// FinalPath is the concatenation target C9 writes to (spec §4.9 step 1).
func (m *StateManager) FinalPath(id, filename string) string {
	return filepath.Join(m.uploadDir(id), filename)
}

// ChunksDir exposes the chunk directory to the finalizer.
func (m *StateManager) ChunksDir(id string) string { return m.chunksDir(id) }

// Create implements spec §4.8 "Create": validate, persist the session
// record, create the chunk directory, and suggest a chunk size.
func (m *StateManager) Create(ctx context.Context, userID, filename, contentType string, totalSize *int64) (*sessionstore.UploadSession, int64, error) {
	if totalSize != nil && *totalSize > m.maxFileSize {
		return nil, 0, apierr.New(apierr.KindFileTooLarge, "declared total_size exceeds the maximum upload size")
	}

	now := time.Now().UTC()
	sess := sessionstore.UploadSession{
		ID:            uuid.NewString(),
		UserID:        userID,
		Filename:      filename,
		ContentType:   contentType,
		TotalSize:     totalSize,
		ReceivedBytes: 0,
		IsComplete:    false,
		CreatedAt:     now,
		ExpiresAt:     now.Add(sessionTTL),
	}

	if err := os.MkdirAll(m.chunksDir(sess.ID), 0o755); err != nil {
		return nil, 0, apierr.Internal(err)
	}
	if err := m.store.CreateUploadSession(ctx, sess, sessionTTL); err != nil {
		return nil, 0, apierr.Internal(err)
	}
	m.saveLocalState(ctx, sess)

	return &sess, suggestChunkSize(totalSize), nil
}

// suggestChunkSize bands the recommendation to 4 KiB alignment within
// [256 KiB, 16 MiB], scaled to roughly chunkFraction chunks for the whole
// upload when the size is known; unknown-size uploads get the floor.
func suggestChunkSize(totalSize *int64) int64 {
	if totalSize == nil || *totalSize <= 0 {
		return minChunkSize
	}
	target := *totalSize / chunkFraction
	if target < minChunkSize {
		target = minChunkSize
	}
	if target > maxChunkSize {
		target = maxChunkSize
	}
	return target - (target % chunkAlign)
}

// AppendChunk implements spec §4.8 "AppendChunk": exact-offset validation,
// sequential on-disk write, atomic KV increment.
func (m *StateManager) AppendChunk(ctx context.Context, id string, offset int64, data []byte) (*sessionstore.UploadSession, error) {
	sess, err := m.store.GetUploadSession(ctx, id)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if sess == nil {
		return nil, apierr.New(apierr.KindSessionNotFound, "upload session not found")
	}
	if sess.IsComplete {
		return nil, apierr.New(apierr.KindUploadComplete, "upload already finalized")
	}
	if offset != sess.ReceivedBytes {
		return nil, apierr.InvalidOffset(sess.ReceivedBytes, offset)
	}

	chunkLen := int64(len(data))
	newSize := sess.ReceivedBytes + chunkLen
	if sess.TotalSize != nil && newSize > *sess.TotalSize {
		return nil, apierr.New(apierr.KindInvalidUpload, "chunk exceeds declared total size")
	}
	if newSize > m.maxFileSize {
		return nil, apierr.New(apierr.KindFileTooLarge, "upload exceeds the maximum upload size")
	}

	nextIndex, err := m.countChunks(id)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if err := os.WriteFile(m.chunkPath(id, nextIndex), data, 0o644); err != nil {
		return nil, apierr.Internal(err)
	}

	newReceived, err := m.store.IncrementUploadReceivedBytes(ctx, id, chunkLen)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil, apierr.New(apierr.KindSessionNotFound, "upload session not found")
		}
		return nil, apierr.Internal(err)
	}

	updated := *sess
	updated.ReceivedBytes = newReceived
	m.saveLocalState(ctx, updated)

	return &updated, nil
}

// Head implements spec §4.8 "Head".
func (m *StateManager) Head(ctx context.Context, id string) (*sessionstore.UploadSession, error) {
	sess, err := m.store.GetUploadSession(ctx, id)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if sess == nil {
		return nil, apierr.New(apierr.KindSessionNotFound, "upload session not found")
	}
	return sess, nil
}

// Cancel implements spec §4.8 "Cancel".
func (m *StateManager) Cancel(ctx context.Context, id string) error {
	if err := m.store.DeleteUploadSession(ctx, id); err != nil {
		return apierr.Internal(err)
	}
	if err := os.RemoveAll(m.uploadDir(id)); err != nil {
		return apierr.Internal(err)
	}
	return nil
}

func (m *StateManager) countChunks(id string) (int, error) {
	entries, err := os.ReadDir(m.chunksDir(id))
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// saveLocalState mirrors the updated record to state.json, best effort:
// the KV is authoritative under normal operation (spec §4.8 "Recovery").
func (m *StateManager) saveLocalState(ctx context.Context, sess sessionstore.UploadSession) {
	data, err := json.Marshal(sess)
	if err != nil {
		logx.WithContext(ctx).Errorf("upload: marshal local state failed: %v", err)
		return
	}
	if err := os.WriteFile(m.statePath(sess.ID), data, 0o644); err != nil {
		logx.WithContext(ctx).Errorf("upload: write local state failed: %v", err)
	}
}
