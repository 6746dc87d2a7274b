// Package sessionstore implements C4: a strongly-typed facade over a
// pluggable key-value store backing sessions, the per-user revocation
// index, MFA attempt counters, ephemeral ceremony blobs, and upload-session
// state (spec §4.4, §4.8).
//
// The interface is closed per Design Note "Pluggable KV" — no raw KV
// commands are exposed. Grounded on the teacher's Redis-backed
// domain/cache/cache.go (the shape of a narrow, purpose-built cache facade)
// and pkg/gourdiantoken-master's TokenRepository pattern (pluggable
// interface + in-memory/Redis implementations), adapted from
// token-revocation storage to the session/MFA/upload shape this spec
// needs.
package sessionstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the record an operation needs does not exist. Store
// methods that specify "returns None when absent" in spec §4.4 return
// (nil, nil) instead — ErrNotFound is reserved for operations (like
// SetUploadComplete) where absence is itself an actionable error.
var ErrNotFound = errors.New("sessionstore: not found")

// Session is the payload persisted under a session id (spec §3).
type Session struct {
	UserID    string
	CreatedAt time.Time
	UserAgent string
	IPAddress string
}

// UploadSession mirrors the Redis hash described in spec §4.8.
type UploadSession struct {
	ID            string
	UserID        string
	Filename      string
	ContentType   string
	TotalSize     *int64
	ReceivedBytes int64
	IsComplete    bool
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Store is the closed KV facade. Implementations must be interchangeable;
// Memory is for tests, Redis is for production.
type Store interface {
	// Sessions (spec §4.4)
	SaveSession(ctx context.Context, sid string, s Session, ttl time.Duration) error
	GetSession(ctx context.Context, sid string) (*Session, error)
	DeleteSession(ctx context.Context, sid string) error

	// Per-user revocation fan-out index.
	AddUserSession(ctx context.Context, userID, sid string, ttl time.Duration) error
	GetUserSessions(ctx context.Context, userID string) ([]string, error)
	DeleteUserSessionsKey(ctx context.Context, userID string) error

	// MFA attempt throttling, keyed by ticket jti.
	IncrementMFAAttempt(ctx context.Context, jti string, ttl time.Duration) (int64, error)
	GetMFAAttempts(ctx context.Context, jti string) (int64, error)
	ClearMFAAttempts(ctx context.Context, jti string) error

	// Single-use MFA ticket marker (Open Question #1, spec §9).
	MarkTicketUsed(ctx context.Context, jti string, ttl time.Duration) error
	IsTicketUsed(ctx context.Context, jti string) (bool, error)

	// Ephemeral opaque blobs, used by passkey ceremonies.
	SaveTempData(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetTempData(ctx context.Context, key string) ([]byte, error)
	DeleteTempData(ctx context.Context, key string) error

	// Upload session state (spec §4.8).
	CreateUploadSession(ctx context.Context, s UploadSession, ttl time.Duration) error
	GetUploadSession(ctx context.Context, id string) (*UploadSession, error)
	IncrementUploadReceivedBytes(ctx context.Context, id string, delta int64) (int64, error)
	SetUploadComplete(ctx context.Context, id string) (flipped bool, err error)
	ClearUploadComplete(ctx context.Context, id string) error
	DeleteUploadSession(ctx context.Context, id string) error
}

const uploadSessionKeyPrefix = "upload:session:"

func uploadSessionKey(id string) string { return uploadSessionKeyPrefix + id }
