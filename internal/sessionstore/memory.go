package sessionstore

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-memory Store for tests, grounded on
// pkg/gourdiantoken-master/gourdiantoken.repository.inmemory.imp.go's
// mutex-guarded map-of-entries pattern.
type Memory struct {
	mu sync.Mutex

	sessions  map[string]entry[Session]
	userIdx   map[string]map[string]struct{} // userID -> set of sid
	mfaCounts map[string]entry[int64]
	usedTicks map[string]entry[struct{}]
	blobs     map[string]entry[[]byte]
	uploads   map[string]entry[UploadSession]
}

type entry[T any] struct {
	value     T
	expiresAt time.Time // zero means no expiry
}

func (e entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]entry[Session]),
		userIdx:   make(map[string]map[string]struct{}),
		mfaCounts: make(map[string]entry[int64]),
		usedTicks: make(map[string]entry[struct{}]),
		blobs:     make(map[string]entry[[]byte]),
		uploads:   make(map[string]entry[UploadSession]),
	}
}

func expiryFor(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func (m *Memory) SaveSession(_ context.Context, sid string, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sid] = entry[Session]{value: s, expiresAt: expiryFor(ttl)}
	return nil
}

func (m *Memory) GetSession(_ context.Context, sid string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sid]
	if !ok || e.expired(time.Now()) {
		return nil, nil
	}
	s := e.value
	return &s, nil
}

func (m *Memory) DeleteSession(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sid)
	return nil
}

func (m *Memory) AddUserSession(_ context.Context, userID, sid string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.userIdx[userID]
	if !ok {
		set = make(map[string]struct{})
		m.userIdx[userID] = set
	}
	set[sid] = struct{}{}
	return nil
}

func (m *Memory) GetUserSessions(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.userIdx[userID]
	out := make([]string, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out, nil
}

func (m *Memory) DeleteUserSessionsKey(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userIdx, userID)
	return nil
}

func (m *Memory) IncrementMFAAttempt(_ context.Context, jti string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.mfaCounts[jti]
	if !ok || e.expired(time.Now()) {
		e = entry[int64]{value: 0, expiresAt: expiryFor(ttl)}
	}
	e.value++
	m.mfaCounts[jti] = e
	return e.value, nil
}

func (m *Memory) GetMFAAttempts(_ context.Context, jti string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.mfaCounts[jti]
	if !ok || e.expired(time.Now()) {
		return 0, nil
	}
	return e.value, nil
}

func (m *Memory) ClearMFAAttempts(_ context.Context, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mfaCounts, jti)
	return nil
}

func (m *Memory) MarkTicketUsed(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usedTicks[jti] = entry[struct{}]{value: struct{}{}, expiresAt: expiryFor(ttl)}
	return nil
}

func (m *Memory) IsTicketUsed(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.usedTicks[jti]
	if !ok || e.expired(time.Now()) {
		return false, nil
	}
	return true, nil
}

func (m *Memory) SaveTempData(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), value...)
	m.blobs[key] = entry[[]byte]{value: cp, expiresAt: expiryFor(ttl)}
	return nil
}

func (m *Memory) GetTempData(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.blobs[key]
	if !ok || e.expired(time.Now()) {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) DeleteTempData(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *Memory) CreateUploadSession(_ context.Context, s UploadSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[s.ID] = entry[UploadSession]{value: s, expiresAt: expiryFor(ttl)}
	return nil
}

func (m *Memory) GetUploadSession(_ context.Context, id string) (*UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.uploads[id]
	if !ok || e.expired(time.Now()) {
		return nil, nil
	}
	s := e.value
	return &s, nil
}

func (m *Memory) IncrementUploadReceivedBytes(_ context.Context, id string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.uploads[id]
	if !ok || e.expired(time.Now()) {
		return 0, ErrNotFound
	}
	e.value.ReceivedBytes += delta
	m.uploads[id] = e
	return e.value.ReceivedBytes, nil
}

func (m *Memory) SetUploadComplete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.uploads[id]
	if !ok || e.expired(time.Now()) {
		return false, ErrNotFound
	}
	if e.value.IsComplete {
		return false, nil
	}
	e.value.IsComplete = true
	m.uploads[id] = e
	return true, nil
}

// ClearUploadComplete un-flips is_complete, releasing a session a finalize
// attempt claimed but failed to finish so a retry can claim it again.
func (m *Memory) ClearUploadComplete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.uploads[id]
	if !ok || e.expired(time.Now()) {
		return nil
	}
	e.value.IsComplete = false
	m.uploads[id] = e
	return nil
}

func (m *Memory) DeleteUploadSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, id)
	return nil
}

var _ Store = (*Memory)(nil)
