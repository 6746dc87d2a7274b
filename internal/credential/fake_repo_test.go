package credential

import (
	"context"
	"sync"
	"time"

	"github.com/pixles/authcore/internal/db"
)

// fakeUserRepo is a process-memory UserRepository for tests, grounded on
// the same map+mutex idiom as sessionstore.Memory.
type fakeUserRepo struct {
	mu    sync.Mutex
	byID  map[string]*db.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]*db.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u db.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeUserRepo) GetUserByResetToken(ctx context.Context, token string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.PasswordResetToken != nil && *u.PasswordResetToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUserRepo) RecordLoginSuccess(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return nil
}

func (f *fakeUserRepo) IncrementFailedLogin(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.FailedLoginAttempts++
	return nil
}

func (f *fakeUserRepo) SetTOTPSecret(_ context.Context, userID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.TOTPSecret = &secret
	u.TOTPVerified = false
	return nil
}

func (f *fakeUserRepo) SetTOTPVerified(_ context.Context, userID string, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.TOTPVerified = verified
	return nil
}

func (f *fakeUserRepo) ClearTOTP(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.TOTPSecret = nil
	u.TOTPVerified = false
	return nil
}

func (f *fakeUserRepo) SetPasswordResetToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordResetToken = &token
	u.PasswordResetExpiresAt = &expiresAt
	return nil
}

func (f *fakeUserRepo) ClearPasswordResetToken(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordResetToken = nil
	u.PasswordResetExpiresAt = nil
	return nil
}

var _ UserRepository = (*fakeUserRepo)(nil)
