package passkey

import (
	"context"
	"sync"

	"github.com/pixles/authcore/internal/db"
)

type fakePasskeyRepo struct {
	mu    sync.Mutex
	byID  map[string]*db.Passkey
	byCID map[string]*db.Passkey
}

func newFakePasskeyRepo() *fakePasskeyRepo {
	return &fakePasskeyRepo{byID: map[string]*db.Passkey{}, byCID: map[string]*db.Passkey{}}
}

func (f *fakePasskeyRepo) CreatePasskey(_ context.Context, p db.Passkey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.byID[p.ID] = &cp
	f.byCID[string(p.CredID)] = &cp
	return nil
}

func (f *fakePasskeyRepo) ListByUser(_ context.Context, userID string) ([]db.Passkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Passkey
	for _, p := range f.byID {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePasskeyRepo) GetByCredID(_ context.Context, credID []byte) (*db.Passkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byCID[string(credID)]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePasskeyRepo) CountByUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.byID {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakePasskeyRepo) UpdateCounter(_ context.Context, id string, counter uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return db.ErrNotFound
	}
	p.Counter = counter
	return nil
}

type fakeUserRepo struct {
	mu       sync.Mutex
	byID     map[string]*db.User
	byUser   map[string]*db.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*db.User{}, byUser: map[string]*db.User{}}
}

func (f *fakeUserRepo) put(u db.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := u
	f.byID[u.ID] = &cp
	f.byUser[u.Username] = &cp
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

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byUser[username]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

var (
	_ PasskeyRepository = (*fakePasskeyRepo)(nil)
	_ UserRepository    = (*fakeUserRepo)(nil)
)
