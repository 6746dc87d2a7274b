package handler

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pixles/authcore/internal/credential"
	"github.com/pixles/authcore/internal/db"
	"github.com/pixles/authcore/internal/refresh"
	"github.com/pixles/authcore/internal/reqctx"
	"github.com/pixles/authcore/internal/sessionstore"
	"github.com/pixles/authcore/internal/svc"
	"github.com/pixles/authcore/internal/tokencodec"
)

// fakeUsers is a process-memory double for credential.UserRepository, the
// same role services/microservices/auth/rpc's in-memory test repos play in
// the teacher's own logic tests.
type fakeUsers struct {
	mu         sync.Mutex
	byID       map[string]db.User
	byEmail    map[string]string // normalized email -> id
	byUsername map[string]string
	byReset    map[string]string // token -> id
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:       map[string]db.User{},
		byEmail:    map[string]string{},
		byUsername: map[string]string{},
		byReset:    map[string]string{},
	}
}

func (f *fakeUsers) CreateUser(ctx context.Context, u db.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u.ID
	f.byUsername[u.Username] = u.ID
	return nil
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok {
		return nil, db.ErrNotFound
	}
	u := f.byID[id]
	return &u, nil
}

func (f *fakeUsers) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byUsername[username]
	if !ok {
		return nil, db.ErrNotFound
	}
	u := f.byID[id]
	return &u, nil
}

func (f *fakeUsers) GetUserByResetToken(ctx context.Context, token string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byReset[token]
	if !ok {
		return nil, db.ErrNotFound
	}
	u := f.byID[id]
	return &u, nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) RecordLoginSuccess(ctx context.Context, userID string) error { return nil }
func (f *fakeUsers) IncrementFailedLogin(ctx context.Context, userID string) error { return nil }

func (f *fakeUsers) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.TOTPSecret = &secret
	u.TOTPVerified = false
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) SetTOTPVerified(ctx context.Context, userID string, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.TOTPVerified = verified
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) ClearTOTP(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.TOTPSecret = nil
	u.TOTPVerified = false
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) SetPasswordResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordResetToken = &token
	u.PasswordResetExpiresAt = &expiresAt
	f.byID[userID] = u
	f.byReset[token] = userID
	return nil
}

func (f *fakeUsers) ClearPasswordResetToken(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	if u.PasswordResetToken != nil {
		delete(f.byReset, *u.PasswordResetToken)
	}
	u.PasswordResetToken = nil
	u.PasswordResetExpiresAt = nil
	f.byID[userID] = u
	return nil
}

// testHarness bundles a ServiceContext built from in-memory/fake
// collaborators with the repository double so tests can seed users
// directly, and the codec so tests can mint bearer tokens without going
// through a login call.
type testHarness struct {
	svcCtx *svc.ServiceContext
	users  *fakeUsers
	codec  *tokencodec.Codec
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	codec := tokencodec.NewCodec(priv, "pixles-test")

	store := sessionstore.NewMemory()
	users := newFakeUsers()

	credSvc := credential.NewService(codec, store, users, nil, "pixles-test",
		time.Hour, 30*24*time.Hour, 5*time.Minute, 0, 3)
	rotator := refresh.NewRotator(codec, store, credSvc)

	return &testHarness{
		svcCtx: &svc.ServiceContext{
			Codec:      codec,
			Store:      store,
			Credential: credSvc,
			Refresh:    rotator,
			Resolver:   reqctx.NewResolver(codec),
		},
		users: users,
		codec: codec,
	}
}

// seedUser inserts a user directly, bypassing Register, and returns it.
func (h *testHarness) seedUser(t *testing.T, username, email, name, passwordHash string) db.User {
	t.Helper()
	u := db.NewUser(username, email, name, passwordHash)
	require.NoError(t, h.users.CreateUser(context.Background(), u))
	return u
}

// bearerFor mints a fresh access token for userID and returns the
// "Bearer <token>" header value.
func (h *testHarness) bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := h.codec.EncodeAccessToken(userID, tokencodec.RoleUser, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, target, nil)
	} else {
		buf, _ := json.Marshal(body)
		r = httptest.NewRequest(method, target, bytes.NewReader(buf))
	}
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

// withPrincipal simulates what requireAuth would have attached to the
// request context, for handler tests that exercise a protected endpoint
// directly without routing through the middleware.
func withPrincipal(r *http.Request, p reqctx.Principal) *http.Request {
	return r.WithContext(reqctx.WithPrincipal(r.Context(), p))
}

// testCtx is a plain background context for tests that call a domain service
// directly (to seed state) rather than through a handler.
func testCtx() context.Context { return context.Background() }

func credentialMeta() credential.RequestMeta {
	return credential.RequestMeta{UserAgent: "test-agent", IPAddress: "127.0.0.1"}
}
