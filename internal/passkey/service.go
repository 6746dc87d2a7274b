// Package passkey implements C7: WebAuthn registration and authentication
// ceremonies (spec §4.7), grounded on the teacher's narrow external-service
// wrapper shape (shared/repository's thin collaborator interfaces) and
// built on github.com/go-webauthn/webauthn, the host-provided library the
// spec calls for. The library's SessionData is treated as the opaque state
// object the spec describes: the service serializes it into the session
// store's ephemeral blob channel and never inspects it beyond that.
package passkey

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/pixles/authcore/internal/apierr"
	"github.com/pixles/authcore/internal/db"
	"github.com/pixles/authcore/internal/sessionstore"
)

const ceremonyStateTTL = 5 * time.Minute

const (
	regStateKeyPrefix  = "passkey_reg:"
	authStateKeyPrefix = "passkey_auth:"
)

// PasskeyRepository is the subset of *db.PasskeysRepo this package depends
// on, narrowed for test substitution.
type PasskeyRepository interface {
	CreatePasskey(ctx context.Context, p db.Passkey) error
	ListByUser(ctx context.Context, userID string) ([]db.Passkey, error)
	GetByCredID(ctx context.Context, credID []byte) (*db.Passkey, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	UpdateCounter(ctx context.Context, id string, counter uint32) error
}

// UserRepository is the subset of *db.UsersRepo this package depends on.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*db.User, error)
	GetUserByUsername(ctx context.Context, username string) (*db.User, error)
}

type Service struct {
	wa         *webauthn.WebAuthn
	store      sessionstore.Store
	passkeys   PasskeyRepository
	users      UserRepository
	maxPerUser int
}

func NewService(cfg *webauthn.Config, store sessionstore.Store, passkeys PasskeyRepository, users UserRepository, maxPerUser int) (*Service, error) {
	wa, err := webauthn.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{wa: wa, store: store, passkeys: passkeys, users: users, maxPerUser: maxPerUser}, nil
}

func (s *Service) loadWebauthnUser(ctx context.Context, userID string) (*webauthnUser, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apierr.New(apierr.KindUserNotFound, "user not found")
	}
	pks, err := s.passkeys.ListByUser(ctx, userID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return &webauthnUser{user: *u, passkeys: pks}, nil
}

// BeginRegistration implements spec §4.7 step 1: enforce the passkey-count
// invariant, ask the library for a creation challenge, persist the
// resulting session data under an ephemeral nonce key.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (nonce string, creation *protocol.CredentialCreation, err error) {
	n, err := s.passkeys.CountByUser(ctx, userID)
	if err != nil {
		return "", nil, apierr.Internal(err)
	}
	if n >= s.maxPerUser {
		return "", nil, apierr.New(apierr.KindLimitReached, "maximum passkeys reached")
	}

	waUser, err := s.loadWebauthnUser(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	creation, sessionData, err := s.wa.BeginRegistration(waUser)
	if err != nil {
		return "", nil, apierr.New(apierr.KindRegistrationFailed, err.Error())
	}

	nonce = uuid.NewString()
	if err := s.saveState(ctx, regStateKeyPrefix+nonce, sessionData); err != nil {
		return "", nil, apierr.Internal(err)
	}
	return nonce, creation, nil
}

// FinishRegistration implements spec §4.7 step 2: read-then-delete the
// ephemeral state, ask the library to finalize, persist the new credential.
func (s *Service) FinishRegistration(ctx context.Context, userID, nonce, name string, r *http.Request) (*db.Passkey, error) {
	sessionData, err := s.consumeState(ctx, regStateKeyPrefix+nonce)
	if err != nil {
		return nil, err
	}
	if sessionData == nil {
		return nil, apierr.New(apierr.KindRegistrationFailed, "Missing registration session")
	}

	waUser, err := s.loadWebauthnUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cred, err := s.wa.FinishRegistration(waUser, *sessionData, r)
	if err != nil {
		return nil, apierr.New(apierr.KindRegistrationFailed, err.Error())
	}

	var aaguid *string
	if len(cred.Authenticator.AAGUID) > 0 {
		hexID := hex.EncodeToString(cred.Authenticator.AAGUID)
		aaguid = &hexID
	}

	p := db.NewPasskey(userID, cred.ID, cred.PublicKey, name, cred.Flags.BackupEligible, cred.Flags.BackupState, aaguid)
	if err := s.passkeys.CreatePasskey(ctx, p); err != nil {
		return nil, apierr.Internal(err)
	}
	return &p, nil
}

// BeginAuthentication implements spec §4.7 step, mirror side. A blank
// username selects the discoverable-credential (usernameless) flow.
func (s *Service) BeginAuthentication(ctx context.Context, username string) (nonce string, assertion *protocol.CredentialAssertion, err error) {
	var sessionData *webauthn.SessionData
	if username == "" {
		assertion, sessionData, err = s.wa.BeginDiscoverableLogin()
		if err != nil {
			return "", nil, apierr.New(apierr.KindInvalidCredential, err.Error())
		}
	} else {
		u, lookupErr := s.users.GetUserByUsername(ctx, username)
		if lookupErr != nil {
			return "", nil, apierr.New(apierr.KindInvalidCredential, "unknown credential")
		}
		waUser, loadErr := s.loadWebauthnUser(ctx, u.ID)
		if loadErr != nil {
			return "", nil, loadErr
		}
		assertion, sessionData, err = s.wa.BeginLogin(waUser)
		if err != nil {
			return "", nil, apierr.New(apierr.KindInvalidCredential, err.Error())
		}
	}

	nonce = uuid.NewString()
	if err := s.saveState(ctx, authStateKeyPrefix+nonce, sessionData); err != nil {
		return "", nil, apierr.Internal(err)
	}
	return nonce, assertion, nil
}

// FinishAuthentication implements spec §4.7 mirror finish: verify, bump the
// credential's monotonic counter, return the owning user id. A replayed
// finish call (same nonce twice) fails because the ephemeral state was
// already consumed on the first call.
func (s *Service) FinishAuthentication(ctx context.Context, nonce string, r *http.Request) (string, error) {
	sessionData, err := s.consumeState(ctx, authStateKeyPrefix+nonce)
	if err != nil {
		return "", err
	}
	if sessionData == nil {
		return "", apierr.New(apierr.KindInvalidCredential, "Missing authentication session")
	}

	var cred *webauthn.Credential
	var userID string

	if len(sessionData.UserID) == 0 {
		handler := func(rawID, userHandle []byte) (webauthn.User, error) {
			pk, err := s.passkeys.GetByCredID(ctx, rawID)
			if err != nil {
				return nil, apierr.New(apierr.KindInvalidCredential, "unknown credential")
			}
			waUser, err := s.loadWebauthnUser(ctx, pk.UserID)
			if err != nil {
				return nil, err
			}
			userID = pk.UserID
			return waUser, nil
		}
		cred, err = s.wa.FinishDiscoverableLogin(handler, *sessionData, r)
	} else {
		waUser, loadErr := s.loadWebauthnUser(ctx, string(sessionData.UserID))
		if loadErr != nil {
			return "", loadErr
		}
		userID = waUser.user.ID
		cred, err = s.wa.FinishLogin(waUser, *sessionData, r)
	}
	if err != nil {
		return "", apierr.New(apierr.KindInvalidCredential, err.Error())
	}

	pk, lookupErr := s.passkeys.GetByCredID(ctx, cred.ID)
	if lookupErr == nil && pk != nil {
		if updErr := s.passkeys.UpdateCounter(ctx, pk.ID, cred.Authenticator.SignCount); updErr != nil {
			return "", apierr.Internal(updErr)
		}
	}

	return userID, nil
}

func (s *Service) saveState(ctx context.Context, key string, sessionData *webauthn.SessionData) error {
	data, err := json.Marshal(sessionData)
	if err != nil {
		return err
	}
	return s.store.SaveTempData(ctx, key, data, ceremonyStateTTL)
}

// consumeState reads then deletes the ephemeral ceremony blob, returning
// (nil, nil) if it was never set or already consumed.
func (s *Service) consumeState(ctx context.Context, key string) (*webauthn.SessionData, error) {
	data, err := s.store.GetTempData(ctx, key)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if data == nil {
		return nil, nil
	}
	if err := s.store.DeleteTempData(ctx, key); err != nil {
		return nil, apierr.Internal(err)
	}
	var sessionData webauthn.SessionData
	if err := json.Unmarshal(data, &sessionData); err != nil {
		return nil, apierr.Internal(err)
	}
	return &sessionData, nil
}
