// Package svc wires every component into a single ServiceContext, grounded
// on services/gateway/services/auth/rpc/internal/svc/serviceContext.go's
// shape (config in, concrete collaborators out) and
// services/gateway/api/internal/svc/serviceContext.go's pattern of also
// building the auth middleware here so handlers stay thin.
package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pixles/authcore/internal/config"
	"github.com/pixles/authcore/internal/credential"
	"github.com/pixles/authcore/internal/db"
	"github.com/pixles/authcore/internal/mediaprobe"
	"github.com/pixles/authcore/internal/passkey"
	"github.com/pixles/authcore/internal/refresh"
	"github.com/pixles/authcore/internal/reqctx"
	"github.com/pixles/authcore/internal/sessionstore"
	"github.com/pixles/authcore/internal/tokencodec"
	"github.com/pixles/authcore/internal/upload"
)

// ServiceContext holds every wired collaborator handlers depend on.
type ServiceContext struct {
	Config config.Config

	Codec      *tokencodec.Codec
	Store      sessionstore.Store
	Credential *credential.Service
	Refresh    *refresh.Rotator
	Passkey    *passkey.Service
	UploadState *upload.StateManager
	Finalizer  *upload.Finalizer
	Resolver   *reqctx.Resolver
}

// NewServiceContext builds every collaborator from c. It returns an error
// on misconfiguration or a collaborator that fails to construct, and the
// caller (cmd/authsvc) exits the process on that error at startup.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	signingKey, err := tokencodec.ParseSigningKeyPKCS8(c.ED25519SigningKey)
	if err != nil {
		return nil, fmt.Errorf("svc: parse signing key: %w", err)
	}
	codec := tokencodec.NewCodec(signingKey, c.Issuer)

	store, err := sessionstore.NewRedisFromURL(context.Background(), c.KVURL)
	if err != nil {
		return nil, fmt.Errorf("svc: connect kv: %w", err)
	}

	dbh, err := sqlx.Open("postgres", c.Database.DataSource)
	if err != nil {
		return nil, fmt.Errorf("svc: open database: %w", err)
	}
	dbh.SetMaxOpenConns(25)
	dbh.SetConnMaxLifetime(5 * time.Minute)
	base := db.NewBaseRepository(dbh)
	users := db.NewUsersRepo(base)
	passkeys := db.NewPasskeysRepo(base)
	assets := db.NewAssetsRepo(base)

	credSvc := credential.NewService(codec, store, users, nil, c.Issuer,
		c.AccessTokenTTL(), c.RefreshTokenTTL(), c.MFATicketTTL(), c.MinResetOpDuration(), c.MFAMaxAttempts)
	rotator := refresh.NewRotator(codec, store, credSvc)

	waCfg := &webauthn.Config{
		RPDisplayName: c.WebAuthn.RPName,
		RPID:          c.WebAuthn.RPID,
		RPOrigins:     []string{c.WebAuthn.RPOrigin},
	}
	pkSvc, err := passkey.NewService(waCfg, store, passkeys, users, c.Upload.MaxPasskeysPerUser)
	if err != nil {
		return nil, fmt.Errorf("svc: build passkey service: %w", err)
	}

	stateMgr := upload.NewStateManager(store, c.Upload.Dir, c.Upload.MaxFileSize)
	finalizer := upload.NewFinalizer(stateMgr, store, assets, mediaprobe.Default{})

	return &ServiceContext{
		Config:      c,
		Codec:       codec,
		Store:       store,
		Credential:  credSvc,
		Refresh:     rotator,
		Passkey:     pkSvc,
		UploadState: stateMgr,
		Finalizer:   finalizer,
		Resolver:    reqctx.NewResolver(codec),
	}, nil
}
