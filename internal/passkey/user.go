package passkey

import (
	"encoding/hex"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/pixles/authcore/internal/db"
)

// webauthnUser adapts a db.User and its db.Passkey rows to the
// webauthn.User interface the library requires for ceremonies.
type webauthnUser struct {
	user     db.User
	passkeys []db.Passkey
}

func (u *webauthnUser) WebAuthnID() []byte          { return []byte(u.user.ID) }
func (u *webauthnUser) WebAuthnName() string        { return u.user.Username }
func (u *webauthnUser) WebAuthnDisplayName() string { return u.user.Name }
func (u *webauthnUser) WebAuthnIcon() string        { return "" }

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(u.passkeys))
	for _, p := range u.passkeys {
		var aaguid []byte
		if p.AAGUID != nil {
			if b, err := hex.DecodeString(*p.AAGUID); err == nil {
				aaguid = b
			}
		}
		out = append(out, webauthn.Credential{
			ID:        p.CredID,
			PublicKey: p.PublicKey,
			Authenticator: webauthn.Authenticator{
				AAGUID:    aaguid,
				SignCount: p.Counter,
			},
		})
	}
	return out
}

var _ webauthn.User = (*webauthnUser)(nil)
