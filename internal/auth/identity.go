package auth

import "github.com/schooldesk/schooldesk/internal/entities"

// Identity is the authenticated principal attached to a request. Handlers
// read it the same way whichever login flow created the session.
type Identity interface {
	ID() string
	Email() string
	Role() entities.UserRole
	Provider() Provider
	// User returns the stored account without its password hash.
	User() *entities.User
}

// LocalIdentity is a user who signed in with email and password.
type LocalIdentity struct {
	user *entities.User
}

func (i *LocalIdentity) ID() string              { return i.user.ID }
func (i *LocalIdentity) Email() string           { return i.user.EmailAddress() }
func (i *LocalIdentity) Role() entities.UserRole { return i.user.Role }
func (i *LocalIdentity) Provider() Provider      { return ProviderLocal }
func (i *LocalIdentity) User() *entities.User    { return i.user }

// HostedIdentity is a user who signed in through the OpenID provider.
type HostedIdentity struct {
	user    *entities.User
	claims  map[string]string
	idToken string
}

func (i *HostedIdentity) ID() string              { return i.user.ID }
func (i *HostedIdentity) Role() entities.UserRole { return i.user.Role }
func (i *HostedIdentity) Provider() Provider      { return ProviderOIDC }
func (i *HostedIdentity) User() *entities.User    { return i.user }

// Email prefers the stored address and falls back to the token claim.
func (i *HostedIdentity) Email() string {
	if email := i.user.EmailAddress(); email != "" {
		return email
	}
	return i.claims["email"]
}

// Claims returns the ID token claims captured at login.
func (i *HostedIdentity) Claims() map[string]string {
	return i.claims
}

// IDToken returns the raw ID token, used as a logout hint.
func (i *HostedIdentity) IDToken() string {
	return i.idToken
}

// newIdentity builds the concrete identity for a resolved session.
func newIdentity(user *entities.User, data *SessionData) Identity {
	user = user.Sanitized()
	if data.Provider == ProviderOIDC {
		return &HostedIdentity{user: user, claims: data.Claims, idToken: data.IDToken}
	}
	return &LocalIdentity{user: user}
}
