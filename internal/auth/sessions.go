package auth

import (
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/schooldesk/schooldesk/internal/config"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "sid"

// Session data keys
const (
	SessionKeyUserID     = "user_id"
	SessionKeyProvider   = "provider"
	SessionKeyLoginAt    = "login_at"
	SessionKeyExpiresAt  = "expires_at"
	SessionKeyClaims     = "claims"
	SessionKeyIDToken    = "id_token"
	SessionKeyOAuthState = "oauth_state"
	SessionKeyOAuthNonce = "oauth_nonce"
)

// Provider records which login flow established a session.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderOIDC  Provider = "oidc"
)

func init() {
	// Register types that will be stored in sessions
	gob.Register(Provider(""))
	gob.Register(time.Time{})
	gob.Register(map[string]string{})
}

// SessionManager wraps scs.SessionManager with application-specific methods.
//
// Sessions use a fixed window: expires_at is written once at login and
// never extended by later requests.
type SessionManager struct {
	*scs.SessionManager
	lifetime time.Duration
	now      func() time.Time
}

// NewSessionManager creates a configured session manager on top of store.
func NewSessionManager(store scs.Store, cfg config.Auth) *SessionManager {
	sm := scs.New()
	sm.Store = store

	// Fixed window: no idle timeout, so activity never moves the deadline.
	sm.Lifetime = cfg.SessionLifetime
	sm.IdleTimeout = 0

	sm.Cookie.Name = SessionCookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	// Lax rather than Strict so the identity provider's redirect back to
	// /api/callback still carries the cookie holding state and nonce.
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true

	return &SessionManager{
		SessionManager: sm,
		lifetime:       cfg.SessionLifetime,
		now:            time.Now,
	}
}

// SetClock replaces the clock used for expiry decisions.
func (sm *SessionManager) SetClock(now func() time.Time) {
	sm.now = now
}

// Lifetime returns the fixed session window.
func (sm *SessionManager) Lifetime() time.Duration {
	return sm.lifetime
}

// SessionData holds the session information for a request.
type SessionData struct {
	UserID    string
	Provider  Provider
	LoginAt   time.Time
	ExpiresAt time.Time
	Claims    map[string]string
	IDToken   string
}

// CreateSession starts a session for an authenticated user. The token is
// renewed first to prevent session fixation; LoginAt and ExpiresAt are
// set from the session clock and any values on data are ignored.
func (sm *SessionManager) CreateSession(r *http.Request, data SessionData) error {
	ctx := r.Context()
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}

	now := sm.now()

	sm.Put(ctx, SessionKeyUserID, data.UserID)
	sm.Put(ctx, SessionKeyProvider, data.Provider)
	sm.Put(ctx, SessionKeyLoginAt, now)
	sm.Put(ctx, SessionKeyExpiresAt, now.Add(sm.lifetime))
	if len(data.Claims) > 0 {
		sm.Put(ctx, SessionKeyClaims, data.Claims)
	}
	if data.IDToken != "" {
		sm.Put(ctx, SessionKeyIDToken, data.IDToken)
	}
	sm.Remove(ctx, SessionKeyOAuthState)
	sm.Remove(ctx, SessionKeyOAuthNonce)

	return nil
}

// DestroySession removes all session data and invalidates the session.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// GetSessionData retrieves all session data at once.
// Returns nil when the session carries no user.
func (sm *SessionManager) GetSessionData(r *http.Request) *SessionData {
	ctx := r.Context()
	userID := sm.GetString(ctx, SessionKeyUserID)
	if userID == "" {
		return nil
	}

	provider, _ := sm.Get(ctx, SessionKeyProvider).(Provider)
	claims, _ := sm.Get(ctx, SessionKeyClaims).(map[string]string)

	return &SessionData{
		UserID:    userID,
		Provider:  provider,
		LoginAt:   sm.GetTime(ctx, SessionKeyLoginAt),
		ExpiresAt: sm.GetTime(ctx, SessionKeyExpiresAt),
		Claims:    claims,
		IDToken:   sm.GetString(ctx, SessionKeyIDToken),
	}
}

// Expired reports whether the session window has closed. A session
// without an expiry timestamp is treated as expired.
func (sm *SessionManager) Expired(data *SessionData) bool {
	if data.ExpiresAt.IsZero() {
		return true
	}
	return !sm.now().Before(data.ExpiresAt)
}

// PutLoginState stores the state and nonce for a pending hosted login.
func (sm *SessionManager) PutLoginState(r *http.Request, state, nonce string) {
	sm.Put(r.Context(), SessionKeyOAuthState, state)
	sm.Put(r.Context(), SessionKeyOAuthNonce, nonce)
}

// PopLoginState returns and clears the pending hosted-login state and nonce.
func (sm *SessionManager) PopLoginState(r *http.Request) (state, nonce string) {
	return sm.PopString(r.Context(), SessionKeyOAuthState), sm.PopString(r.Context(), SessionKeyOAuthNonce)
}
