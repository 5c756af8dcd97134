package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schooldesk/schooldesk/internal/auth"
	"github.com/schooldesk/schooldesk/internal/auth/oidc"
	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/logger"
	"github.com/schooldesk/schooldesk/internal/metrics"
)

// AuthController serves the local credential endpoints and the routes
// shared by both auth modes.
type AuthController struct {
	service  *auth.Service
	sessions *auth.SessionManager
	limiter  *auth.RateLimiter
	config   config.Auth
}

func NewAuthController(service *auth.Service, sessions *auth.SessionManager, limiter *auth.RateLimiter, cfg config.Auth) *AuthController {
	return &AuthController{
		service:  service,
		sessions: sessions,
		limiter:  limiter,
		config:   cfg,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4"`
}

// Login verifies email and password and starts a session.
// POST /api/login
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		metrics.LoginAttempts.WithLabelValues(string(auth.ProviderLocal), "invalid_request").Inc()
		return
	}

	ip := c.ClientIP()
	if ac.limiter != nil {
		if err := ac.limiter.Check(ip, req.Email); err != nil {
			metrics.LoginAttempts.WithLabelValues(string(auth.ProviderLocal), "throttled").Inc()
			respondError(c, err)
			return
		}
	}

	log := logger.Get()
	user, err := ac.service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues(string(auth.ProviderLocal), "invalid_credentials").Inc()
			if ac.limiter != nil {
				if locked, d := ac.limiter.RecordFailure(ip, req.Email); locked {
					log.Warn().Str("ip", ip).Dur("lockout", d).Msg("login locked out after repeated failures")
				}
			}
		} else {
			metrics.LoginAttempts.WithLabelValues(string(auth.ProviderLocal), "error").Inc()
		}
		respondError(c, err)
		return
	}

	if ac.limiter != nil {
		ac.limiter.RecordSuccess(ip, req.Email)
	}

	if err := ac.sessions.CreateSession(c.Request, auth.SessionData{
		UserID:   user.ID,
		Provider: auth.ProviderLocal,
	}); err != nil {
		metrics.LoginAttempts.WithLabelValues(string(auth.ProviderLocal), "error").Inc()
		respondInternalError(c, err, "create session")
		return
	}

	metrics.LoginAttempts.WithLabelValues(string(auth.ProviderLocal), "success").Inc()
	metrics.SessionsCreated.WithLabelValues(string(auth.ProviderLocal)).Inc()
	log.Info().Str("user_id", user.ID).Msg("user logged in")

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// Logout destroys the current session. Logging out without a session
// also succeeds.
// GET /api/logout
func (ac *AuthController) Logout(c *gin.Context) {
	userID := auth.GetUserID(c)

	if err := ac.sessions.DestroySession(c.Request); err != nil {
		respondInternalError(c, err, "destroy session")
		return
	}
	if userID != "" {
		metrics.SessionsEnded.WithLabelValues("logout").Inc()
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// User returns the authenticated account without its password hash.
// GET /api/auth/user
func (ac *AuthController) User(c *gin.Context) {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		respondError(c, auth.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, identity.User())
}

// Mode reports which login flow the server runs.
// GET /api/auth/mode
func (ac *AuthController) Mode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isLocal": ac.config.IsLocal()})
}

// HostedProvider is the redirect-based identity provider used when
// AUTH_MODE=oidc. Implemented by oidc.Provider.
type HostedProvider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (*oidc.Claims, string, error)
	LogoutURL(idToken, postLogoutRedirect string) string
}

var _ HostedProvider = (*oidc.Provider)(nil)

// HostedAuthController drives the hosted login, callback and logout redirects.
type HostedAuthController struct {
	provider           HostedProvider
	service            *auth.Service
	sessions           *auth.SessionManager
	postLogoutRedirect string
}

func NewHostedAuthController(provider HostedProvider, service *auth.Service, sessions *auth.SessionManager, postLogoutRedirect string) *HostedAuthController {
	return &HostedAuthController{
		provider:           provider,
		service:            service,
		sessions:           sessions,
		postLogoutRedirect: postLogoutRedirect,
	}
}

// Login stores a fresh state and nonce and redirects to the provider.
// GET /api/login
func (hc *HostedAuthController) Login(c *gin.Context) {
	state, err := oidc.RandomToken()
	if err != nil {
		respondInternalError(c, err, "generate state")
		return
	}
	nonce, err := oidc.RandomToken()
	if err != nil {
		respondInternalError(c, err, "generate nonce")
		return
	}

	hc.sessions.PutLoginState(c.Request, state, nonce)
	c.Redirect(http.StatusFound, hc.provider.AuthCodeURL(state, nonce))
}

// Callback completes the code flow, upserts the account and starts a session.
// GET /api/callback
func (hc *HostedAuthController) Callback(c *gin.Context) {
	log := logger.Get()
	wantState, nonce := hc.sessions.PopLoginState(c.Request)

	if providerErr := c.Query("error"); providerErr != "" {
		log.Warn().Str("error", providerErr).Str("description", c.Query("error_description")).Msg("identity provider returned an error")
		metrics.LoginAttempts.WithLabelValues(string(auth.ProviderOIDC), "provider_error").Inc()
		respondError(c, auth.ErrUnauthorized)
		return
	}

	gotState := c.Query("state")
	if wantState == "" || subtle.ConstantTimeCompare([]byte(gotState), []byte(wantState)) != 1 {
		metrics.LoginAttempts.WithLabelValues(string(auth.ProviderOIDC), "state_mismatch").Inc()
		respondError(c, auth.ErrStateMismatch)
		return
	}

	claims, idToken, err := hc.provider.Exchange(c.Request.Context(), c.Query("code"), nonce)
	if err != nil {
		log.Warn().Err(err).Msg("hosted login exchange failed")
		metrics.LoginAttempts.WithLabelValues(string(auth.ProviderOIDC), "invalid_credentials").Inc()
		respondError(c, auth.ErrUnauthorized)
		return
	}

	user, err := hc.service.UpsertHostedUser(c.Request.Context(), auth.HostedProfile{
		Subject:         claims.Subject,
		Email:           claims.Email,
		FirstName:       claims.FirstName,
		LastName:        claims.LastName,
		ProfileImageURL: claims.ProfileImageURL,
	})
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(string(auth.ProviderOIDC), "error").Inc()
		respondError(c, err)
		return
	}

	if err := hc.sessions.CreateSession(c.Request, auth.SessionData{
		UserID:   user.ID,
		Provider: auth.ProviderOIDC,
		Claims:   claims.Map(),
		IDToken:  idToken,
	}); err != nil {
		metrics.LoginAttempts.WithLabelValues(string(auth.ProviderOIDC), "error").Inc()
		respondInternalError(c, err, "create session")
		return
	}

	metrics.LoginAttempts.WithLabelValues(string(auth.ProviderOIDC), "success").Inc()
	metrics.SessionsCreated.WithLabelValues(string(auth.ProviderOIDC)).Inc()
	log.Info().Str("user_id", user.ID).Msg("user logged in via identity provider")

	c.Redirect(http.StatusFound, "/")
}

// Logout destroys the session and redirects to the provider's end-session
// endpoint, or to "/" when the provider has none.
// GET /api/logout
func (hc *HostedAuthController) Logout(c *gin.Context) {
	var idToken string
	identity, ok := auth.GetIdentity(c)
	if ok {
		if hosted, isHosted := identity.(*auth.HostedIdentity); isHosted {
			idToken = hosted.IDToken()
		}
	}

	if err := hc.sessions.DestroySession(c.Request); err != nil {
		respondInternalError(c, err, "destroy session")
		return
	}
	if ok {
		metrics.SessionsEnded.WithLabelValues("logout").Inc()
	}

	target := hc.provider.LogoutURL(idToken, hc.postLogoutRedirect)
	if target == "" {
		target = "/"
	}
	c.Redirect(http.StatusFound, target)
}
