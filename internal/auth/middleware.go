package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schooldesk/schooldesk/internal/entities"
	"github.com/schooldesk/schooldesk/internal/logger"
	"github.com/schooldesk/schooldesk/internal/metrics"
)

// ContextKeyIdentity is the gin context key holding the resolved Identity.
const ContextKeyIdentity = "auth_identity"

// Middleware resolves sessions into identities and guards protected routes.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
	}
}

// Resolve attaches an Identity to the context when the request carries a
// live session for an existing user. Expired sessions and sessions whose
// user no longer exists are destroyed and the request continues
// unauthenticated. Must run after SessionLoadSave.
func (m *Middleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		data := m.sessionManager.GetSessionData(c.Request)
		if data == nil {
			c.Next()
			return
		}

		if m.sessionManager.Expired(data) {
			m.endSession(c, "expired")
			c.Next()
			return
		}

		user, err := m.service.GetUserByID(c.Request.Context(), data.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				m.endSession(c, "orphaned")
				c.Next()
				return
			}
			log := logger.Get()
			log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("failed to resolve session user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(ContextKeyIdentity, newIdentity(user, data))
		c.Next()
	}
}

func (m *Middleware) endSession(c *gin.Context, reason string) {
	if err := m.sessionManager.DestroySession(c.Request); err != nil {
		log := logger.Get()
		log.Warn().Err(err).Str("reason", reason).Msg("failed to destroy session")
		return
	}
	metrics.SessionsEnded.WithLabelValues(reason).Inc()
}

// RequireAuth rejects requests without a resolved identity with 401.
// The wrapped handler never runs for rejected requests.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": ErrUnauthorized.Error(),
				"code":  "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// RequireRole admits only identities holding one of roles. Requests
// without an identity get 401, others with the wrong role get 403.
func (m *Middleware) RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	roleSet := make(map[entities.UserRole]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": ErrUnauthorized.Error(),
				"code":  "unauthorized",
			})
			return
		}
		if !roleSet[identity.Role()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": ErrForbidden.Error(),
				"code":  "forbidden",
			})
			return
		}
		c.Next()
	}
}

// Helper functions to extract auth data from Gin context

// GetIdentity returns the identity resolved for this request.
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return nil, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

// GetUserID returns the authenticated user's ID, or "" when anonymous.
func GetUserID(c *gin.Context) string {
	if identity, ok := GetIdentity(c); ok {
		return identity.ID()
	}
	return ""
}

// GetUserRole returns the authenticated user's role, or "" when anonymous.
func GetUserRole(c *gin.Context) entities.UserRole {
	if identity, ok := GetIdentity(c); ok {
		return identity.Role()
	}
	return ""
}

// IsAuthenticated returns true if the request is authenticated.
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetIdentity(c)
	return ok
}
