// Package auth provides authentication and authorization for the API.
//
// It supports two authentication modes, selected once at startup:
//   - "local": email and password checked against the users table (default)
//   - "oidc": redirect-based login against a hosted OpenID provider (see the oidc subpackage)
//
// Both modes end in the same place: a server-side session holding the
// user ID and a fixed expiry, carried by the "sid" cookie. Sessions are
// never extended by activity.
//
// # Configuration
//
//	AUTH_MODE=local               # or oidc
//	AUTH_SESSION_LIFETIME=168h    # fixed session window
//	AUTH_SECURE_COOKIES=true      # HTTPS-only cookies
//	AUTH_MAX_LOGIN_ATTEMPTS=5     # failures before lockout
//
// # Usage
//
// Wire the pieces in the entrypoint:
//
//	service := auth.NewService(users.NewRepository(db), cfg.Auth)
//	sessions := auth.NewSessionManager(store, cfg.Auth)
//	mw := auth.NewMiddleware(service, sessions)
//	router.Use(sessions.SessionLoadSave(), mw.Resolve())
//	api.GET("/auth/user", mw.RequireAuth(), handler)
//
// Read the caller in handlers:
//
//	identity, ok := auth.GetIdentity(c)
package auth
