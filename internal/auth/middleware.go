package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/primaria-digitala/registru/internal/platform/httpx"
)

// Identity headers that a reverse proxy may use downstream. They are
// stripped from every inbound request before classification so a
// client can never smuggle its own identity past the boundary.
var forbiddenIdentityHeaders = []string{
	"X-User-Id",
	"X-Primaria-Id",
	"X-User-Permissions",
}

// Authorizer is the per-request trust boundary. It runs ahead of every
// route except the public allow-list, verifies the session token and
// injects the Identity context consumed by all downstream handlers.
// Each request is classified independently; no per-session state is
// held in process.
type Authorizer struct {
	codec          *TokenCodec
	logger         *slog.Logger
	secure         bool
	loginURL       string
	publicExact    map[string]struct{}
	publicPrefixes []string
}

// NewAuthorizer constructs the boundary middleware.
func NewAuthorizer(codec *TokenCodec, logger *slog.Logger, secure bool) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{
		codec:    codec,
		logger:   logger,
		secure:   secure,
		loginURL: "/auth/login",
		publicExact: map[string]struct{}{
			"/healthz": {},
			"/metrics": {},
		},
		publicPrefixes: []string{"/auth/", "/static/"},
	}
}

// Middleware enforces the Unauthenticated -> Authenticated -> handler
// state machine. Invalid or missing tokens yield a structured 401 for
// API-shaped paths and a login redirect (with cookie cleanup) for page
// navigation.
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, header := range forbiddenIdentityHeaders {
			r.Header.Del(header)
		}

		if a.isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := ExtractToken(r)
		claims, err := a.codec.Verify(token)
		if err != nil {
			a.reject(w, r, err)
			return
		}

		identity := IdentityFromClaims(claims)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (a *Authorizer) reject(w http.ResponseWriter, r *http.Request, err error) {
	if isAPIPath(r.URL.Path) {
		switch {
		case errors.Is(err, ErrExpiredToken):
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sesiune expirata")
		case errors.Is(err, ErrMissingToken):
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "autentificare necesara")
		default:
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "token invalid")
		}
		return
	}
	// Page navigation: drop whatever cookie was presented and send the
	// browser to the login page.
	if !errors.Is(err, ErrMissingToken) {
		a.logger.Debug("session rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	ClearSessionCookie(w, a.secure)
	http.Redirect(w, r, a.loginURL, http.StatusSeeOther)
}

func (a *Authorizer) isPublic(path string) bool {
	if _, ok := a.publicExact[path]; ok {
		return true
	}
	for _, prefix := range a.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// ExtractToken pulls the session token from the auth cookie, falling
// back to an Authorization bearer header.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}
