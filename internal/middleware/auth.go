package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/auth"
	"github.com/sirupsen/logrus"
)

// AuthCookie is the cookie carrying the session token.
const AuthCookie = "auth_token"

// Verifier checks a session token and returns the user id it was issued to.
type Verifier interface {
	AuthenticateJWT(token string) (uuid.UUID, error)
}

// BearerToken extracts the session token from the Authorization header or,
// failing that, the auth cookie.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(AuthCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireIdentity verifies the session token and stores the verified user id
// in the request context. Handlers behind it read the id with
// auth.IdentityFrom and never look at the token themselves.
func RequireIdentity(v Verifier, logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, "missing auth_token", http.StatusUnauthorized)
				return
			}

			userID, err := v.AuthenticateJWT(token)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				}).WithError(err).Debug("rejected session token")
				http.Error(w, "invalid token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), userID)))
		})
	}
}
