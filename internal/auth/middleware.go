package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/collabhub/collabhub/internal/platform/httpx"
	"github.com/collabhub/collabhub/internal/policy"
	"github.com/collabhub/collabhub/internal/shared"
)

// Middleware resolves the identity of each request from a bearer token or
// the browser session and stores it in the request context. Requests
// without credentials pass through without an identity.
func Middleware(tokens *TokenIssuer, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearerToken(r); ok {
				if tokens == nil {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer tokens are not accepted")
					return
				}
				id, err := tokens.Verify(raw)
				if err != nil {
					logger.Debug("bearer token rejected", slog.Any("error", err))
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}
			if id, ok := identityFromSession(shared.SessionFromContext(r.Context())); ok {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HasBearer reports whether r carries an Authorization bearer header.
func HasBearer(r *http.Request) bool {
	_, ok := bearerToken(r)
	return ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func identityFromSession(sess *shared.Session) (Identity, bool) {
	if sess == nil {
		return Identity{}, false
	}
	userID := sess.Get(shared.KeyUserID)
	if userID == "" {
		return Identity{}, false
	}
	return Identity{
		UserID:    userID,
		Email:     sess.Get(shared.KeyEmail),
		Role:      policy.Role(sess.Get(shared.KeyRole)),
		SessionID: sess.Get(shared.KeyDeviceSession),
		Source:    SourceCookie,
	}, true
}

func storeIdentity(sess *shared.Session, id Identity) {
	sess.Set(shared.KeyUserID, id.UserID)
	sess.Set(shared.KeyEmail, id.Email)
	sess.Set(shared.KeyRole, string(id.Role))
	sess.Set(shared.KeyDeviceSession, id.SessionID)
}
