// Package guard protects HTTP routes by combining the role policy with the
// liveness of the caller's device session.
package guard

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/collabhub/collabhub/internal/auth"
	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/platform/httpx"
	"github.com/collabhub/collabhub/internal/policy"
	"github.com/collabhub/collabhub/internal/sessions"
)

// Response headers describing the session state of guarded requests.
const (
	HeaderSessionState     = "X-Session-State"
	HeaderSessionRemaining = "X-Session-Remaining"
)

const retryAfter = 30 * time.Second

// SignOuter drops the credentials of the requesting device.
type SignOuter interface {
	SignOutDevice(w http.ResponseWriter, r *http.Request) error
}

// Guard wires route protection for HTTP handlers.
type Guard struct {
	Store    sessions.Store
	Registry *sessions.Registry
	SignOut  SignOuter
	Clock    clock.Clock
	Logger   *slog.Logger
	Recorder sessions.Recorder
	// Window is the inactivity window. Defaults to sessions.DefaultInactivityWindow.
	Window time.Duration
	// TouchInterval is the minimum age of lastActivity before a request
	// refreshes it. Zero refreshes on every request.
	TouchInterval time.Duration
}

// RequireRoute serves the request only when the caller's device session is
// still valid and the caller's role may reach the request path. Denied
// callers are redirected to their role's landing route.
func (g Guard) RequireRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			g.unauthenticated(w, r, id)
			return
		}

		now := g.now()
		status, err := sessions.Inspect(r.Context(), g.Store, id.SessionID, now, g.window())
		if err != nil {
			g.logger().Warn("session check failed",
				slog.String("session_id", id.SessionID),
				slog.Any("error", err))
			httpx.Unavailable(w, retryAfter, "session could not be verified, retry later")
			return
		}
		g.recorder().SessionChecked(string(status.State))

		if status.State.RequiresSignOut() {
			g.logger().Info("session expired",
				slog.String("session_id", id.SessionID),
				slog.String("reason", string(status.Reason)))
			if err := g.SignOut.SignOutDevice(w, r); err != nil {
				g.logger().Warn("sign out expired session", slog.Any("error", err))
			}
			g.unauthenticated(w, r, id)
			return
		}

		if !id.Role.Valid() {
			g.logger().Warn("identity carries unknown role",
				slog.String("session_id", id.SessionID),
				slog.String("role", string(id.Role)))
			if err := g.SignOut.SignOutDevice(w, r); err != nil {
				g.logger().Warn("sign out unknown role", slog.Any("error", err))
			}
			g.unauthenticated(w, r, id)
			return
		}
		if !policy.CanAccessRoute(id.Role, r.URL.Path) {
			http.Redirect(w, r, policy.DefaultRoute(id.Role), http.StatusSeeOther)
			return
		}

		if now.Sub(status.LastActivity) >= g.TouchInterval && g.Registry != nil {
			if err := g.Registry.ForDevice(id.Actor(), id.SessionID).Touch(r.Context()); err != nil {
				g.logger().Warn("touch session", slog.String("session_id", id.SessionID), slog.Any("error", err))
			} else {
				status.LastActivity = now
				status.ExpiresAt = now.Add(g.window())
				status.State, status.Remaining = sessions.Classify(now, now, g.window())
			}
		}
		w.Header().Set(HeaderSessionState, string(status.State))
		w.Header().Set(HeaderSessionRemaining, strconv.FormatInt(int64(status.Remaining/time.Second), 10))
		next.ServeHTTP(w, r)
	})
}

// RequirePermission ensures the caller's role owns (action, resource).
func (g Guard) RequirePermission(action policy.Action, resource string) func(http.Handler) http.Handler {
	return g.require(func(role policy.Role) bool {
		return policy.HasPermission(role, action, resource)
	})
}

// RequireFeature ensures flag is enabled for the caller's role.
func (g Guard) RequireFeature(flag policy.FeatureFlag) func(http.Handler) http.Handler {
	return g.require(func(role policy.Role) bool {
		return policy.HasFeature(role, flag)
	})
}

func (g Guard) require(allowed func(policy.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			if !allowed(id.Role) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g Guard) unauthenticated(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if id.Source == auth.SourceToken || auth.HasBearer(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired")
		return
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (g Guard) now() time.Time {
	if g.Clock == nil {
		return time.Now()
	}
	return g.Clock.Now()
}

func (g Guard) window() time.Duration {
	if g.Window <= 0 {
		return sessions.DefaultInactivityWindow
	}
	return g.Window
}

func (g Guard) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g Guard) recorder() sessions.Recorder {
	if g.Recorder == nil {
		return noRecorder{}
	}
	return g.Recorder
}

type noRecorder struct{}

func (noRecorder) SessionChecked(string)     {}
func (noRecorder) SessionsEnded(string, int) {}
