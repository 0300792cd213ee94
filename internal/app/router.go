package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/collabhub/collabhub/internal/auth"
	"github.com/collabhub/collabhub/internal/guard"
	"github.com/collabhub/collabhub/internal/observability"
	"github.com/collabhub/collabhub/internal/platform/httpx"
	"github.com/collabhub/collabhub/internal/policy"
	sessionshttp "github.com/collabhub/collabhub/internal/sessions/http"
	"github.com/collabhub/collabhub/internal/shared"
	"github.com/collabhub/collabhub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	Tokens          *auth.TokenIssuer
	AuthHandler     *auth.Handler
	Guard           guard.Guard
	SessionsHandler *sessionshttp.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with CollabHub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Tokens:         params.Tokens,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Signed-in callers land on their role's default route.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok || !id.Role.Valid() {
			http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, policy.DefaultRoute(id.Role), http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.RequireRoute)
		r.Route("/account", params.SessionsHandler.MountRoutes)

		r.Route("/admin", func(r chi.Router) {
			r.Use(params.Guard.RequirePermission(policy.ActionAccess, string(policy.RoleAdmin)))
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Use(params.Guard.RequirePermission(policy.ActionView, policy.ResourceJobs))
					params.JobHandler.MountRoutes(r)
				})
			}
			r.Get("/*", workspace)
		})
		r.Route("/brand", func(r chi.Router) {
			r.Use(params.Guard.RequirePermission(policy.ActionAccess, string(policy.RoleBrand)))
			r.With(params.Guard.RequireFeature(policy.FeatureCampaignBuilder)).Get("/campaigns/new", workspace)
			r.Get("/*", workspace)
		})
		r.Route("/creator", func(r chi.Router) {
			r.Use(params.Guard.RequirePermission(policy.ActionAccess, string(policy.RoleCreator)))
			r.With(params.Guard.RequireFeature(policy.FeaturePortfolio)).Get("/portfolio", workspace)
			r.Get("/*", workspace)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

type workspaceView struct {
	Path       string                   `json:"path"`
	Role       policy.Role              `json:"role"`
	Navigation []policy.NavigationEntry `json:"navigation"`
}

// workspace answers role area pages with the navigation shell the client
// renders them in.
func workspace(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, workspaceView{
		Path:       policy.NormalizePath(r.URL.Path),
		Role:       id.Role,
		Navigation: policy.RoleNavigation(id.Role),
	})
}
