package sessionshttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/collabhub/collabhub/internal/auth"
	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/platform/httpx"
	"github.com/collabhub/collabhub/internal/policy"
	"github.com/collabhub/collabhub/internal/sessions"
)

const retryAfter = 30 * time.Second

type registrySource interface {
	Registry(id auth.Identity) *sessions.Registry
}

type signOuter interface {
	SignOutDevice(w http.ResponseWriter, r *http.Request) error
}

// Config tunes the session status stream.
type Config struct {
	Window        time.Duration
	CheckInterval time.Duration
	MaxStaleness  time.Duration
}

// Handler serves the account session management endpoints.
type Handler struct {
	logger   *slog.Logger
	auth     registrySource
	signOut  signOuter
	store    sessions.Store
	clock    clock.Clock
	recorder sessions.Recorder
	cfg      Config
}

// NewHandler constructs a Handler. clk and recorder may be nil.
func NewHandler(logger *slog.Logger, authService registrySource, signOut signOuter, store sessions.Store, clk clock.Clock, recorder sessions.Recorder, cfg Config) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.Window <= 0 {
		cfg.Window = sessions.DefaultInactivityWindow
	}
	return &Handler{
		logger:   logger,
		auth:     authService,
		signOut:  signOut,
		store:    store,
		clock:    clk,
		recorder: recorder,
		cfg:      cfg,
	}
}

// MountRoutes registers the account routes. The caller mounts them behind
// the route guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sessions", h.listSessions)
	r.Post("/sessions/revoke-others", h.revokeOthers)
	r.Get("/sessions/current/status", h.streamStatus)
	r.Delete("/sessions/{id}", h.endSession)
	r.Get("/navigation", h.navigation)
}

type sessionView struct {
	ID           string              `json:"id"`
	Device       sessions.DeviceInfo `json:"device_info"`
	Location     sessions.Location   `json:"location"`
	CreatedAt    time.Time           `json:"created_at"`
	LastActivity time.Time           `json:"last_activity"`
	ExpiresAt    time.Time           `json:"expires_at"`
	State        string              `json:"state"`
	Current      bool                `json:"current"`
}

type statusView struct {
	State            string    `json:"state"`
	Reason           string    `json:"reason,omitempty"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	ExpiresAt        time.Time `json:"expires_at,omitempty"`
	CheckedAt        time.Time `json:"checked_at"`
}

type navigationView struct {
	Role         policy.Role              `json:"role"`
	DefaultRoute string                   `json:"default_route"`
	Navigation   []policy.NavigationEntry `json:"navigation"`
	Features     []policy.FeatureFlag     `json:"features"`
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	recs, err := h.auth.Registry(id).UserSessions(r.Context(), id.UserID)
	if err != nil {
		h.respondStoreError(w, "list sessions", err)
		return
	}
	now := h.clock.Now()
	views := make([]sessionView, 0, len(recs))
	for _, rec := range recs {
		state, _ := sessions.Classify(rec.LastActivity, now, h.cfg.Window)
		if state == sessions.StateExpired {
			continue
		}
		views = append(views, sessionView{
			ID:           rec.ID,
			Device:       rec.Device,
			Location:     rec.Location,
			CreatedAt:    rec.CreatedAt,
			LastActivity: rec.LastActivity,
			ExpiresAt:    rec.ExpiresAt(h.cfg.Window),
			State:        string(state),
			Current:      rec.ID == id.SessionID,
		})
	}
	slices.SortFunc(views, func(a, b sessionView) int {
		return b.LastActivity.Compare(a.LastActivity)
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	target := chi.URLParam(r, "id")
	if target == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "session id required")
		return
	}
	if err := h.auth.Registry(id).EndSpecificSession(r.Context(), target); err != nil {
		h.respondStoreError(w, "end session", err)
		return
	}
	if target == id.SessionID {
		if err := h.signOut.SignOutDevice(w, r); err != nil {
			h.logger.Warn("sign out after ending current session", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeOthers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	ended, err := h.auth.Registry(id).EndAllOtherSessions(r.Context(), id.SessionID)
	if err != nil {
		h.logger.Warn("end other sessions",
			slog.String("user_id", id.UserID),
			slog.Int("ended", ended),
			slog.Any("error", err))
		if errors.Is(err, sessions.ErrStoreUnavailable) {
			httpx.Unavailable(w, retryAfter,
				fmt.Sprintf("ended %d sessions before the session store failed, retry", ended))
			return
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"ended": ended})
}

// streamStatus pushes the lifecycle status of the caller's session as
// server-sent events until the client disconnects or the session expires.
func (h *Handler) streamStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	validator := sessions.NewValidator(sessions.ValidatorConfig{
		Store:        h.store,
		SessionID:    id.SessionID,
		Clock:        h.clock,
		Logger:       h.logger,
		Recorder:     h.recorder,
		Interval:     h.cfg.CheckInterval,
		Window:       h.cfg.Window,
		MaxStaleness: h.cfg.MaxStaleness,
	})
	updates, unsubscribe := validator.Subscribe()
	defer unsubscribe()
	if err := validator.Start(r.Context()); err != nil {
		h.logger.Error("start session validator", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	defer validator.Stop()

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug("clear write deadline", slog.Any("error", err))
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("streaming not supported by response writer", slog.Any("error", err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case st, open := <-updates:
			if !open {
				return
			}
			if err := writeStatusEvent(w, st); err != nil {
				h.logger.Debug("status stream closed", slog.Any("error", err))
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			// The next guarded request of this device performs the sign-out.
			if st.State.RequiresSignOut() {
				return
			}
		}
	}
}

func (h *Handler) navigation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, navigationView{
		Role:         id.Role,
		DefaultRoute: policy.DefaultRoute(id.Role),
		Navigation:   policy.RoleNavigation(id.Role),
		Features:     policy.Features(id.Role),
	})
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	}
	return id, ok
}

func (h *Handler) respondStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, sessions.ErrStoreUnavailable) {
		h.logger.Warn(op, slog.Any("error", err))
		httpx.Unavailable(w, retryAfter, "session store unavailable, retry later")
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func writeStatusEvent(w http.ResponseWriter, st sessions.Status) error {
	payload, err := json.Marshal(statusView{
		State:            string(st.State),
		Reason:           string(st.Reason),
		RemainingSeconds: int64(st.Remaining / time.Second),
		ExpiresAt:        st.ExpiresAt,
		CheckedAt:        st.CheckedAt,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
	return err
}
