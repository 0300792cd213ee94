package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/collabhub/collabhub/internal/platform/httpx"
	"github.com/collabhub/collabhub/internal/policy"
	"github.com/collabhub/collabhub/internal/sessions"
	"github.com/collabhub/collabhub/internal/shared"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/auth/login"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	tokens         *TokenIssuer
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenIssuer, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		tokens:         tokens,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/token", h.handleToken)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type tokenRequest struct {
	Email    string              `json:"email" validate:"required,email"`
	Password string              `json:"password" validate:"required,min=8"`
	Device   sessions.DeviceInfo `json:"device_info"`
	Location sessions.Location   `json:"location"`
}

type tokenResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionID    string    `json:"session_id"`
	DefaultRoute string    `json:"default_route"`
}

type validationResponse struct {
	Errors map[string]string `json:"errors"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.Token(sess)
	if err != nil {
		h.logger.Error("csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed form")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	device := sessions.DeviceFromUserAgent(r.UserAgent())
	device.ScreenResolution = r.PostFormValue("screen_resolution")
	loc := sessions.Location{Country: strings.ToUpper(strings.TrimSpace(r.PostFormValue("country")))}

	if errs := h.validate(form, device, loc); len(errs) > 0 {
		httpx.JSON(w, http.StatusBadRequest, validationResponse{Errors: errs})
		return
	}

	id, err := h.service.SignIn(r.Context(), form.Email, form.Password, device, loc)
	if err != nil {
		h.respondSignInError(w, err)
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Error("renew browser session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.csrfManager.Drop(sess)
	id.Source = SourceCookie
	storeIdentity(sess, id)
	http.Redirect(w, r, policy.DefaultRoute(id.Role), http.StatusSeeOther)
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}
	var req tokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	req.Location.Country = strings.ToUpper(strings.TrimSpace(req.Location.Country))
	if errs := h.validate(req); len(errs) > 0 {
		httpx.JSON(w, http.StatusBadRequest, validationResponse{Errors: errs})
		return
	}

	id, err := h.service.SignIn(r.Context(), req.Email, req.Password, req.Device, req.Location)
	if err != nil {
		h.respondSignInError(w, err)
		return
	}
	id.Source = SourceToken
	token, expires, err := h.tokens.Issue(id)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		if endErr := h.service.SignOut(r.Context(), id); endErr != nil {
			h.logger.Warn("end orphaned session", slog.String("session_id", id.SessionID), slog.Any("error", endErr))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{
		Token:        token,
		ExpiresAt:    expires,
		SessionID:    id.SessionID,
		DefaultRoute: policy.DefaultRoute(id.Role),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	if err := h.SignOutDevice(w, r); err != nil {
		h.logger.Warn("sign out", slog.String("session_id", id.SessionID), slog.Any("error", err))
	}
	if id.Source == SourceToken {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// SignOutDevice ends the device session of the request identity and drops
// the browser credential state. Local state is dropped even when ending the
// stored session fails; the error is returned for logging.
func (h *Handler) SignOutDevice(w http.ResponseWriter, r *http.Request) error {
	id, ok := IdentityFromContext(r.Context())
	var err error
	if ok {
		err = h.service.SignOut(r.Context(), id)
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil && (!ok || id.Source == SourceCookie) {
		sess.Clear()
		h.sessionManager.Destroy(sess)
	}
	return err
}

// validate collects field errors keyed by namespace; nested structs are
// walked by the validator.
func (h *Handler) validate(values ...any) map[string]string {
	errs := make(map[string]string)
	for _, v := range values {
		err := h.validator.Struct(v)
		if err == nil {
			continue
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs["general"] = err.Error()
			continue
		}
		for _, fieldErr := range fieldErrs {
			errs[fieldErr.Namespace()] = fieldErr.Tag()
		}
	}
	return errs
}

func (h *Handler) respondSignInError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
	case errors.Is(err, sessions.ErrStoreUnavailable):
		h.logger.Warn("sign in", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "session store unavailable, retry later")
	default:
		h.logger.Error("sign in", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
