package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/platform/httpx"
	"github.com/meridian-hq/meridian/internal/session"
	"github.com/meridian-hq/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the auth gateway.
type Handler struct {
	logger    *slog.Logger
	gateway   *Gateway
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, gateway *Gateway, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		gateway:   gateway,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Login gets
// a tight per-IP rate limit since it is the brute-force surface.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.handleSessionStatus)
	r.Post("/session/activity", h.handleActivity)
	r.Get("/modules", h.handleModules)
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required,min=8"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	UID     string   `json:"uid"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Role    string   `json:"role"`
	Modules []string `json:"modules"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.gateway.Login(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		h.countLogin("failure")
		h.respondLoginError(w, err)
		return
	}
	h.countLogin("success")

	modules := make([]string, 0)
	for _, m := range h.gateway.engine.AccessibleModules(result.User.Role, result.User.CustomPermissions) {
		modules = append(modules, string(m))
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		Token: result.Credential.Token,
		User: userView{
			UID:     result.User.UID,
			Email:   result.User.Email,
			Name:    result.User.FullName,
			Role:    string(result.User.Role),
			Modules: modules,
		},
	})
}

func (h *Handler) respondLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrIdentifierNotFound):
		httpx.Problem(w, http.StatusUnauthorized, "Unknown Account", "No account matches that phone number. Contact your administrator.")
	case errors.Is(err, shared.ErrAccountBlocked):
		httpx.Problem(w, http.StatusForbidden, "Account Blocked", "Your account has been blocked. Contact your administrator.")
	case errors.Is(err, shared.ErrProfileStoreUnavailable):
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "Please try again shortly.")
	case errors.Is(err, shared.ErrInvalidCredentials):
		// Never reveal whether the identifier exists.
		httpx.Problem(w, http.StatusUnauthorized, "Login Failed", "Invalid identifier or password.")
	default:
		h.logger.Error("login failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Logout(r.Context()); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionStatusResponse struct {
	State            string `json:"state"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

func (h *Handler) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	if !h.gateway.IsAuthenticated(r.Context()) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	remaining, err := h.gateway.SessionRemaining(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	httpx.JSON(w, http.StatusOK, sessionStatusResponse{
		State:            h.gateway.SessionState(r.Context()).String(),
		RemainingSeconds: int64(remaining / time.Second),
	})
}

type activityRequest struct {
	Kind string `json:"kind" validate:"required,oneof=pointer key scroll touch click request"`
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	if !h.gateway.IsAuthenticated(r.Context()) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req activityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.gateway.RecordActivity(r.Context(), session.ActivityKind(req.Kind)); err != nil {
		if errors.Is(err, session.ErrExpired) {
			httpx.Problem(w, http.StatusUnauthorized, "Session Expired", "")
			return
		}
		h.logger.Warn("record activity", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleModules(w http.ResponseWriter, r *http.Request) {
	if !h.gateway.IsAuthenticated(r.Context()) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	modules := h.gateway.AccessibleModules(r.Context())
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		out = append(out, string(m))
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{"modules": out})
}

func (h *Handler) countLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.CountLogin(outcome)
	}
}
