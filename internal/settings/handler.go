package settings

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hq/meridian/internal/guard"
	"github.com/meridian-hq/meridian/internal/platform/httpx"
	"github.com/meridian-hq/meridian/internal/policy"
	"github.com/meridian-hq/meridian/internal/shared"
)

// Handler exposes the role-policy settings document over HTTP. Only
// callers who may manage user-management reach these routes.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     guard.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guardMW guard.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guardMW,
		validator: validator.New(),
	}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireModule(policy.ModuleUserManagement))
		r.Get("/role-policy", h.getRolePolicy)
		r.Put("/role-policy", h.putRolePolicy)
	})
}

type rolePolicyView struct {
	CustomPermissions map[string]map[string][]string `json:"customPermissions"`
	LastUpdatedBy     string                         `json:"lastUpdatedBy,omitempty"`
	LastUpdated       *time.Time                     `json:"lastUpdated,omitempty"`
}

func (h *Handler) getRolePolicy(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context())
	if err != nil {
		h.logger.Error("get role policy", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(doc))
}

type rolePolicyUpdate struct {
	CustomPermissions map[string]map[string][]string `json:"customPermissions" validate:"required"`
}

func (h *Handler) putRolePolicy(w http.ResponseWriter, r *http.Request) {
	var req rolePolicyUpdate
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	perms, err := parseRolePermissions(req.CustomPermissions)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	updatedBy := ""
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		updatedBy = p.UID
	}
	doc, err := h.service.Update(r.Context(), perms, updatedBy)
	if err != nil {
		h.logger.Error("update role policy", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(doc))
}

func toView(doc RolePolicy) rolePolicyView {
	view := rolePolicyView{
		CustomPermissions: make(map[string]map[string][]string, len(doc.CustomPermissions)),
		LastUpdatedBy:     doc.LastUpdatedBy,
	}
	if !doc.LastUpdated.IsZero() {
		t := doc.LastUpdated
		view.LastUpdated = &t
	}
	for role, overrides := range doc.CustomPermissions {
		modules := make(map[string][]string, len(overrides))
		for module, set := range overrides {
			actions := make([]string, 0, len(set))
			for _, a := range set.Slice() {
				actions = append(actions, string(a))
			}
			modules[string(module)] = actions
		}
		view.CustomPermissions[string(role)] = modules
	}
	return view
}

func parseRolePermissions(raw map[string]map[string][]string) (map[policy.Role]policy.OverrideMap, error) {
	perms := make(map[policy.Role]policy.OverrideMap, len(raw))
	for roleRaw, modulesRaw := range raw {
		role, err := policy.ParseRole(roleRaw)
		if err != nil {
			return nil, err
		}
		overrides := make(policy.OverrideMap, len(modulesRaw))
		for moduleRaw, actionsRaw := range modulesRaw {
			module, err := policy.ParseModule(moduleRaw)
			if err != nil {
				return nil, err
			}
			actions := make([]policy.Action, 0, len(actionsRaw))
			for _, actionRaw := range actionsRaw {
				action, err := policy.ParseAction(actionRaw)
				if err != nil {
					return nil, err
				}
				actions = append(actions, action)
			}
			overrides[module] = policy.NewActionSet(actions...)
		}
		perms[role] = overrides
	}
	return perms, nil
}
