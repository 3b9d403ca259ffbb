package guard

import (
	"log/slog"
	"net/http"

	"github.com/meridian-hq/meridian/internal/platform/httpx"
	"github.com/meridian-hq/meridian/internal/policy"
	"github.com/meridian-hq/meridian/internal/shared"
)

// Middleware wires route guard decisions into HTTP handlers.
type Middleware struct {
	Engine *policy.Engine
	Logger *slog.Logger
	// LoginURL and UnauthorizedURL, when set, turn denials into 303
	// redirects for browser surfaces. Left empty, denials answer with
	// problem responses for API callers.
	LoginURL        string
	UnauthorizedURL string
}

// RequireModule guards a route behind module accessibility.
func (m Middleware) RequireModule(module policy.Module) func(http.Handler) http.Handler {
	return m.require(Requirement{Module: module})
}

// RequireRoles guards a route behind an any-of role check.
func (m Middleware) RequireRoles(roles ...policy.Role) func(http.Handler) http.Handler {
	return m.require(Requirement{Roles: roles})
}

// Require guards a route behind an arbitrary requirement.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return m.require(req)
}

func (m Middleware) require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			in := inputFromRequest(r)
			switch decision := Evaluate(m.Engine, in, req); decision {
			case Render:
				next.ServeHTTP(w, r)
			case RedirectLogin:
				if m.LoginURL != "" {
					http.Redirect(w, r, m.LoginURL, http.StatusSeeOther)
					return
				}
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
			case RedirectUnauthorized:
				if m.Logger != nil {
					m.Logger.Info("access denied",
						slog.String("path", r.URL.Path),
						slog.String("role", string(in.Role)),
						slog.String("module", string(req.Module)))
				}
				if m.UnauthorizedURL != "" {
					http.Redirect(w, r, m.UnauthorizedURL, http.StatusSeeOther)
					return
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
			default:
				httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.String())
			}
		})
	}
}

func inputFromRequest(r *http.Request) Input {
	p := shared.PrincipalFromContext(r.Context())
	if p == nil {
		return Input{}
	}
	// Blocked principals never reach the context; a present principal
	// implies an active account.
	return Input{
		Authenticated: true,
		AccountActive: true,
		Role:          p.Role,
		Overrides:     p.Overrides,
	}
}
