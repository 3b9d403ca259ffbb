package guard

import (
	"github.com/meridian-hq/meridian/internal/policy"
)

// Decision is the outcome of a route guard evaluation.
type Decision int

const (
	// Render lets the protected surface proceed.
	Render Decision = iota
	// RedirectLogin sends the caller to the login page.
	RedirectLogin
	// RedirectUnauthorized sends the caller to the unauthorized page.
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	default:
		return "unknown"
	}
}

// Input describes the caller at the guarded boundary.
type Input struct {
	Authenticated bool
	AccountActive bool
	Role          policy.Role
	Overrides     policy.OverrideMap
}

// Requirement describes what a protected route needs. The zero value
// requires authentication only.
type Requirement struct {
	// Module, when set, requires module accessibility.
	Module policy.Module
	// Roles, when non-empty, requires one of the listed roles.
	Roles []policy.Role
}

// Evaluate applies the route guard contract: unauthenticated or
// inactive callers go to login; authenticated callers failing the
// module or role check go to unauthorized; everyone else renders.
func Evaluate(engine *policy.Engine, in Input, req Requirement) Decision {
	if !in.Authenticated || !in.AccountActive {
		return RedirectLogin
	}
	if req.Module != "" && !engine.CanAccessModule(in.Role, req.Module, in.Overrides) {
		return RedirectUnauthorized
	}
	if len(req.Roles) > 0 && !hasAnyRole(in.Role, req.Roles) {
		return RedirectUnauthorized
	}
	return Render
}

func hasAnyRole(role policy.Role, allowed []policy.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
