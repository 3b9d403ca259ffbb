package shared

import (
	"context"

	"github.com/meridian-hq/meridian/internal/policy"
)

// Principal describes the authenticated actor attached to a request.
type Principal struct {
	UID       string
	Email     string
	Role      policy.Role
	Overrides policy.OverrideMap
	SessionID string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when
// the request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
