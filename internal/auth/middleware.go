package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-hq/meridian/internal/session"
	"github.com/meridian-hq/meridian/internal/shared"
)

// Middleware attaches the authenticated principal to requests.
type Middleware struct {
	Gateway *Gateway
	Logger  *slog.Logger
}

// Authenticate resolves the bearer credential, stores the principal in
// the request context and counts the request as session activity.
// Requests without a valid credential continue anonymously; the route
// guard decides what anonymous callers may reach.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Gateway.ResolvePrincipal(r.Context(), token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("credential rejected", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		if err := m.Gateway.RecordActivity(ctx, session.ActivityRequest); err != nil && m.Logger != nil {
			m.Logger.Debug("record activity", slog.Any("error", err))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
