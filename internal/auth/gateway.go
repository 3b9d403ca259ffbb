package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/policy"
	"github.com/meridian-hq/meridian/internal/session"
	"github.com/meridian-hq/meridian/internal/shared"
)

// DefaultSystemDomain marks system-issued email addresses. Accounts
// provisioned for such addresses default to the low-privilege role.
const DefaultSystemDomain = "meridian.local"

// GatewayConfig collects Gateway dependencies.
type GatewayConfig struct {
	Identity IdentityProvider
	Profiles ProfileRepository
	Engine   *policy.Engine
	Sessions session.Store
	Audit    shared.AuditRecorder // optional, best effort
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	SystemDomain   string
	SessionTimeout time.Duration
	TickInterval   time.Duration
	// OnWarning is forwarded to each session controller.
	OnWarning func(sessionID string, remaining time.Duration)
	Now       func() time.Time
}

type activeSession struct {
	principal  shared.Principal
	credential Credential
	controller *session.Controller
	cancel     context.CancelFunc
}

// Gateway resolves login identifiers, authenticates against the
// identity provider, gates blocked accounts, provisions first-login
// profiles and owns the lifecycle of every authenticated session.
type Gateway struct {
	identity IdentityProvider
	profiles ProfileRepository
	engine   *policy.Engine
	sessions session.Store
	audit    shared.AuditRecorder
	metrics  *observability.Metrics
	logger   *slog.Logger

	systemDomain   string
	sessionTimeout time.Duration
	tickInterval   time.Duration
	onWarning      func(string, time.Duration)
	now            func() time.Time

	mu     sync.Mutex
	active map[string]*activeSession

	profileGroup singleflight.Group
}

// NewGateway constructs a Gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Identity == nil {
		return nil, errors.New("auth: gateway requires an identity provider")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("auth: gateway requires a profile repository")
	}
	if cfg.Engine == nil {
		return nil, errors.New("auth: gateway requires a policy engine")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("auth: gateway requires a session store")
	}
	g := &Gateway{
		identity:       cfg.Identity,
		profiles:       cfg.Profiles,
		engine:         cfg.Engine,
		sessions:       cfg.Sessions,
		audit:          cfg.Audit,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		systemDomain:   cfg.SystemDomain,
		sessionTimeout: cfg.SessionTimeout,
		tickInterval:   cfg.TickInterval,
		onWarning:      cfg.OnWarning,
		now:            cfg.Now,
		active:         make(map[string]*activeSession),
	}
	if g.systemDomain == "" {
		g.systemDomain = DefaultSystemDomain
	}
	if g.sessionTimeout <= 0 {
		g.sessionTimeout = session.DefaultTimeout
	}
	if g.tickInterval <= 0 {
		g.tickInterval = session.DefaultTickInterval
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// IsPhoneIdentifier reports whether the login identifier takes the
// phone-lookup path: exactly ten ASCII digits.
func IsPhoneIdentifier(identifier string) bool {
	if len(identifier) != 10 {
		return false
	}
	for _, c := range identifier {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Login authenticates the identifier/secret pair and starts a session.
func (g *Gateway) Login(ctx context.Context, identifier, secret string) (*AuthResult, error) {
	email := identifier
	if IsPhoneIdentifier(identifier) {
		profile, err := g.profiles.FindByMobile(ctx, identifier)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				g.recordAudit(shared.AuditLoginFailure, identifier, "identifier_not_found", "")
				return nil, shared.ErrIdentifierNotFound
			}
			g.recordAudit(shared.AuditLoginFailure, identifier, "profile_store_unavailable", "")
			return nil, fmt.Errorf("%w: %v", shared.ErrProfileStoreUnavailable, err)
		}
		email = profile.Email
	}

	cred, err := g.identity.Authenticate(ctx, email, secret)
	if err != nil {
		g.recordAudit(shared.AuditLoginFailure, identifier, "invalid_credentials", "")
		return nil, err
	}

	user, err := g.profiles.GetByUID(ctx, cred.UID)
	if err != nil {
		// Missing profile means first login; transient store errors
		// also fall open into provisioning so an outage does not
		// lock out valid identities.
		if !errors.Is(err, shared.ErrNotFound) {
			g.logger.Warn("profile load failed, provisioning", slog.String("uid", cred.UID), slog.Any("error", err))
		}
		user, err = g.provision(ctx, cred)
		if err != nil {
			_ = g.identity.Invalidate(ctx, cred)
			g.recordAudit(shared.AuditLoginFailure, identifier, "provisioning_failed", cred.UID)
			return nil, err
		}
	}

	if user.Status == StatusBlocked {
		// A blocked account must never reach an authenticated state,
		// even momentarily.
		_ = g.identity.Invalidate(ctx, cred)
		g.recordAudit(shared.AuditLoginFailure, identifier, "account_blocked", cred.UID)
		return nil, shared.ErrAccountBlocked
	}

	if err := g.startSession(ctx, user, cred); err != nil {
		_ = g.identity.Invalidate(ctx, cred)
		return nil, err
	}

	if err := g.profiles.UpdateLastLogin(ctx, user.UID, g.now().UTC()); err != nil {
		g.logger.Warn("update last login", slog.String("uid", user.UID), slog.Any("error", err))
	}
	g.recordAudit(shared.AuditLoginSuccess, identifier, "success", user.UID)

	return &AuthResult{User: user, Credential: cred}, nil
}

func (g *Gateway) provision(ctx context.Context, cred Credential) (*User, error) {
	now := g.now().UTC()
	fullName := cred.Email
	if i := strings.IndexByte(fullName, '@'); i >= 0 {
		fullName = fullName[:i]
	}
	user := &User{
		UID:       cred.UID,
		Email:     cred.Email,
		FullName:  fullName,
		Role:      g.defaultRole(cred.Email),
		Status:    StatusActive,
		CreatedAt: now,
		CreatedBy: "system",
	}
	if err := g.profiles.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrProfileStoreUnavailable, err)
	}
	g.logger.Info("provisioned profile", slog.String("uid", user.UID), slog.String("role", string(user.Role)))
	return user, nil
}

// defaultRole derives the provisioning role from the identifier shape:
// system-issued addresses get the low-privilege role, externally-issued
// addresses get the highest-privilege role.
func (g *Gateway) defaultRole(email string) policy.Role {
	if strings.HasSuffix(strings.ToLower(email), "@"+g.systemDomain) {
		return policy.RoleEmployee
	}
	return policy.RoleAdmin
}

func (g *Gateway) startSession(ctx context.Context, user *User, cred Credential) error {
	sessCtx, cancel := context.WithCancel(context.Background())
	controller, err := session.NewController(ctx, session.ControllerConfig{
		SessionID:    cred.ID,
		Store:        g.sessions,
		Logger:       g.logger,
		Timeout:      g.sessionTimeout,
		TickInterval: g.tickInterval,
		Now:          g.now,
		OnWarning: func(remaining time.Duration) {
			if g.onWarning != nil {
				g.onWarning(cred.ID, remaining)
			}
		},
		OnExpire: func() {
			g.endSession(context.Background(), cred.ID, shared.AuditLogout, "expired")
		},
	})
	if err != nil {
		cancel()
		return err
	}

	principal := shared.Principal{
		UID:       user.UID,
		Email:     user.Email,
		Role:      user.Role,
		Overrides: user.CustomPermissions,
		SessionID: cred.ID,
	}
	g.mu.Lock()
	g.active[cred.ID] = &activeSession{
		principal:  principal,
		credential: cred,
		controller: controller,
		cancel:     cancel,
	}
	g.mu.Unlock()

	controller.Start(sessCtx)
	return nil
}

// Logout ends the caller's session. Idempotent: calling it without an
// authenticated principal, or twice in a row, is not an error.
func (g *Gateway) Logout(ctx context.Context) error {
	p := shared.PrincipalFromContext(ctx)
	if p == nil {
		return nil
	}
	g.endSession(ctx, p.SessionID, shared.AuditLogout, "logout")
	return nil
}

func (g *Gateway) endSession(ctx context.Context, sessionID, event, reason string) {
	g.mu.Lock()
	as, ok := g.active[sessionID]
	delete(g.active, sessionID)
	g.mu.Unlock()
	if !ok {
		return
	}

	as.controller.Stop()
	as.cancel()
	if err := g.sessions.Clear(ctx, sessionID); err != nil {
		g.logger.Warn("clear session record", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	if err := g.identity.Invalidate(ctx, as.credential); err != nil {
		g.logger.Warn("invalidate credential", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	g.recordAudit(event, as.principal.Email, reason, as.principal.UID)
	if g.metrics != nil {
		g.metrics.CountSessionEnd(reason)
	}
	g.logger.Info("session ended", slog.String("session_id", sessionID), slog.String("reason", reason))
}

// principalFor returns the context principal when its session is still
// active.
func (g *Gateway) principalFor(ctx context.Context) *shared.Principal {
	p := shared.PrincipalFromContext(ctx)
	if p == nil {
		return nil
	}
	g.mu.Lock()
	_, ok := g.active[p.SessionID]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	return p
}

// IsAuthenticated reports whether the context carries a live session.
func (g *Gateway) IsAuthenticated(ctx context.Context) bool {
	return g.principalFor(ctx) != nil
}

// SessionActive reports whether the session ID is registered and alive.
func (g *Gateway) SessionActive(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[sessionID]
	return ok
}

// CheckPermission answers the policy engine for the caller's role and
// override map, denying when unauthenticated.
func (g *Gateway) CheckPermission(ctx context.Context, module policy.Module, action policy.Action) bool {
	p := g.principalFor(ctx)
	if p == nil {
		return false
	}
	return g.engine.HasPermission(p.Role, module, action, p.Overrides)
}

// CheckAccess reports whether the caller can access the module at all.
func (g *Gateway) CheckAccess(ctx context.Context, module policy.Module) bool {
	p := g.principalFor(ctx)
	if p == nil {
		return false
	}
	return g.engine.CanAccessModule(p.Role, module, p.Overrides)
}

// AccessibleModules enumerates the modules the caller can reach.
func (g *Gateway) AccessibleModules(ctx context.Context) []policy.Module {
	p := g.principalFor(ctx)
	if p == nil {
		return nil
	}
	return g.engine.AccessibleModules(p.Role, p.Overrides)
}

// RecordActivity refreshes the caller's inactivity clock.
func (g *Gateway) RecordActivity(ctx context.Context, kind session.ActivityKind) error {
	p := shared.PrincipalFromContext(ctx)
	if p == nil {
		return nil
	}
	g.mu.Lock()
	as, ok := g.active[p.SessionID]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	return as.controller.RecordActivity(ctx, kind)
}

// SessionRemaining reports the time left before the caller's session
// expires.
func (g *Gateway) SessionRemaining(ctx context.Context) (time.Duration, error) {
	p := shared.PrincipalFromContext(ctx)
	if p == nil {
		return 0, session.ErrExpired
	}
	g.mu.Lock()
	as, ok := g.active[p.SessionID]
	g.mu.Unlock()
	if !ok {
		return 0, session.ErrExpired
	}
	return as.controller.Remaining(ctx)
}

// SessionState reports the lifecycle state for the caller's session.
func (g *Gateway) SessionState(ctx context.Context) session.State {
	p := shared.PrincipalFromContext(ctx)
	if p == nil {
		return session.StateExpired
	}
	g.mu.Lock()
	as, ok := g.active[p.SessionID]
	g.mu.Unlock()
	if !ok {
		return session.StateExpired
	}
	return as.controller.State()
}

// ResolvePrincipal validates a raw credential token and rebuilds the
// principal for the request, re-reading the profile so role and
// override changes apply without re-login.
func (g *Gateway) ResolvePrincipal(ctx context.Context, token string) (*shared.Principal, error) {
	cred, err := g.identity.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !g.SessionActive(cred.ID) {
		return nil, shared.ErrInvalidCredentials
	}
	user, err := g.loadProfile(ctx, cred.UID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrProfileStoreUnavailable, err)
	}
	if user.Status == StatusBlocked {
		g.endSession(ctx, cred.ID, shared.AuditLogout, "blocked")
		return nil, shared.ErrAccountBlocked
	}
	return &shared.Principal{
		UID:       user.UID,
		Email:     user.Email,
		Role:      user.Role,
		Overrides: user.CustomPermissions,
		SessionID: cred.ID,
	}, nil
}

// loadProfile collapses concurrent re-reads of the same profile into
// one store round trip.
func (g *Gateway) loadProfile(ctx context.Context, uid string) (*User, error) {
	v, err, _ := g.profileGroup.Do(uid, func() (any, error) {
		return g.profiles.GetByUID(ctx, uid)
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

// Shutdown ends every active session, stopping their controllers.
func (g *Gateway) Shutdown(ctx context.Context) {
	g.mu.Lock()
	ids := make([]string, 0, len(g.active))
	for id := range g.active {
		ids = append(ids, id)
	}
	g.mu.Unlock()
	for _, id := range ids {
		g.endSession(ctx, id, shared.AuditLogout, "shutdown")
	}
}

func (g *Gateway) recordAudit(event, identifier, outcome, actorUID string) {
	if g.audit == nil {
		return
	}
	entry := shared.AuditEntry{
		Identifier: identifier,
		Event:      event,
		Outcome:    outcome,
		ActorUID:   actorUID,
		At:         g.now().UTC(),
	}
	if async, ok := g.audit.(interface{ RecordAsync(shared.AuditEntry) }); ok {
		async.RecordAsync(entry)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.audit.Record(ctx, entry); err != nil {
		g.logger.Warn("audit record failed", slog.String("event", event), slog.Any("error", err))
	}
}
