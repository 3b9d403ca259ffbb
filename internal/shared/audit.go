package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit event names recorded by the auth flow.
const (
	AuditLoginSuccess = "auth.login.success"
	AuditLoginFailure = "auth.login.failure"
	AuditLogout       = "auth.logout"
)

// AuditEntry represents a record stored in auth_audit_logs.
type AuditEntry struct {
	Identifier string
	Event      string
	Outcome    string
	ActorUID   string
	Meta       map[string]any
	At         time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditLogger writes records into auth_audit_logs.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{pool: pool, logger: logger}
}

// Record persists the audit entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Event == "" || entry.Identifier == "" {
		return errors.New("audit entry requires event and identifier")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO auth_audit_logs (id, identifier, event, outcome, actor_uid, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), entry.Identifier, entry.Event, entry.Outcome, entry.ActorUID, metaJSON, at)
	return err
}

// RecordAsync persists the entry without blocking the caller. Audit
// failures are logged and never interrupt the auth flow.
func (l *AuditLogger) RecordAsync(entry AuditEntry) {
	if l == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Record(ctx, entry); err != nil && l.logger != nil {
			l.logger.Warn("audit record failed", slog.String("event", entry.Event), slog.Any("error", err))
		}
	}()
}

var _ AuditRecorder = (*AuditLogger)(nil)
