package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-hq/meridian/internal/session"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention is the task type for purging aged audit rows.
	TaskAuditRetention = "audit:retention"
	// TaskSessionSweep is the task type for sweeping orphaned session
	// activity records.
	TaskSessionSweep = "session:sweep"
)

// AuditRetentionPayload controls how far back audit rows are kept.
type AuditRetentionPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditRetentionTask constructs an Asynq task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// NewAuditRetentionHandler purges auth audit rows older than the
// payload's retention window.
func NewAuditRetentionHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditRetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionHours <= 0 {
			return asynq.SkipRetry
		}
		cutoff := time.Now().UTC().Add(-time.Duration(payload.RetentionHours) * time.Hour)
		tag, err := pool.Exec(ctx, `DELETE FROM auth_audit_logs WHERE occurred_at < $1`, cutoff)
		if err != nil {
			return err
		}
		logger.Info("audit retention sweep",
			slog.Time("cutoff", cutoff),
			slog.Int64("deleted", tag.RowsAffected()))
		return nil
	}
}

// NewSessionSweepTask constructs an Asynq task.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}

// NewSessionSweepHandler deletes session activity records whose owner
// went idle past the timeout. Redis key TTLs cover the normal path;
// the sweep catches records whose TTL was never set because a write
// was interrupted.
func NewSessionSweepHandler(client *redis.Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var (
			cursor  uint64
			swept   int
			scanned int
		)
		now := time.Now().UTC()
		for {
			keys, next, err := client.Scan(ctx, cursor, "session:activity:*", 100).Result()
			if err != nil {
				return err
			}
			for _, key := range keys {
				scanned++
				stale, err := sessionRecordStale(ctx, client, key, now)
				if err != nil {
					logger.Warn("session sweep read", slog.String("key", key), slog.Any("error", err))
					continue
				}
				if !stale {
					continue
				}
				if err := client.Del(ctx, key).Err(); err != nil {
					logger.Warn("session sweep delete", slog.String("key", key), slog.Any("error", err))
					continue
				}
				swept++
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		logger.Info("session sweep", slog.Int("scanned", scanned), slog.Int("swept", swept))
		return nil
	}
}

func sessionRecordStale(ctx context.Context, client *redis.Client, key string, now time.Time) (bool, error) {
	fields, err := client.HMGet(ctx, key, "lastActivityTime", "sessionTimeout").Result()
	if err != nil {
		return false, err
	}
	last, ok := fields[0].(string)
	if !ok {
		// Malformed record, treat as stale.
		return true, nil
	}
	lastMs, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return true, nil
	}
	timeout := session.DefaultTimeout
	if raw, ok := fields[1].(string); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}
	idle := now.Sub(time.UnixMilli(lastMs))
	return idle > timeout+session.WarningWindow, nil
}
