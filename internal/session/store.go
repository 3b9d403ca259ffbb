package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage field names, mirroring the client-local storage keys. All
// three are removed together on logout or expiry.
const (
	fieldLastActivity = "lastActivityTime"
	fieldTimeout      = "sessionTimeout"
	fieldWarningShown = "sessionWarningShown"
)

// Record is the per-session activity state tracked for timeout
// enforcement.
type Record struct {
	LastActivity time.Time
	WarningShown bool
}

// Store persists per-session activity records.
type Store interface {
	// Load returns the record and whether one exists.
	Load(ctx context.Context, sessionID string) (Record, bool, error)
	// SaveActivity stamps the last-activity time and clears the
	// warning flag in one write.
	SaveActivity(ctx context.Context, sessionID string, at time.Time) error
	// MarkWarned sets the warning-shown flag.
	MarkWarned(ctx context.Context, sessionID string) error
	// Clear removes the record entirely.
	Clear(ctx context.Context, sessionID string) error
}

// RedisStore keeps activity records in a Redis hash per session.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore constructs a RedisStore. The timeout bounds the key TTL
// so abandoned records evaporate on their own.
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RedisStore{client: client, timeout: timeout}
}

func (s *RedisStore) key(sessionID string) string {
	return "session:activity:" + sessionID
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (Record, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("session: load record: %w", err)
	}
	raw, ok := fields[fieldLastActivity]
	if !ok {
		return Record{}, false, nil
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("session: parse last activity: %w", err)
	}
	_, warned := fields[fieldWarningShown]
	return Record{
		LastActivity: time.UnixMilli(millis).UTC(),
		WarningShown: warned,
	}, true, nil
}

// SaveActivity implements Store.
func (s *RedisStore) SaveActivity(ctx context.Context, sessionID string, at time.Time) error {
	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldLastActivity, strconv.FormatInt(at.UnixMilli(), 10),
		fieldTimeout, strconv.FormatInt(int64(s.timeout/time.Millisecond), 10),
	)
	pipe.HDel(ctx, key, fieldWarningShown)
	pipe.Expire(ctx, key, s.timeout+WarningWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: save activity: %w", err)
	}
	return nil
}

// MarkWarned implements Store.
func (s *RedisStore) MarkWarned(ctx context.Context, sessionID string) error {
	if err := s.client.HSet(ctx, s.key(sessionID), fieldWarningShown, "1").Err(); err != nil {
		return fmt.Errorf("session: mark warned: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: clear record: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
