package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle position of a session.
type State int

const (
	// StateActive means the session has recent activity.
	StateActive State = iota
	// StateWarning means the warning has fired and expiry is near.
	StateWarning
	// StateExpired is terminal; a new session requires a fresh login.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ActivityKind tags the user event that refreshed the session. Any kind
// resets the clock; the tag exists for audit and metrics only.
type ActivityKind string

// Tracked activity events.
const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityScroll  ActivityKind = "scroll"
	ActivityTouch   ActivityKind = "touch"
	ActivityClick   ActivityKind = "click"
	ActivityRequest ActivityKind = "request"
)

// ErrExpired is returned when an operation reaches a terminal session.
var ErrExpired = errors.New("session: expired")

// ControllerConfig collects Controller dependencies.
type ControllerConfig struct {
	SessionID    string
	Store        Store
	Logger       *slog.Logger
	Timeout      time.Duration // defaults to DefaultTimeout
	TickInterval time.Duration // defaults to DefaultTickInterval
	Now          func() time.Time
	// OnWarning receives the remaining time when the session enters
	// the warning window. Fires at most once per inactivity period.
	OnWarning func(remaining time.Duration)
	// OnExpire runs exactly once when the session expires. It is
	// expected to force logout.
	OnExpire func()
}

// Controller drives the session lifecycle state machine: periodic
// expiry checks, warning emission and forced logout. It exclusively
// owns the activity record for its session.
type Controller struct {
	sessionID    string
	store        Store
	logger       *slog.Logger
	timeout      time.Duration
	tickInterval time.Duration
	now          func() time.Time
	onWarning    func(time.Duration)
	onExpire     func()

	mu      sync.Mutex
	state   State
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewController constructs a Controller and stamps the initial activity
// record.
func NewController(ctx context.Context, cfg ControllerConfig) (*Controller, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session: controller requires a session ID")
	}
	if cfg.Store == nil {
		return nil, errors.New("session: controller requires a store")
	}
	c := &Controller{
		sessionID:    cfg.SessionID,
		store:        cfg.Store,
		logger:       cfg.Logger,
		timeout:      cfg.Timeout,
		tickInterval: cfg.TickInterval,
		now:          cfg.Now,
		onWarning:    cfg.OnWarning,
		onExpire:     cfg.OnExpire,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.tickInterval <= 0 {
		c.tickInterval = DefaultTickInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if err := c.store.SaveActivity(ctx, c.sessionID, c.now().UTC()); err != nil {
		return nil, err
	}
	return c, nil
}

// Start launches the periodic expiry check. It returns immediately; the
// check stops when ctx is cancelled or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				if c.tick(ctx) {
					return
				}
			}
		}
	}()
}

// Stop cancels the periodic check. Safe to call repeatedly and after
// expiry.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stop)
	}
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RecordActivity stamps a tracked user event. In the warning state it
// returns the session to active and re-arms the warning.
func (c *Controller) RecordActivity(ctx context.Context, kind ActivityKind) error {
	c.mu.Lock()
	if c.state == StateExpired {
		c.mu.Unlock()
		return ErrExpired
	}
	c.state = StateActive
	c.mu.Unlock()

	if err := c.store.SaveActivity(ctx, c.sessionID, c.now().UTC()); err != nil {
		return err
	}
	c.logger.Debug("session activity", slog.String("session_id", c.sessionID), slog.String("kind", string(kind)))
	return nil
}

// Remaining reports the time left before expiry.
func (c *Controller) Remaining(ctx context.Context) (time.Duration, error) {
	record, ok, err := c.store.Load(ctx, c.sessionID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrExpired
	}
	return Remaining(record.LastActivity, c.now().UTC(), c.timeout), nil
}

// tick evaluates expiry and warning against one time snapshot. It
// returns true when the session expired and the loop should stop.
func (c *Controller) tick(ctx context.Context) bool {
	now := c.now().UTC()

	record, ok, err := c.store.Load(ctx, c.sessionID)
	if err != nil {
		c.logger.Warn("session tick: load record", slog.String("session_id", c.sessionID), slog.Any("error", err))
		return false
	}
	if !ok {
		// Record evaporated (TTL or external clear); treat as expired.
		record = Record{LastActivity: now.Add(-c.timeout)}
	}

	if IsExpired(record.LastActivity, now, c.timeout) {
		c.expire(ctx)
		return true
	}

	if ShouldWarn(record.LastActivity, now, c.timeout, record.WarningShown) {
		c.mu.Lock()
		c.state = StateWarning
		c.mu.Unlock()
		if err := c.store.MarkWarned(ctx, c.sessionID); err != nil {
			c.logger.Warn("session tick: mark warned", slog.String("session_id", c.sessionID), slog.Any("error", err))
		}
		if c.onWarning != nil {
			c.onWarning(Remaining(record.LastActivity, now, c.timeout))
		}
	}
	return false
}

func (c *Controller) expire(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateExpired {
		c.mu.Unlock()
		return
	}
	c.state = StateExpired
	c.mu.Unlock()

	if err := c.store.Clear(ctx, c.sessionID); err != nil {
		c.logger.Warn("session expire: clear record", slog.String("session_id", c.sessionID), slog.Any("error", err))
	}
	c.logger.Info("session expired", slog.String("session_id", c.sessionID))
	if c.onExpire != nil {
		c.onExpire()
	}
	c.Stop()
}
