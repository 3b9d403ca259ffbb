package session

import "time"

const (
	// DefaultTimeout is the inactivity window before forced logout.
	DefaultTimeout = 30 * time.Minute
	// WarningWindow is how long before expiry the warning fires.
	WarningWindow = 5 * time.Minute
	// DefaultTickInterval is how often expiry is re-evaluated.
	DefaultTickInterval = 30 * time.Second
)

// Remaining returns the time left before the session expires, never
// negative.
func Remaining(lastActivity, now time.Time, timeout time.Duration) time.Duration {
	left := timeout - now.Sub(lastActivity)
	if left < 0 {
		return 0
	}
	return left
}

// IsExpired reports whether the inactivity window has fully elapsed.
func IsExpired(lastActivity, now time.Time, timeout time.Duration) bool {
	return Remaining(lastActivity, now, timeout) == 0
}

// ShouldWarn reports whether the expiry warning should fire. It is true
// only inside the warning window and only once per inactivity period;
// the flag re-arms when activity resets lastActivity.
func ShouldWarn(lastActivity, now time.Time, timeout time.Duration, warningShown bool) bool {
	if warningShown {
		return false
	}
	left := Remaining(lastActivity, now, timeout)
	return left > 0 && left <= WarningWindow
}
