package session

import (
	"testing"
	"time"
)

func TestRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := Remaining(now.Add(-10*time.Minute), now, 30*time.Minute); got != 20*time.Minute {
		t.Errorf("Remaining = %v, want 20m", got)
	}
	if got := Remaining(now.Add(-31*time.Minute), now, 30*time.Minute); got != 0 {
		t.Errorf("Remaining past expiry = %v, want 0", got)
	}
	if got := Remaining(now, now, 30*time.Minute); got != 30*time.Minute {
		t.Errorf("Remaining at activity = %v, want 30m", got)
	}
}

func TestExpiryAndWarningWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	timeout := 30 * time.Minute

	// 29 minutes idle: inside the warning window, not expired.
	last := now.Add(-29 * time.Minute)
	if IsExpired(last, now, timeout) {
		t.Error("29m idle should not be expired")
	}
	if !ShouldWarn(last, now, timeout, false) {
		t.Error("29m idle should warn")
	}
	// Warning fires once per inactivity period.
	if ShouldWarn(last, now, timeout, true) {
		t.Error("warning must not repeat while the flag is set")
	}

	// 31 minutes idle: expired, and expiry suppresses the warning.
	last = now.Add(-31 * time.Minute)
	if !IsExpired(last, now, timeout) {
		t.Error("31m idle should be expired")
	}
	if ShouldWarn(last, now, timeout, false) {
		t.Error("expired sessions do not warn")
	}

	// 10 minutes idle: outside the warning window.
	last = now.Add(-10 * time.Minute)
	if ShouldWarn(last, now, timeout, false) {
		t.Error("10m idle is outside the warning window")
	}

	// Exactly 25 minutes idle: boundary of the window, should warn.
	last = now.Add(-25 * time.Minute)
	if !ShouldWarn(last, now, timeout, false) {
		t.Error("remaining == warning window should warn")
	}
}
