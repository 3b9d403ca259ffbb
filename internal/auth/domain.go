package auth

import (
	"time"

	"github.com/meridian-hq/meridian/internal/policy"
)

// Status gates whether an account may authenticate.
type Status string

// Account statuses.
const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// User is the profile record backing an authenticated principal.
type User struct {
	UID               string
	Email             string
	MobileNumber      string
	FullName          string
	Role              policy.Role
	Department        string
	Status            Status
	CustomPermissions policy.OverrideMap
	CreatedAt         time.Time
	LastLogin         time.Time
	CreatedBy         string
}

// Credential is the session credential issued by the identity provider.
type Credential struct {
	Token     string
	ID        string
	UID       string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthResult is returned by a successful login.
type AuthResult struct {
	User       *User
	Credential Credential
}
