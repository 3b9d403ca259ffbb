package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrIdentifierNotFound indicates a phone-style login identifier
	// with no matching profile.
	ErrIdentifierNotFound = errors.New("no account matches that phone number")
	// ErrInvalidCredentials indicates the identity provider rejected
	// the credential/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountBlocked indicates the profile exists but is blocked.
	ErrAccountBlocked = errors.New("account is blocked")
	// ErrProfileStoreUnavailable indicates a transient profile store
	// failure.
	ErrProfileStoreUnavailable = errors.New("profile store unavailable")
)
