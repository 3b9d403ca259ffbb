package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hq/meridian/internal/auth"
	"github.com/meridian-hq/meridian/internal/shared"
)

type stubCredentialStore struct {
	uid   string
	hash  string
	email string
}

func (s *stubCredentialStore) Lookup(_ context.Context, email string) (string, string, error) {
	if email != s.email {
		return "", "", shared.ErrNotFound
	}
	return s.uid, s.hash, nil
}

func newDirectoryProvider(t *testing.T) *auth.DirectoryProvider {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &stubCredentialStore{uid: "uid-1", hash: string(hash), email: "dewi@meridian.local"}
	return auth.NewDirectoryProvider(store, client, "test-signing-secret", time.Hour)
}

func TestDirectoryProviderAuthenticate(t *testing.T) {
	provider := newDirectoryProvider(t)
	ctx := context.Background()

	cred, err := provider.Authenticate(ctx, "dewi@meridian.local", "correct horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if cred.UID != "uid-1" || cred.Email != "dewi@meridian.local" {
		t.Fatalf("credential = %+v", cred)
	}
	if cred.Token == "" || cred.ID == "" {
		t.Fatal("credential must carry a token and an id")
	}
	if !cred.ExpiresAt.After(cred.IssuedAt) {
		t.Fatalf("expiry %v not after issue %v", cred.ExpiresAt, cred.IssuedAt)
	}

	if _, err := provider.Authenticate(ctx, "dewi@meridian.local", "wrong"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	// Unknown accounts are indistinguishable from bad passwords.
	if _, err := provider.Authenticate(ctx, "nobody@meridian.local", "correct horse"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("unknown account: err = %v", err)
	}
}

func TestDirectoryProviderValidateRoundTrip(t *testing.T) {
	provider := newDirectoryProvider(t)
	ctx := context.Background()

	issued, err := provider.Authenticate(ctx, "dewi@meridian.local", "correct horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	got, err := provider.Validate(ctx, issued.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ID != issued.ID || got.UID != issued.UID || got.Email != issued.Email {
		t.Fatalf("validated credential = %+v, issued %+v", got, issued)
	}

	if _, err := provider.Validate(ctx, "not-a-token"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("garbage token: err = %v", err)
	}
	if _, err := provider.Validate(ctx, issued.Token+"x"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("tampered token: err = %v", err)
	}
}

func TestDirectoryProviderInvalidateRevokes(t *testing.T) {
	provider := newDirectoryProvider(t)
	ctx := context.Background()

	cred, err := provider.Authenticate(ctx, "dewi@meridian.local", "correct horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := provider.Invalidate(ctx, cred); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := provider.Validate(ctx, cred.Token); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("revoked token must not validate, err = %v", err)
	}

	// Revoking twice, or revoking a zero credential, is harmless.
	if err := provider.Invalidate(ctx, cred); err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
	if err := provider.Invalidate(ctx, auth.Credential{}); err != nil {
		t.Fatalf("zero credential invalidate: %v", err)
	}
}
