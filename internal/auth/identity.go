package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hq/meridian/internal/shared"
)

// IdentityProvider authenticates credentials and manages their
// lifecycle. It knows nothing about profiles or policy.
type IdentityProvider interface {
	// Authenticate verifies the email/secret pair and issues a
	// session credential.
	Authenticate(ctx context.Context, email, secret string) (Credential, error)
	// Validate checks a raw token and returns the credential it
	// carries, rejecting revoked or expired tokens.
	Validate(ctx context.Context, token string) (Credential, error)
	// Invalidate revokes the credential. Idempotent.
	Invalidate(ctx context.Context, cred Credential) error
}

// CredentialStore resolves login emails to password material.
type CredentialStore interface {
	// Lookup returns the account UID and bcrypt hash for the email,
	// shared.ErrNotFound when no account exists.
	Lookup(ctx context.Context, email string) (uid, passwordHash string, err error)
}

// PGCredentialStore reads credentials from PostgreSQL.
type PGCredentialStore struct {
	pool *pgxpool.Pool
}

// NewPGCredentialStore constructs a PGCredentialStore.
func NewPGCredentialStore(pool *pgxpool.Pool) *PGCredentialStore {
	return &PGCredentialStore{pool: pool}
}

// Lookup implements CredentialStore.
func (s *PGCredentialStore) Lookup(ctx context.Context, email string) (string, string, error) {
	var uid, hash string
	err := s.pool.QueryRow(ctx,
		`SELECT uid, password_hash FROM identity_credentials WHERE email = $1`, email,
	).Scan(&uid, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", shared.ErrNotFound
		}
		return "", "", fmt.Errorf("auth: lookup credential: %w", err)
	}
	return uid, hash, nil
}

var _ CredentialStore = (*PGCredentialStore)(nil)

type credentialClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// DirectoryProvider implements IdentityProvider over a credential store
// with signed JWT session tokens and a Redis revocation set.
type DirectoryProvider struct {
	creds  CredentialStore
	redis  *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDirectoryProvider constructs a DirectoryProvider.
func NewDirectoryProvider(creds CredentialStore, client *redis.Client, secret string, ttl time.Duration) *DirectoryProvider {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &DirectoryProvider{
		creds:  creds,
		redis:  client,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Authenticate implements IdentityProvider.
func (p *DirectoryProvider) Authenticate(ctx context.Context, email, secret string) (Credential, error) {
	uid, hash, err := p.creds.Lookup(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Credential{}, shared.ErrInvalidCredentials
		}
		return Credential{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return Credential{}, shared.ErrInvalidCredentials
	}

	issued := p.now().UTC()
	cred := Credential{
		ID:        uuid.NewString(),
		UID:       uid,
		Email:     email,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(p.ttl),
	}
	claims := credentialClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        cred.ID,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("auth: sign credential: %w", err)
	}
	cred.Token = token
	return cred, nil
}

// Validate implements IdentityProvider.
func (p *DirectoryProvider) Validate(ctx context.Context, token string) (Credential, error) {
	parsed, err := jwt.ParseWithClaims(token, &credentialClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return p.now().UTC() }))
	if err != nil || !parsed.Valid {
		return Credential{}, shared.ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(*credentialClaims)
	if !ok {
		return Credential{}, shared.ErrInvalidCredentials
	}

	revoked, err := p.redis.Exists(ctx, p.revocationKey(claims.ID)).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("auth: check revocation: %w", err)
	}
	if revoked > 0 {
		return Credential{}, shared.ErrInvalidCredentials
	}

	return Credential{
		Token:     token,
		ID:        claims.ID,
		UID:       claims.Subject,
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Invalidate implements IdentityProvider. The revocation entry lives
// until the token would have expired on its own.
func (p *DirectoryProvider) Invalidate(ctx context.Context, cred Credential) error {
	if cred.ID == "" {
		return nil
	}
	ttl := cred.ExpiresAt.Sub(p.now().UTC())
	if ttl <= 0 {
		return nil
	}
	if err := p.redis.Set(ctx, p.revocationKey(cred.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke credential: %w", err)
	}
	return nil
}

func (p *DirectoryProvider) revocationKey(id string) string {
	return "credential:revoked:" + id
}

var _ IdentityProvider = (*DirectoryProvider)(nil)
