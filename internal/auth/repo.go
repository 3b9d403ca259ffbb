package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hq/meridian/internal/policy"
	"github.com/meridian-hq/meridian/internal/shared"
)

// ProfileRepository defines persistence operations for user profiles.
type ProfileRepository interface {
	GetByUID(ctx context.Context, uid string) (*User, error)
	FindByMobile(ctx context.Context, mobile string) (*User, error)
	// Create provisions the profile as a single atomic insert.
	Create(ctx context.Context, user *User) error
	UpdateLastLogin(ctx context.Context, uid string, at time.Time) error
	UpdateStatus(ctx context.Context, uid string, status Status) error
	UpdateRole(ctx context.Context, uid string, role policy.Role) error
	UpdateOverrides(ctx context.Context, uid string, overrides policy.OverrideMap) error
}

// PGProfileRepository implements ProfileRepository using PostgreSQL.
type PGProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository constructs a PostgreSQL repository.
func NewProfileRepository(pool *pgxpool.Pool) *PGProfileRepository {
	return &PGProfileRepository{pool: pool}
}

const profileColumns = `uid, email, mobile_number, full_name, role, department, status, custom_permissions, created_at, last_login, created_by`

// GetByUID fetches a profile by its UID.
func (r *PGProfileRepository) GetByUID(ctx context.Context, uid string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE uid = $1`, uid)
	return scanProfile(row)
}

// FindByMobile fetches a profile whose mobile number equals the given
// value.
func (r *PGProfileRepository) FindByMobile(ctx context.Context, mobile string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE mobile_number = $1`, mobile)
	return scanProfile(row)
}

// Create inserts a new profile.
func (r *PGProfileRepository) Create(ctx context.Context, user *User) error {
	overrides, err := marshalOverrides(user.CustomPermissions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO user_profiles (`+profileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.UID, user.Email, user.MobileNumber, user.FullName, string(user.Role), user.Department,
		string(user.Status), overrides,
		pgtype.Timestamptz{Time: user.CreatedAt.UTC(), Valid: !user.CreatedAt.IsZero()},
		pgtype.Timestamptz{Time: user.LastLogin.UTC(), Valid: !user.LastLogin.IsZero()},
		user.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("auth: create profile: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the most recent login time.
func (r *PGProfileRepository) UpdateLastLogin(ctx context.Context, uid string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE user_profiles SET last_login = $2 WHERE uid = $1`, uid, at.UTC())
	if err != nil {
		return fmt.Errorf("auth: update last login: %w", err)
	}
	return nil
}

// UpdateStatus changes the account status.
func (r *PGProfileRepository) UpdateStatus(ctx context.Context, uid string, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_profiles SET status = $2 WHERE uid = $1`, uid, string(status))
	if err != nil {
		return fmt.Errorf("auth: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateRole changes the profile role.
func (r *PGProfileRepository) UpdateRole(ctx context.Context, uid string, role policy.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_profiles SET role = $2 WHERE uid = $1`, uid, string(role))
	if err != nil {
		return fmt.Errorf("auth: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateOverrides replaces the per-user custom permission map.
func (r *PGProfileRepository) UpdateOverrides(ctx context.Context, uid string, overrides policy.OverrideMap) error {
	payload, err := marshalOverrides(overrides)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE user_profiles SET custom_permissions = $2 WHERE uid = $1`, uid, payload)
	if err != nil {
		return fmt.Errorf("auth: update overrides: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*User, error) {
	var (
		user      User
		role      string
		status    string
		overrides []byte
		createdAt pgtype.Timestamptz
		lastLogin pgtype.Timestamptz
	)
	err := row.Scan(&user.UID, &user.Email, &user.MobileNumber, &user.FullName, &role,
		&user.Department, &status, &overrides, &createdAt, &lastLogin, &user.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: scan profile: %w", err)
	}
	user.Role = policy.Role(role)
	user.Status = Status(status)
	user.CreatedAt = createdAt.Time
	user.LastLogin = lastLogin.Time
	user.CustomPermissions, err = unmarshalOverrides(overrides)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func marshalOverrides(overrides policy.OverrideMap) ([]byte, error) {
	if overrides == nil {
		return nil, nil
	}
	raw := make(map[string][]string, len(overrides))
	for module, set := range overrides {
		actions := make([]string, 0, len(set))
		for _, a := range set.Slice() {
			actions = append(actions, string(a))
		}
		raw[string(module)] = actions
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("auth: marshal overrides: %w", err)
	}
	return payload, nil
}

func unmarshalOverrides(payload []byte) (policy.OverrideMap, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("auth: unmarshal overrides: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	overrides := make(policy.OverrideMap, len(raw))
	for moduleRaw, actionsRaw := range raw {
		module, err := policy.ParseModule(moduleRaw)
		if err != nil {
			return nil, err
		}
		actions := make([]policy.Action, 0, len(actionsRaw))
		for _, actionRaw := range actionsRaw {
			action, err := policy.ParseAction(actionRaw)
			if err != nil {
				return nil, err
			}
			actions = append(actions, action)
		}
		overrides[module] = policy.NewActionSet(actions...)
	}
	return overrides, nil
}

var _ ProfileRepository = (*PGProfileRepository)(nil)
