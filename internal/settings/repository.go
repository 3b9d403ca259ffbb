package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hq/meridian/internal/policy"
)

// Repository defines persistence for the role-policy document.
type Repository interface {
	Get(ctx context.Context) (RolePolicy, error)
	// Save replaces the whole document in one write.
	Save(ctx context.Context, doc RolePolicy) error
}

// PGRepository stores the document as a single JSONB row.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// The document is a singleton row keyed by a fixed ID.
const docID = "role-policy"

// Get implements Repository. A missing row yields an empty document.
func (r *PGRepository) Get(ctx context.Context) (RolePolicy, error) {
	var (
		payload     []byte
		updatedBy   string
		lastUpdated time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT custom_permissions, last_updated_by, last_updated FROM policy_settings WHERE id = $1`, docID,
	).Scan(&payload, &updatedBy, &lastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RolePolicy{}, nil
		}
		return RolePolicy{}, fmt.Errorf("settings: get document: %w", err)
	}
	perms, err := unmarshalRolePermissions(payload)
	if err != nil {
		return RolePolicy{}, err
	}
	return RolePolicy{
		CustomPermissions: perms,
		LastUpdatedBy:     updatedBy,
		LastUpdated:       lastUpdated,
	}, nil
}

// Save implements Repository.
func (r *PGRepository) Save(ctx context.Context, doc RolePolicy) error {
	payload, err := marshalRolePermissions(doc.CustomPermissions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO policy_settings (id, custom_permissions, last_updated_by, last_updated)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET custom_permissions = $2, last_updated_by = $3, last_updated = $4`,
		docID, payload, doc.LastUpdatedBy, doc.LastUpdated.UTC())
	if err != nil {
		return fmt.Errorf("settings: save document: %w", err)
	}
	return nil
}

func marshalRolePermissions(perms map[policy.Role]policy.OverrideMap) ([]byte, error) {
	raw := make(map[string]map[string][]string, len(perms))
	for role, overrides := range perms {
		modules := make(map[string][]string, len(overrides))
		for module, set := range overrides {
			actions := make([]string, 0, len(set))
			for _, a := range set.Slice() {
				actions = append(actions, string(a))
			}
			modules[string(module)] = actions
		}
		raw[string(role)] = modules
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("settings: marshal document: %w", err)
	}
	return payload, nil
}

func unmarshalRolePermissions(payload []byte) (map[policy.Role]policy.OverrideMap, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var raw map[string]map[string][]string
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("settings: unmarshal document: %w", err)
	}
	perms := make(map[policy.Role]policy.OverrideMap, len(raw))
	for roleRaw, modulesRaw := range raw {
		role, err := policy.ParseRole(roleRaw)
		if err != nil {
			return nil, err
		}
		overrides := make(policy.OverrideMap, len(modulesRaw))
		for moduleRaw, actionsRaw := range modulesRaw {
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
		perms[role] = overrides
	}
	return perms, nil
}

var _ Repository = (*PGRepository)(nil)
