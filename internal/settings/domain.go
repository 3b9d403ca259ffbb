package settings

import (
	"time"

	"github.com/meridian-hq/meridian/internal/policy"
)

// RolePolicy is the administrator-wide override document: role-level
// replacements of the default policy table, distinct from per-user
// overrides. A present module entry fully replaces the table entry for
// that role and module.
type RolePolicy struct {
	CustomPermissions map[policy.Role]policy.OverrideMap
	LastUpdatedBy     string
	LastUpdated       time.Time
}

// OverridesFor returns the role's override map, nil when the document
// holds nothing for the role.
func (p RolePolicy) OverridesFor(role policy.Role) policy.OverrideMap {
	if p.CustomPermissions == nil {
		return nil
	}
	return p.CustomPermissions[role]
}
