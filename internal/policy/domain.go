package policy

import "fmt"

// Role represents a user category with a fixed hierarchy rank.
type Role string

// Known roles, ordered by rank.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
	RoleIntern   Role = "intern"
)

var roleRanks = map[Role]int{
	RoleAdmin:    5,
	RoleManager:  4,
	RoleHR:       3,
	RoleEmployee: 2,
	RoleIntern:   1,
}

// Roles returns every known role in descending rank order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleHR, RoleEmployee, RoleIntern}
}

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("policy: unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether the role is a member of the closed set.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Action is an atomic capability token. The engine does not interpret
// action semantics beyond set membership.
type Action string

// Known actions.
const (
	ActionCreate        Action = "create"
	ActionRead          Action = "read"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionExport        Action = "export"
	ActionManage        Action = "manage"
	ActionBlock         Action = "block"
	ActionResetPassword Action = "reset_password"
)

var knownActions = map[Action]struct{}{
	ActionCreate:        {},
	ActionRead:          {},
	ActionUpdate:        {},
	ActionDelete:        {},
	ActionExport:        {},
	ActionManage:        {},
	ActionBlock:         {},
	ActionResetPassword: {},
}

// Actions returns every known action.
func Actions() []Action {
	return []Action{
		ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionExport, ActionManage, ActionBlock, ActionResetPassword,
	}
}

// ParseAction validates a raw action string.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("policy: unknown action %q", s)
	}
	return a, nil
}

// Valid reports whether the action is a member of the closed set.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// Module names a protected resource or subsystem. The set of modules is
// closed and known at build time.
type Module string

// Known modules.
const (
	ModuleDashboard      Module = "dashboard"
	ModuleSales          Module = "sales"
	ModuleProjects       Module = "projects"
	ModuleInventory      Module = "inventory"
	ModuleFinance        Module = "finance"
	ModuleReports        Module = "reports"
	ModuleUserManagement Module = "user-management"
)

// moduleOrder fixes the iteration order used by AccessibleModules.
var moduleOrder = []Module{
	ModuleDashboard,
	ModuleSales,
	ModuleProjects,
	ModuleInventory,
	ModuleFinance,
	ModuleReports,
	ModuleUserManagement,
}

// Modules returns every known module in declaration order.
func Modules() []Module {
	out := make([]Module, len(moduleOrder))
	copy(out, moduleOrder)
	return out
}

// ParseModule validates a raw module string.
func ParseModule(s string) (Module, error) {
	m := Module(s)
	if !m.Valid() {
		return "", fmt.Errorf("policy: unknown module %q", s)
	}
	return m, nil
}

// Valid reports whether the module is a member of the closed set.
func (m Module) Valid() bool {
	for _, known := range moduleOrder {
		if m == known {
			return true
		}
	}
	return false
}

// ActionSet is an unordered collection of actions.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Has reports set membership.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// Empty reports whether the set grants nothing.
func (s ActionSet) Empty() bool {
	return len(s) == 0
}

// Slice returns the actions in the fixed declaration order of Actions.
func (s ActionSet) Slice() []Action {
	out := make([]Action, 0, len(s))
	for _, a := range Actions() {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// OverrideMap replaces the default policy for specific modules. A present
// entry fully replaces the table entry for that module; absent entries
// fall back to the table.
type OverrideMap map[Module]ActionSet
