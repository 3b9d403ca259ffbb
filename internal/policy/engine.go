package policy

import (
	"fmt"
	"log/slog"
)

// LookupError describes a policy evaluation against an unknown module or
// role. The boolean engine API still answers false; the error is routed
// to a diagnostics sink so misconfigured callers are visible in logs.
type LookupError struct {
	Module Module
	Role   Role
	Reason string
}

func (e LookupError) Error() string {
	return fmt.Sprintf("policy: %s (module=%q role=%q)", e.Reason, e.Module, e.Role)
}

// Engine evaluates permissions against a policy table. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	table Table
	diag  func(LookupError)
}

// Option customises Engine construction.
type Option func(*Engine)

// WithTable replaces the default policy table.
func WithTable(t Table) Option {
	return func(e *Engine) { e.table = t }
}

// WithDiagnostics replaces the default slog-based diagnostics sink.
func WithDiagnostics(fn func(LookupError)) Option {
	return func(e *Engine) { e.diag = fn }
}

// NewEngine constructs an Engine over the default table unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		table: DefaultTable(),
		diag: func(err LookupError) {
			slog.Warn("policy lookup failed", slog.String("module", string(err.Module)), slog.String("role", string(err.Role)), slog.String("reason", err.Reason))
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasPermission reports whether the role may perform the action on the
// module. A present override entry for the module fully replaces the
// table entry; unknown modules and roles deny.
func (e *Engine) HasPermission(role Role, module Module, action Action, override OverrideMap) bool {
	set, ok := e.effectiveSet(role, module, override)
	if !ok {
		return false
	}
	return set.Has(action)
}

// CanAccessModule reports whether the effective action set for the role
// and module is non-empty.
func (e *Engine) CanAccessModule(role Role, module Module, override OverrideMap) bool {
	set, ok := e.effectiveSet(role, module, override)
	if !ok {
		return false
	}
	return !set.Empty()
}

// AccessibleModules returns the known modules the role can access, in
// declaration order.
func (e *Engine) AccessibleModules(role Role, override OverrideMap) []Module {
	modules := make([]Module, 0, len(moduleOrder))
	for _, m := range moduleOrder {
		if e.CanAccessModule(role, m, override) {
			modules = append(modules, m)
		}
	}
	return modules
}

// effectiveSet resolves the override-or-default action set. The second
// return is false when the module or role is unknown.
func (e *Engine) effectiveSet(role Role, module Module, override OverrideMap) (ActionSet, bool) {
	if override != nil {
		if set, ok := override[module]; ok {
			return set, true
		}
	}
	roleSets, ok := e.table[module]
	if !ok {
		e.report(LookupError{Module: module, Role: role, Reason: "module not in policy table"})
		return nil, false
	}
	set, ok := roleSets[role]
	if !ok {
		e.report(LookupError{Module: module, Role: role, Reason: "role not in policy table"})
		return nil, false
	}
	return set, true
}

func (e *Engine) report(err LookupError) {
	if e.diag != nil {
		e.diag(err)
	}
}

// RoleLevel returns the fixed hierarchy rank for the role, 0 when unknown.
func RoleLevel(role Role) int {
	return roleRanks[role]
}

// IsRoleAtLeast reports whether role ranks at or above target.
func IsRoleAtLeast(role, target Role) bool {
	return RoleLevel(role) >= RoleLevel(target)
}
