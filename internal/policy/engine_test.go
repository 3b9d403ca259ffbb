package policy

import "testing"

func TestHasPermissionMatchesTable(t *testing.T) {
	engine := NewEngine()
	table := DefaultTable()

	for module, roleSets := range table {
		for role, set := range roleSets {
			for _, action := range Actions() {
				got := engine.HasPermission(role, module, action, nil)
				want := set.Has(action)
				if got != want {
					t.Errorf("HasPermission(%s, %s, %s) = %v, want %v", role, module, action, got, want)
				}
			}
		}
	}
}

func TestHasPermissionOverrideReplacesDefault(t *testing.T) {
	engine := NewEngine()

	// Manager's finance defaults include create/read/update, but an
	// override naming only read must deny everything else.
	override := OverrideMap{ModuleFinance: NewActionSet(ActionRead)}

	if !engine.HasPermission(RoleManager, ModuleFinance, ActionRead, override) {
		t.Fatal("expected read permission from override")
	}
	if engine.HasPermission(RoleManager, ModuleFinance, ActionCreate, override) {
		t.Fatal("override must replace defaults, not merge: create should be denied")
	}
	if engine.HasPermission(RoleManager, ModuleFinance, ActionUpdate, override) {
		t.Fatal("override must replace defaults, not merge: update should be denied")
	}
}

func TestOverrideOnlyAffectsItsModule(t *testing.T) {
	engine := NewEngine()
	override := OverrideMap{ModuleFinance: NewActionSet()}

	if engine.CanAccessModule(RoleAdmin, ModuleFinance, override) {
		t.Fatal("empty override set should deny module access")
	}
	if !engine.HasPermission(RoleAdmin, ModuleSales, ActionManage, override) {
		t.Fatal("modules without an override entry must fall back to the table")
	}
}

func TestUnknownModuleAndRoleDeny(t *testing.T) {
	var diags []LookupError
	engine := NewEngine(WithDiagnostics(func(err LookupError) {
		diags = append(diags, err)
	}))

	if engine.HasPermission(RoleAdmin, Module("payroll"), ActionRead, nil) {
		t.Fatal("unknown module must deny")
	}
	if engine.HasPermission(Role("contractor"), ModuleSales, ActionRead, nil) {
		t.Fatal("unknown role must deny")
	}
	if engine.CanAccessModule(Role("contractor"), ModuleSales, nil) {
		t.Fatal("unknown role must deny module access")
	}
	if len(diags) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(diags))
	}
	if diags[0].Reason != "module not in policy table" {
		t.Errorf("unexpected reason: %s", diags[0].Reason)
	}
}

func TestAccessibleModulesConsistentWithCanAccess(t *testing.T) {
	engine := NewEngine()

	for _, role := range Roles() {
		accessible := make(map[Module]bool)
		for _, m := range engine.AccessibleModules(role, nil) {
			accessible[m] = true
		}
		for _, m := range Modules() {
			if engine.CanAccessModule(role, m, nil) != accessible[m] {
				t.Errorf("role %s module %s: CanAccessModule disagrees with AccessibleModules", role, m)
			}
		}
	}
}

func TestAccessibleModulesDeterministicOrder(t *testing.T) {
	engine := NewEngine()
	first := engine.AccessibleModules(RoleManager, nil)
	second := engine.AccessibleModules(RoleManager, nil)
	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("order differs at %d: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestRoleHierarchy(t *testing.T) {
	for _, role := range Roles() {
		if !IsRoleAtLeast(role, role) {
			t.Errorf("IsRoleAtLeast(%s, %s) should be reflexive", role, role)
		}
	}
	if !IsRoleAtLeast(RoleAdmin, RoleIntern) {
		t.Error("admin should outrank intern")
	}
	if IsRoleAtLeast(RoleIntern, RoleAdmin) {
		t.Error("intern should not outrank admin")
	}
	if RoleLevel(Role("contractor")) != 0 {
		t.Error("unknown role should rank 0")
	}
}
