package policy

import "testing"

func TestDefaultTableCoversEveryRole(t *testing.T) {
	table := DefaultTable()
	for module, roleSets := range table {
		for _, role := range Roles() {
			if _, ok := roleSets[role]; !ok {
				t.Errorf("module %s is missing an entry for role %s", module, role)
			}
		}
		if len(roleSets) != len(Roles()) {
			t.Errorf("module %s has %d role entries, want %d", module, len(roleSets), len(Roles()))
		}
	}
	for _, module := range Modules() {
		if _, ok := table[module]; !ok {
			t.Errorf("known module %s is absent from the default table", module)
		}
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseRole("contractor"); err == nil {
		t.Error("expected error for unknown role")
	}
	if _, err := ParseAction("approve"); err == nil {
		t.Error("expected error for unknown action")
	}
	if _, err := ParseModule("payroll"); err == nil {
		t.Error("expected error for unknown module")
	}
	if r, err := ParseRole("hr"); err != nil || r != RoleHR {
		t.Errorf("ParseRole(hr) = %v, %v", r, err)
	}
	if a, err := ParseAction("reset_password"); err != nil || a != ActionResetPassword {
		t.Errorf("ParseAction(reset_password) = %v, %v", a, err)
	}
}

func TestActionSetSlice(t *testing.T) {
	set := NewActionSet(ActionManage, ActionCreate, ActionRead)
	got := set.Slice()
	want := []Action{ActionCreate, ActionRead, ActionManage}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slice[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
