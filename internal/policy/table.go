package policy

// Table maps module and role to the default allowed action set. Every
// module present carries an entry for every role; an empty set means no
// access. Modules absent from a table are inaccessible to every role.
type Table map[Module]map[Role]ActionSet

// DefaultTable returns the built-in policy defaults.
func DefaultTable() Table {
	return Table{
		ModuleDashboard: {
			RoleAdmin:    NewActionSet(ActionRead, ActionExport, ActionManage),
			RoleManager:  NewActionSet(ActionRead, ActionExport),
			RoleHR:       NewActionSet(ActionRead),
			RoleEmployee: NewActionSet(ActionRead),
			RoleIntern:   NewActionSet(ActionRead),
		},
		ModuleSales: {
			RoleAdmin:    NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport, ActionManage),
			RoleManager:  NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport),
			RoleHR:       NewActionSet(),
			RoleEmployee: NewActionSet(ActionCreate, ActionRead, ActionUpdate),
			RoleIntern:   NewActionSet(ActionRead),
		},
		ModuleProjects: {
			RoleAdmin:    NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport, ActionManage),
			RoleManager:  NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport),
			RoleHR:       NewActionSet(ActionRead),
			RoleEmployee: NewActionSet(ActionCreate, ActionRead, ActionUpdate),
			RoleIntern:   NewActionSet(ActionRead),
		},
		ModuleInventory: {
			RoleAdmin:    NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport, ActionManage),
			RoleManager:  NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionExport),
			RoleHR:       NewActionSet(),
			RoleEmployee: NewActionSet(ActionRead, ActionUpdate),
			RoleIntern:   NewActionSet(ActionRead),
		},
		ModuleFinance: {
			RoleAdmin:    NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport, ActionManage),
			RoleManager:  NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionExport),
			RoleHR:       NewActionSet(ActionRead),
			RoleEmployee: NewActionSet(),
			RoleIntern:   NewActionSet(),
		},
		ModuleReports: {
			RoleAdmin:    NewActionSet(ActionRead, ActionExport, ActionManage),
			RoleManager:  NewActionSet(ActionRead, ActionExport),
			RoleHR:       NewActionSet(ActionRead, ActionExport),
			RoleEmployee: NewActionSet(ActionRead),
			RoleIntern:   NewActionSet(),
		},
		ModuleUserManagement: {
			RoleAdmin:    NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage, ActionBlock, ActionResetPassword),
			RoleManager:  NewActionSet(ActionRead),
			RoleHR:       NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionResetPassword),
			RoleEmployee: NewActionSet(),
			RoleIntern:   NewActionSet(),
		},
	}
}
