package rbac

// Built-in catalog of the security console. Permissions and roles are
// static data fixed at process start.

var builtinPermissions = []Permission{
	{ID: "p1", Name: "View Dashboard", Description: "Access to main dashboard", Resource: "dashboard", Action: ActionRead},
	{ID: "p2", Name: "Manage Incidents", Description: "Create and update incidents", Resource: "incidents", Action: ActionWrite},
	{ID: "p3", Name: "View Reports", Description: "Access to security reports", Resource: "reports", Action: ActionRead},
	{ID: "p4", Name: "Manage Users", Description: "Create and manage user accounts", Resource: "users", Action: ActionWrite},
	{ID: "p5", Name: "System Configuration", Description: "Configure system settings", Resource: "system", Action: ActionWrite},
	{ID: "p6", Name: "Block IPs", Description: "Block and unblock IP addresses", Resource: "network", Action: ActionExecute},
	{ID: "p7", Name: "View Alerts", Description: "View security alerts", Resource: "alerts", Action: ActionRead},
	{ID: "p8", Name: "Acknowledge Alerts", Description: "Acknowledge and resolve alerts", Resource: "alerts", Action: ActionWrite},
}

func builtinRoles() []Role {
	return []Role{
		{
			ID:          "r1",
			Name:        "Security Administrator",
			Description: "Full system access and user management",
			Level:       1,
			Permissions: permissionsByID("p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"),
		},
		{
			ID:          "r2",
			Name:        "Security Manager",
			Description: "Manage incidents and view reports",
			Level:       2,
			Permissions: permissionsByID("p1", "p2", "p3", "p6", "p7", "p8"),
		},
		{
			ID:          "r3",
			Name:        "Security Analyst",
			Description: "Analyze threats and manage alerts",
			Level:       3,
			Permissions: permissionsByID("p1", "p2", "p3", "p6", "p7", "p8"),
		},
		{
			ID:          "r4",
			Name:        "Security Viewer",
			Description: "Read-only access to security data",
			Level:       4,
			Permissions: permissionsByID("p1", "p3", "p7"),
		},
	}
}

func permissionsByID(ids ...string) []Permission {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	perms := make([]Permission, 0, len(ids))
	for _, p := range builtinPermissions {
		if _, ok := keep[p.ID]; ok {
			perms = append(perms, p)
		}
	}
	return perms
}
