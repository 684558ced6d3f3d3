package policy

// MenuItem is one node of the sidebar navigation tree. A node without an
// Href is a collapsible grouping and survives filtering only if at least one
// child does.
type MenuItem struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Icon     string     `json:"icon"`
	Href     string     `json:"href,omitempty"`
	Children []MenuItem `json:"children,omitempty"`
	Roles    []Role     `json:"-"`
}

func allRoles() []Role {
	return AllRoles()
}

func adminOnly() []Role {
	return []Role{RoleSuperadmin, RoleAdmin}
}

// Menu returns the full navigation tree before role filtering. Route guards
// are derived from the same tree (see routes.go), so adding an entry here is
// the only step needed to both show a menu item and protect its route.
func Menu() []MenuItem {
	return []MenuItem{
		{
			ID:    "dashboard",
			Label: "Dashboard",
			Icon:  "layout-dashboard",
			Href:  "/",
			Roles: allRoles(),
		},
		{
			ID:    "consultation-requests",
			Label: "Consultation Requests",
			Icon:  "bell",
			Href:  "/consultation-requests",
			Roles: adminOnly(),
		},
		{
			ID:    "user-management",
			Label: "User Management",
			Icon:  "users",
			Href:  "/user-management",
			Roles: []Role{RoleSuperadmin, RoleAdmin, RoleTeamLeader, RoleClientAdmin},
		},
		{
			ID:    "assets",
			Label: "Assets",
			Icon:  "database",
			Href:  "/assets",
			Roles: []Role{RoleSuperadmin, RoleAdmin, RoleClientAdmin},
		},
		{
			ID:    "tasks",
			Label: "My Tasks",
			Icon:  "target",
			Href:  "/tasks",
			Roles: []Role{RoleTeamLeader},
		},
		{
			ID:    "assigned-tasks",
			Label: "My Assigned Tasks",
			Icon:  "user-check",
			Href:  "/my-assigned-tasks",
			Roles: []Role{RoleTester},
		},
		{
			ID:    "client-assets",
			Label: "My Assets",
			Icon:  "briefcase",
			Href:  "/my-client-assets",
			Roles: []Role{RoleClientUser},
		},
		{
			ID:    "reports",
			Label: "Reports",
			Icon:  "file-text",
			Href:  "/reports",
			Roles: []Role{RoleSuperadmin, RoleAdmin, RoleTeamLeader, RoleTester, RoleClientAdmin},
		},
		{
			ID:    "monitoring",
			Label: "System Monitoring",
			Icon:  "activity",
			Roles: adminOnly(),
			Children: []MenuItem{
				{ID: "activity-logs", Label: "Activity Logs", Icon: "clock", Href: "/activity-logs", Roles: adminOnly()},
				{ID: "user-sessions", Label: "User Sessions", Icon: "user-cog", Href: "/user-sessions", Roles: adminOnly()},
				{ID: "system-health", Label: "System Health", Icon: "zap", Href: "/system-health", Roles: adminOnly()},
			},
		},
		{
			ID:    "security",
			Label: "Security",
			Icon:  "shield",
			Roles: adminOnly(),
			Children: []MenuItem{
				{ID: "access-control", Label: "Access Control", Icon: "lock", Href: "/access-control", Roles: adminOnly()},
				{ID: "audit-trail", Label: "Audit Trail", Icon: "eye", Href: "/audit-trail", Roles: adminOnly()},
			},
		},
		{
			ID:    "profile",
			Label: "Profile",
			Icon:  "user-cog",
			Href:  "/profile",
			Roles: allRoles(),
		},
	}
}

// MenuForRole prunes every node whose role set excludes the given role, then
// prunes groupings left without children. The input is never mutated and the
// filter is idempotent: filtering an already-filtered tree returns an equal
// tree.
func MenuForRole(items []MenuItem, role Role) []MenuItem {
	filtered := make([]MenuItem, 0, len(items))
	for _, item := range items {
		if !roleIncluded(item.Roles, role) {
			continue
		}
		node := item
		node.Children = MenuForRole(item.Children, role)
		if node.Href == "" && len(node.Children) == 0 {
			continue
		}
		filtered = append(filtered, node)
	}
	return filtered
}

func roleIncluded(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
