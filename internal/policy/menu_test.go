package policy

import (
	"reflect"
	"testing"
)

func menuIDs(items []MenuItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func findByID(items []MenuItem, id string) (MenuItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
		if child, ok := findByID(item.Children, id); ok {
			return child, true
		}
	}
	return MenuItem{}, false
}

func TestMenuForRoleTester(t *testing.T) {
	tree := []MenuItem{
		{ID: "dashboard", Label: "Dashboard", Href: "/", Roles: AllRoles()},
		{ID: "assets", Label: "Assets", Href: "/assets", Roles: []Role{RoleSuperadmin, RoleAdmin, RoleClientAdmin}},
		{ID: "assigned-tasks", Label: "My Assigned Tasks", Href: "/my-assigned-tasks", Roles: []Role{RoleTester}},
	}

	filtered := MenuForRole(tree, RoleTester)

	want := []string{"dashboard", "assigned-tasks"}
	if got := menuIDs(filtered); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMenuForRoleMembership(t *testing.T) {
	tree := Menu()
	for _, role := range AllRoles() {
		filtered := MenuForRole(tree, role)
		assertMembership(t, tree, filtered, role)
	}
}

func assertMembership(t *testing.T, full, filtered []MenuItem, role Role) {
	t.Helper()
	for _, item := range full {
		_, visible := findByID(filtered, item.ID)
		wantVisible := roleIncluded(item.Roles, role)
		if item.Href == "" && wantVisible {
			// Groupings additionally require a surviving child.
			wantVisible = len(MenuForRole(item.Children, role)) > 0
		}
		if visible != wantVisible {
			t.Fatalf("role %s: item %s visible=%v, want %v", role, item.ID, visible, wantVisible)
		}
		assertMembership(t, item.Children, filtered, role)
	}
}

func TestMenuForRolePrunesEmptyGroupings(t *testing.T) {
	tree := []MenuItem{
		{
			ID:    "monitoring",
			Label: "System Monitoring",
			Roles: AllRoles(),
			Children: []MenuItem{
				{ID: "system-health", Label: "System Health", Href: "/system-health", Roles: []Role{RoleSuperadmin}},
			},
		},
	}

	if got := MenuForRole(tree, RoleTester); len(got) != 0 {
		t.Fatalf("expected empty tree, got %v", menuIDs(got))
	}
	got := MenuForRole(tree, RoleSuperadmin)
	if len(got) != 1 || len(got[0].Children) != 1 {
		t.Fatalf("expected grouping with one child, got %+v", got)
	}
}

func TestMenuForRoleIdempotent(t *testing.T) {
	tree := Menu()
	for _, role := range AllRoles() {
		once := MenuForRole(tree, role)
		twice := MenuForRole(once, role)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("role %s: filtering twice differs from filtering once", role)
		}
	}
}

func TestMenuForRoleDoesNotMutateInput(t *testing.T) {
	tree := Menu()
	snapshot := Menu()

	MenuForRole(tree, RoleClientUser)

	if !reflect.DeepEqual(tree, snapshot) {
		t.Fatalf("input tree mutated by filtering")
	}
}
